package rpm

import (
	"context"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/internal/rpm/rpmdb"
)

// senseFlag bits, c.f. rpm's RPMSENSE_* constants.
type senseFlag int32

const (
	senseLess    senseFlag = 1 << 1
	senseGreater senseFlag = 1 << 2
	senseEqual   senseFlag = 1 << 3
	sensePreReq  senseFlag = 1 << 6
)

// SenseOp decodes an RPMSENSE_* flags value (shared by dependency and
// trigger-condition tag arrays) into symboldb's Op enumeration.
func SenseOp(flags int32) sdb.Op { return senseFlag(flags).op() }

func (f senseFlag) op() sdb.Op {
	switch {
	case f&senseLess != 0 && f&senseEqual != 0:
		return sdb.OpLE
	case f&senseGreater != 0 && f&senseEqual != 0:
		return sdb.OpGE
	case f&senseLess != 0:
		return sdb.OpLT
	case f&senseGreater != 0:
		return sdb.OpGT
	case f&senseEqual != 0:
		return sdb.OpEQ
	default:
		return sdb.OpNone
	}
}

type depTagSet struct {
	kind    sdb.DependencyKind
	name    rpmdb.Tag
	version rpmdb.Tag
	flags   rpmdb.Tag
}

var depTagSets = []depTagSet{
	{sdb.Requires, rpmdb.TagRequireName, rpmdb.TagRequireVersion, rpmdb.TagRequireFlags},
	{sdb.Provides, rpmdb.TagProvideName, rpmdb.TagProvideVersion, rpmdb.TagProvideFlags},
	{sdb.Obsoletes, rpmdb.TagObsoleteName, rpmdb.TagObsoleteVersion, rpmdb.TagObsoleteFlags},
	{sdb.Conflicts, rpmdb.TagConflictName, rpmdb.TagConflictVersion, rpmdb.TagConflictFlags},
}

// dependencies reads all four dependency tag triples from h, decoding RPM
// sense flags into symboldb's Op enumeration.
func dependencies(ctx context.Context, h *rpmdb.Header) ([]sdb.Dependency, error) {
	var deps []sdb.Dependency
	for _, ts := range depTagSets {
		names, versions, flags, ok, err := readTriple(ctx, h, ts.name, ts.version, ts.flags)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if len(names) != len(versions) || len(names) != len(flags) {
			return nil, &errs.Malformed{Of: errs.MalformedRPM, Msg: "dependency tag arrays have mismatched lengths"}
		}
		for i, name := range names {
			f := senseFlag(flags[i])
			deps = append(deps, sdb.Dependency{
				Kind:       ts.kind,
				Capability: name,
				Op:         f.op(),
				Version:    versions[i],
				PreReq:     ts.kind == sdb.Requires && f&sensePreReq != 0,
			})
		}
	}
	return deps, nil
}

func readTriple(ctx context.Context, h *rpmdb.Header, nameTag, versionTag, flagsTag rpmdb.Tag) (names, versions []string, flags []int32, ok bool, err error) {
	ne, ok := h.Find(nameTag)
	if !ok {
		return nil, nil, nil, false, nil
	}
	nv, err := h.ReadData(ctx, ne)
	if err != nil {
		return nil, nil, nil, false, err
	}
	names = nv.([]string)

	versions = make([]string, len(names))
	if ve, ok := h.Find(versionTag); ok {
		vv, err := h.ReadData(ctx, ve)
		if err != nil {
			return nil, nil, nil, false, err
		}
		versions = vv.([]string)
	}

	flags = make([]int32, len(names))
	if fe, ok := h.Find(flagsTag); ok {
		fv, err := h.ReadData(ctx, fe)
		if err != nil {
			return nil, nil, nil, false, err
		}
		flags = fv.([]int32)
	}
	return names, versions, flags, true, nil
}

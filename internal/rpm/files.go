package rpm

import (
	"context"
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/internal/rpm/rpmdb"
)

// FileInfo is one row reconstructed from the header's parallel file tag
// arrays, keyed by its payload-relative path.
type FileInfo struct {
	Path    string
	Mode    uint32
	User    string
	Group   string
	MTime   int64
	Flags   sdb.FileFlag
	Ino     int64
	NLinks  int32 // -1 when TagFileNLinks is absent; the CPIO entry's own field is used instead.
	Size    int64
	Digest  []byte // Nil for directories/symlinks/ghosts with no digest.
	LinkTo  string // Symlink target, when Mode is a symlink.
}

// fileFlag bits, c.f. rpm's RPMFILE_* constants.
const (
	rpmfileConfig    int32 = 1 << 0
	rpmfileDoc       int32 = 1 << 1
	rpmfileGhost     int32 = 1 << 6
	rpmfileNoReplace int32 = 1 << 10
)

// readFiles reconstructs every file-table row described by the header's tag
// arrays, reconstructing paths from dirindex/basename/dirname (or, for
// rpm4-style headers, the flat Filenames tag) and decoding the per-package
// digest algorithm.
func readFiles(ctx context.Context, h *rpmdb.Header) ([]FileInfo, sdb.HashKind, error) {
	names, err := filePaths(ctx, h)
	if err != nil {
		return nil, 0, err
	}
	if len(names) == 0 {
		return nil, 0, nil
	}

	algo, err := fileDigestAlgo(ctx, h)
	if err != nil {
		return nil, 0, err
	}

	sizes, err := readInt32Array(ctx, h, rpmdb.TagFileSizes, len(names))
	if err != nil {
		return nil, 0, err
	}
	modes, err := readInt16Array(ctx, h, rpmdb.TagFileModes, len(names))
	if err != nil {
		return nil, 0, err
	}
	mtimes, err := readInt32Array(ctx, h, rpmdb.TagFileMTimes, len(names))
	if err != nil {
		return nil, 0, err
	}
	inodes, err := readInt32Array(ctx, h, rpmdb.TagFileInodes, len(names))
	if err != nil {
		return nil, 0, err
	}
	flags, err := readInt32Array(ctx, h, rpmdb.TagFileFlags, len(names))
	if err != nil {
		return nil, 0, err
	}
	users, err := readStringArray(ctx, h, rpmdb.TagFileUsername, len(names))
	if err != nil {
		return nil, 0, err
	}
	groups, err := readStringArray(ctx, h, rpmdb.TagFileGroupname, len(names))
	if err != nil {
		return nil, 0, err
	}
	linktos, err := readStringArray(ctx, h, rpmdb.TagFileLinkTos, len(names))
	if err != nil {
		return nil, 0, err
	}
	digests, err := readStringArray(ctx, h, rpmdb.TagFileDigests, len(names))
	if err != nil {
		return nil, 0, err
	}
	nlinks, haveNLinks, err := readOptionalInt32Array(ctx, h, rpmdb.TagFileNLinks, len(names))
	if err != nil {
		return nil, 0, err
	}

	out := make([]FileInfo, len(names))
	for i, name := range names {
		fi := FileInfo{
			Path:   name,
			Mode:   uint32(uint16(modes[i])),
			MTime:  int64(mtimes[i]),
			Ino:    int64(inodes[i]),
			Size:   int64(sizes[i]),
			Flags:  decodeFileFlags(flags[i]),
			LinkTo: linktos[i],
			NLinks: -1,
		}
		if users != nil {
			fi.User = users[i]
		}
		if groups != nil {
			fi.Group = groups[i]
		}
		if haveNLinks {
			fi.NLinks = nlinks[i]
		}
		if digests != nil && digests[i] != "" {
			d, err := hex.DecodeString(digests[i])
			if err != nil {
				return nil, 0, &errs.Malformed{Of: errs.MalformedRPM, Msg: fmt.Sprintf("file digest for %q is not hex", name), Err: err}
			}
			fi.Digest = d
		}
		out[i] = fi
	}
	return out, algo, nil
}

// fileDigestAlgo reads the package-wide digest algorithm id and maps it to
// a [sdb.HashKind], defaulting to MD5 (id 1) when the tag is absent, as RPM
// itself does.
func fileDigestAlgo(ctx context.Context, h *rpmdb.Header) (sdb.HashKind, error) {
	id := int32(1)
	if e, ok := h.Find(rpmdb.TagFileDigestAlgo); ok {
		v, err := h.ReadData(ctx, e)
		if err != nil {
			return 0, err
		}
		id = v.([]int32)[0]
	}
	switch id {
	case 1:
		return sdb.MD5, nil
	case 2:
		return sdb.SHA1, nil
	case 8:
		return sdb.SHA256, nil
	default:
		return 0, &errs.UnsupportedHash{Algo: fmt.Sprintf("rpm-digest-algo-%d", id)}
	}
}

// filePaths reconstructs every path in the RPM, preferring the rpm5-style
// dirindex/basename/dirname triple and falling back to the flat rpm4-style
// Filenames tag, matching claircore's internal/rpm/info.go precedent.
func filePaths(ctx context.Context, h *rpmdb.Header) ([]string, error) {
	be, hasBase := h.Find(rpmdb.TagBasenames)
	if hasBase {
		basenames, err := readStrings(ctx, h, be)
		if err != nil {
			return nil, err
		}
		die, ok := h.Find(rpmdb.TagDirindexes)
		if !ok {
			return nil, &errs.Malformed{Of: errs.MalformedRPM, Msg: "basenames present without dirindexes"}
		}
		dirindexV, err := h.ReadData(ctx, die)
		if err != nil {
			return nil, err
		}
		dirindex := dirindexV.([]int32)
		dne, ok := h.Find(rpmdb.TagDirnames)
		if !ok {
			return nil, &errs.Malformed{Of: errs.MalformedRPM, Msg: "basenames present without dirnames"}
		}
		dirnames, err := readStrings(ctx, h, dne)
		if err != nil {
			return nil, err
		}
		if len(basenames) != len(dirindex) {
			return nil, &errs.Malformed{Of: errs.MalformedRPM, Msg: "mismatched basename/dirindex counts"}
		}
		names := make([]string, len(basenames))
		for i, base := range basenames {
			di := int(dirindex[i])
			if di < 0 || di >= len(dirnames) {
				return nil, &errs.Malformed{Of: errs.MalformedRPM, Msg: fmt.Sprintf("dirindex %d out of range (have %d dirnames)", di, len(dirnames))}
			}
			names[i] = path.Join(strings.TrimPrefix(dirnames[di], "/"), base)
		}
		return names, nil
	}

	fe, ok := h.Find(rpmdb.TagFilenames)
	if !ok {
		return nil, nil
	}
	flat, err := readStrings(ctx, h, fe)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(flat))
	for i, n := range flat {
		names[i] = strings.TrimPrefix(n, "/")
	}
	return names, nil
}

func decodeFileFlags(v int32) sdb.FileFlag {
	var f sdb.FileFlag
	if v&rpmfileConfig != 0 {
		f |= sdb.FlagConfig
	}
	if v&rpmfileDoc != 0 {
		f |= sdb.FlagDoc
	}
	if v&rpmfileGhost != 0 {
		f |= sdb.FlagGhost
	}
	if v&rpmfileNoReplace != 0 {
		f |= sdb.FlagNoReplace
	}
	return f
}

func readStrings(ctx context.Context, h *rpmdb.Header, e *rpmdb.EntryInfo) ([]string, error) {
	v, err := h.ReadData(ctx, e)
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func readInt32Array(ctx context.Context, h *rpmdb.Header, tag rpmdb.Tag, n int) ([]int32, error) {
	e, ok := h.Find(tag)
	if !ok {
		return make([]int32, n), nil
	}
	v, err := h.ReadData(ctx, e)
	if err != nil {
		return nil, err
	}
	a := v.([]int32)
	if len(a) != n {
		return nil, &errs.Malformed{Of: errs.MalformedRPM, Msg: fmt.Sprintf("tag %v has %d entries, want %d", tag, len(a), n)}
	}
	return a, nil
}

func readInt16Array(ctx context.Context, h *rpmdb.Header, tag rpmdb.Tag, n int) ([]int16, error) {
	e, ok := h.Find(tag)
	if !ok {
		return make([]int16, n), nil
	}
	v, err := h.ReadData(ctx, e)
	if err != nil {
		return nil, err
	}
	a := v.([]int16)
	if len(a) != n {
		return nil, &errs.Malformed{Of: errs.MalformedRPM, Msg: fmt.Sprintf("tag %v has %d entries, want %d", tag, len(a), n)}
	}
	return a, nil
}

func readStringArray(ctx context.Context, h *rpmdb.Header, tag rpmdb.Tag, n int) ([]string, error) {
	e, ok := h.Find(tag)
	if !ok {
		return nil, nil
	}
	a, err := readStrings(ctx, h, e)
	if err != nil {
		return nil, err
	}
	if len(a) != n {
		return nil, &errs.Malformed{Of: errs.MalformedRPM, Msg: fmt.Sprintf("tag %v has %d entries, want %d", tag, len(a), n)}
	}
	return a, nil
}

func readOptionalInt32Array(ctx context.Context, h *rpmdb.Header, tag rpmdb.Tag, n int) ([]int32, bool, error) {
	e, ok := h.Find(tag)
	if !ok {
		return nil, false, nil
	}
	v, err := h.ReadData(ctx, e)
	if err != nil {
		return nil, false, err
	}
	a := v.([]int32)
	if len(a) != n {
		return nil, false, &errs.Malformed{Of: errs.MalformedRPM, Msg: fmt.Sprintf("tag %v has %d entries, want %d", tag, len(a), n)}
	}
	return a, true, nil
}

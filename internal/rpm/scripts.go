package rpm

import (
	"context"

	"github.com/symboldb/symboldb/internal/rpm/rpmdb"
)

// ScriptKind names one of the seven RPM lifecycle scripts.
type ScriptKind string

// Script kinds, in the order RPM executes them.
const (
	ScriptPreTrans    ScriptKind = "pretrans"
	ScriptPreInst     ScriptKind = "prein"
	ScriptPostInst    ScriptKind = "postin"
	ScriptPreUninst   ScriptKind = "preun"
	ScriptPostUninst  ScriptKind = "postun"
	ScriptPostTrans   ScriptKind = "posttrans"
	ScriptVerify      ScriptKind = "verify"
)

// Script is one lifecycle script body plus its interpreter argv.
type Script struct {
	Kind ScriptKind
	Body string
	Prog []string
}

type scriptTagSet struct {
	kind ScriptKind
	body rpmdb.Tag
	prog rpmdb.Tag
}

var scriptTagSets = []scriptTagSet{
	{ScriptPreTrans, rpmdb.TagPreTrans, rpmdb.TagPreTransProg},
	{ScriptPreInst, rpmdb.TagPreInstall, rpmdb.TagPreInstallProg},
	{ScriptPostInst, rpmdb.TagPostInstall, rpmdb.TagPostInstallProg},
	{ScriptPreUninst, rpmdb.TagPreUninstall, rpmdb.TagPreUninstallProg},
	{ScriptPostUninst, rpmdb.TagPostUninstall, rpmdb.TagPostUninstallProg},
	{ScriptPostTrans, rpmdb.TagPostTrans, rpmdb.TagPostTransProg},
	{ScriptVerify, rpmdb.TagVerifyScript, rpmdb.TagVerifyScriptProg},
}

// scripts reads every lifecycle script present in h. A script with a body
// but no recorded prog defaults to the conventional "/bin/sh" interpreter,
// matching RPM's own behavior when PROG is absent.
func scripts(ctx context.Context, h *rpmdb.Header) ([]Script, error) {
	var out []Script
	for _, ts := range scriptTagSets {
		be, ok := h.Find(ts.body)
		if !ok {
			continue
		}
		bv, err := h.ReadData(ctx, be)
		if err != nil {
			return nil, err
		}
		s := Script{Kind: ts.kind, Body: bv.(string), Prog: []string{"/bin/sh"}}
		if pe, ok := h.Find(ts.prog); ok {
			pv, err := h.ReadData(ctx, pe)
			if err != nil {
				return nil, err
			}
			switch v := pv.(type) {
			case string:
				s.Prog = []string{v}
			case []string:
				s.Prog = v
			}
		}
		out = append(out, s)
	}
	return out, nil
}

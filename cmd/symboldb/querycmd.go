package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/symboldb/symboldb/download"
	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/repomd"
)

// actionShowSourcePackages implements "--show-source-packages URL...":
// stream each repository's primary.xml and print the distinct set of source
// package names referenced by SourceRPM.
func actionShowSourcePackages(ctx context.Context, env *environment, args []string) error {
	if len(args) == 0 {
		return &errs.Usage{Msg: "--show-source-packages requires at least one repository URL"}
	}
	st, closeStore, err := env.connectStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	mode := download.CheckCache
	if env.cfg.NoNet {
		mode = download.OnlyCache
	}

	seen := make(map[string]bool)
	var names []string
	for _, url := range args {
		rp, err := repomd.Acquire(ctx, env.fetch, st, mode, url)
		if err != nil {
			return err
		}
		primary, err := repomd.PrimaryXML(ctx, rp, env.fetch, st, mode)
		if err != nil {
			return err
		}
		for {
			desc, err := primary.Next(ctx)
			if err != nil {
				if err == io.EOF {
					break
				}
				primary.Close()
				return err
			}
			name := sourceName(desc.Info.SourceRPM)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
		primary.Close()
	}

	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintln(os.Stdout, n)
	}
	return nil
}

// sourceName strips a source-RPM filename ("foo-1.2-3.fc40.src.rpm") down to
// its package name, mirroring the NVRA convention rpm itself uses: trim the
// trailing ".src.rpm", then the last two hyphen-delimited fields (release,
// version).
func sourceName(srpm string) string {
	const suffix = ".src.rpm"
	if len(srpm) <= len(suffix) || srpm[len(srpm)-len(suffix):] != suffix {
		return ""
	}
	base := srpm[:len(srpm)-len(suffix)]
	rel := lastIndexByte(base, '-')
	if rel < 0 {
		return base
	}
	ver := lastIndexByte(base[:rel], '-')
	if ver < 0 {
		return base[:rel]
	}
	return base[:ver]
}

func lastIndexByte(s string, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// actionShowStaleCachedRPMs implements "--show-stale-cached-rpms": list
// every digest present in the file cache that no package in the store
// references any longer, per C13's scope of what "expire" would reclaim.
func actionShowStaleCachedRPMs(ctx context.Context, env *environment, args []string) error {
	st, closeStore, err := env.connectStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	referenced, err := st.ReferencedPackageDigests(ctx)
	if err != nil {
		return err
	}
	cached, err := env.cache.Digests()
	if err != nil {
		return err
	}

	var stale []string
	for _, d := range cached {
		key := fmt.Sprintf("%s:%s", d.Kind, hex.EncodeToString(d.Digest))
		if !referenced[key] {
			stale = append(stale, key)
		}
	}
	sort.Strings(stale)
	for _, s := range stale {
		fmt.Fprintln(os.Stdout, s)
	}
	return nil
}

// actionShowSonameConflicts implements "--show-soname-conflicts=SET": report
// every link-closure edge whose soname resolved to more than one candidate
// within the named package set.
func actionShowSonameConflicts(ctx context.Context, env *environment, setName string) error {
	st, closeStore, err := env.connectStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	setID, ok, err := st.LookupPackageSet(ctx, setName)
	if err != nil {
		return err
	}
	if !ok {
		return &errs.Usage{Msg: fmt.Sprintf("no such package set %q", setName)}
	}

	conflicts, err := st.SonameConflicts(ctx, setID)
	if err != nil {
		return err
	}
	for _, c := range conflicts {
		fmt.Fprintf(os.Stdout, "%s needed by %s (%s):\n", c.Soname, c.NeedingPath, c.NeedingNEVRA)
		for _, cand := range c.Candidates {
			fmt.Fprintf(os.Stdout, "\t%s (%s)\n", cand.Path, cand.NEVRA)
		}
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/quay/zlog"

	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/ingest"
	"github.com/symboldb/symboldb/store"
)

// actionLoadRPM implements "--load-rpm FILE...": ingest local RPMs without
// touching any package set.
func actionLoadRPM(ctx context.Context, env *environment, args []string) error {
	if len(args) == 0 {
		return &errs.Usage{Msg: "--load-rpm requires at least one RPM file"}
	}
	return actionIngestLocal(ctx, env, "", args)
}

// actionIngestLocal implements "--create-set"/"--update-set": ingest local
// RPM files and, when setName is non-empty, replace that set's membership.
func actionIngestLocal(ctx context.Context, env *environment, setName string, args []string) error {
	if len(args) == 0 {
		return &errs.Usage{Msg: "at least one RPM file is required"}
	}
	st, closeStore, err := env.connectStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	d := ingest.New(st, env.cache, env.fetch)
	defer d.Close()

	loaded, err := ingest.Local(ctx, d, args)
	if err != nil {
		return err
	}
	zlog.Info(ctx).Int("count", len(loaded)).Msg("symboldb: loaded local packages")

	if setName == "" || len(loaded) == 0 {
		return nil
	}
	changed, err := setMembership(ctx, st, setName, loaded)
	if err != nil {
		return err
	}
	if changed {
		fmt.Fprintf(os.Stdout, "info: set %q membership updated\n", setName)
	}
	return nil
}

// actionIngestRepo implements "--update-set-from-repo"/"--download-repo"/
// "--load-repo": ingest one or more repository base URLs and, when setName
// is non-empty, replace that set's membership. The driver's pipeline is
// inherently download-then-load (the per-URL worker pool commits each
// package as it's fetched), so "--download-repo" and "--load-repo" run the
// identical path; there is no "fetch without parsing" mode in C10's
// architecture to distinguish them by.
func actionIngestRepo(ctx context.Context, env *environment, setName string, args []string) error {
	if len(args) == 0 {
		return &errs.Usage{Msg: "at least one repository URL is required"}
	}
	st, closeStore, err := env.connectStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	d := ingest.New(st, env.cache, env.fetch)
	defer d.Close()

	res, err := ingest.RunRepos(ctx, d, args, setName, env.ingestOptions())
	if err != nil {
		return err
	}
	zlog.Info(ctx).Int("count", len(res.Loaded)).Msg("symboldb: ingested repository packages")
	if len(res.RemainingURL) > 0 {
		for _, u := range res.RemainingURL {
			fmt.Fprintf(os.Stderr, "warning: giving up on %s after exhausting retries\n", u)
		}
	}
	if setName != "" && res.SetChanged {
		fmt.Fprintf(os.Stdout, "info: set %q membership updated\n", setName)
	}
	return nil
}

// setMembership replaces setName's membership with loaded, creating the set
// if it doesn't already exist, and recomputes its link closure on change.
// This mirrors ingest.Driver's unexported updateSet, duplicated here since
// that method isn't reachable outside package ingest and this path (local
// files plus an explicit set name) doesn't otherwise go through RunRepos.
func setMembership(ctx context.Context, st store.Store, setName string, loaded []int64) (bool, error) {
	setID, ok, err := st.LookupPackageSet(ctx, setName)
	if err != nil {
		return false, err
	}
	if !ok {
		setID, err = st.CreatePackageSet(ctx, setName)
		if err != nil {
			return false, err
		}
	}
	changed, err := st.UpdatePackageSet(ctx, setID, loaded)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	return true, st.UpdatePackageSetCaches(ctx, setID)
}

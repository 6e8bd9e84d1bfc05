package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/symboldb/symboldb/download"
	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/repomd"
)

// actionDownload implements "--download URL": fetch URL through the
// download policy and write its bytes to stdout.
func actionDownload(ctx context.Context, env *environment, args []string) error {
	if len(args) != 1 {
		return &errs.Usage{Msg: "--download takes exactly one URL"}
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
	rc, err := download.Download(ctx, env.fetch, st, mode, args[0])
	if err != nil {
		return err
	}
	defer rc.Close()
	if _, err := io.Copy(os.Stdout, rc); err != nil {
		return &errs.IO{Err: err}
	}
	return nil
}

// actionShowRepomd implements "--show-repomd URL": print the repository's
// repomd.xml entries.
func actionShowRepomd(ctx context.Context, env *environment, args []string) error {
	if len(args) != 1 {
		return &errs.Usage{Msg: "--show-repomd takes exactly one repository URL"}
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
	rp, err := repomd.Acquire(ctx, env.fetch, st, mode, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "revision: %s\n", rp.Revision)
	for _, e := range rp.Entries {
		fmt.Fprintf(os.Stdout, "%s\t%s\t%s\n", e.Type, e.Checksum.Kind, e.Href)
	}
	return nil
}

// actionShowPrimary implements "--show-primary URL": print every package
// descriptor found in the repository's primary.xml.
func actionShowPrimary(ctx context.Context, env *environment, args []string) error {
	if len(args) != 1 {
		return &errs.Usage{Msg: "--show-primary takes exactly one repository URL"}
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
	rp, err := repomd.Acquire(ctx, env.fetch, st, mode, args[0])
	if err != nil {
		return err
	}
	primary, err := repomd.PrimaryXML(ctx, rp, env.fetch, st, mode)
	if err != nil {
		return err
	}
	defer primary.Close()

	for {
		desc, err := primary.Next(ctx)
		if err != nil {
			if err.Error() == io.EOF.Error() {
				return nil
			}
			return err
		}
		fmt.Fprintf(os.Stdout, "%s-%s-%s.%s\t%s\n", desc.Info.Name, desc.Info.Version, desc.Info.Release, desc.Info.Arch, desc.Location)
	}
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/quay/zlog"

	sdb "github.com/symboldb/symboldb"
)

// actionExpire implements "--expire" (C13): remove expired url_cache rows,
// unreferenced packages and their file contents, orphaned java_class rows,
// and file-cache blobs no package references any longer.
func actionExpire(ctx context.Context, env *environment, args []string) error {
	st, closeStore, err := env.connectStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	urlRows, err := st.ExpireURLCache(ctx)
	if err != nil {
		return err
	}
	pkgRows, err := st.ExpirePackages(ctx)
	if err != nil {
		return err
	}
	contentRows, err := st.ExpireFileContents(ctx)
	if err != nil {
		return err
	}
	classRows, err := st.ExpireJavaClasses(ctx)
	if err != nil {
		return err
	}
	zlog.Info(ctx).
		Int64("url_cache", urlRows).
		Int64("packages", pkgRows).
		Int64("file_contents", contentRows).
		Int64("java_classes", classRows).
		Msg("symboldb: expired unreferenced rows")

	referenced, err := st.ReferencedPackageDigests(ctx)
	if err != nil {
		return err
	}
	cached, err := env.cache.Digests()
	if err != nil {
		return err
	}
	var removed int
	for _, d := range cached {
		key := fmt.Sprintf("%s:%x", d.Kind, d.Digest)
		if referenced[key] {
			continue
		}
		if err := env.cache.Remove(sdb.Checksum{Kind: d.Kind, Digest: d.Digest}); err != nil {
			return err
		}
		removed++
	}
	fmt.Fprintf(os.Stdout, "expired: %d url-cache rows, %d packages, %d file contents, %d java classes, %d cached RPMs\n",
		urlRows, pkgRows, contentRows, classRows, removed)
	return nil
}

package ingest

import (
	"context"

	"github.com/quay/zlog"
)

// Local ingests already-downloaded RPM files directly, skipping C3/C4/C5/C9
// entirely (no repository metadata, no network, no cache policy) and
// feeding each path straight into the per-package pipeline the repository
// path also uses. A file that fails to parse is logged and skipped; it does
// not abort the remaining files.
func Local(ctx context.Context, d *Driver, paths []string) ([]int64, error) {
	var loaded []int64
	for _, path := range paths {
		id, err := d.loadOne(ctx, path)
		if err != nil {
			if !isMalformed(err) {
				return loaded, err
			}
			zlog.Info(ctx).Err(err).Str("path", path).Msg("ingest: malformed package, skipping")
			continue
		}
		loaded = append(loaded, id)
	}
	return loaded, nil
}

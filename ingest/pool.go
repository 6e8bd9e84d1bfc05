package ingest

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/quay/zlog"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/download"
	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/internal/metrics"
	"github.com/symboldb/symboldb/repomd"
)

// completion is one entry pushed onto the bounded queue the loader drains,
// the last step of the per-URL download protocol below.
type completion struct {
	Name      string
	Checksum  sdb.Checksum
	PackageID int64  // Set when the digest was already present in the DB.
	Path      string // Set when a file-cache path still needs loading.
}

// runRound executes one round of the worker pool over descs: up to
// opts.DownloadThreads workers run the download-url protocol concurrently
// (bounded by a weighted semaphore), while a single loader goroutine drains
// their completions in turn, loading each one under a per-package advisory
// lock. URLs whose network phase fails are returned in retry for the next
// round.
func (d *Driver) runRound(ctx context.Context, descs []*repomd.Descriptor, opts Options) (retry []*repomd.Descriptor, loaded []int64, err error) {
	threads := opts.DownloadThreads
	if threads < 1 {
		threads = 1
	}

	completions := make(chan completion, threads*2)
	sem := semaphore.NewWeighted(int64(threads))
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	for _, desc := range descs {
		desc := desc
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			c, err := d.downloadURL(gctx, desc, opts)
			if err != nil {
				if isRetryable(err) {
					metrics.RecordDownload(metrics.DownloadRetried, 0)
					zlog.Info(gctx).Err(err).Str("url", desc.Location).Msg("ingest: download failed, will retry")
					mu.Lock()
					retry = append(retry, desc)
					mu.Unlock()
					return nil
				}
				return err
			}
			select {
			case completions <- *c:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	loadErrCh := make(chan error, 1)
	go func() {
		loadErrCh <- d.drainLoader(ctx, completions, opts, &loaded)
	}()

	workErr := g.Wait()
	close(completions)
	loadErr := <-loadErrCh

	if workErr != nil {
		return retry, loaded, workErr
	}
	return retry, loaded, loadErr
}

// drainLoader reads completions until the channel closes, loading each one
// (skipping the load entirely when PackageID is already known) and
// appending its package id to *loaded.
func (d *Driver) drainLoader(ctx context.Context, completions <-chan completion, opts Options, loaded *[]int64) error {
	for c := range completions {
		if c.PackageID != 0 {
			*loaded = append(*loaded, c.PackageID)
			continue
		}

		lock, err := d.Store.LockDigest(ctx, c.Checksum.Digest)
		if err != nil {
			return err
		}
		id, loadErr := d.loadOne(ctx, c.Path)
		if cerr := lock.Close(ctx); cerr != nil && loadErr == nil {
			loadErr = cerr
		}
		if loadErr != nil {
			if isMalformed(loadErr) {
				zlog.Info(ctx).Err(loadErr).Str("name", c.Name).Msg("ingest: malformed package, skipping")
				continue
			}
			return loadErr
		}
		*loaded = append(*loaded, id)

		if opts.TransientRPMs {
			if err := d.FileCache.Remove(c.Checksum); err != nil {
				zlog.Info(ctx).Err(err).Str("name", c.Name).Msg("ingest: removing transient RPM from file cache")
			}
		}
	}
	return nil
}

// isRetryable reports whether err is a transient download-phase failure
// that should be retried next round, as opposed to a fatal infrastructure
// error (DB unreachable, programmer error) that should abort the run.
func isRetryable(err error) bool {
	var network *errs.Network
	if errors.As(err, &network) {
		return true
	}
	var mismatch *errs.ChecksumMismatch
	if errors.As(err, &mismatch) {
		return true
	}
	var notCached *errs.NotCached
	return errors.As(err, &notCached)
}

// isMalformed reports whether err is a structural parse failure that should
// abort only the current package: such errors are logged and the package
// is skipped rather than aborting the whole run.
func isMalformed(err error) bool {
	var m *errs.Malformed
	return errors.As(err, &m)
}

// downloadURL implements the per-URL download protocol: take an advisory
// lock keyed by the digest, short-circuit when the package already exists
// or is already cached, and otherwise download into the file cache.
func (d *Driver) downloadURL(ctx context.Context, desc *repomd.Descriptor, opts Options) (*completion, error) {
	lock, err := d.Store.LockDigest(ctx, desc.Checksum.Digest)
	if err != nil {
		return nil, err
	}
	defer lock.Close(ctx)

	if id, ok, err := d.Store.PackageByDigest(ctx, desc.Checksum); err != nil {
		return nil, err
	} else if ok {
		metrics.RecordDownload(metrics.DownloadAlreadyKnown, 0)
		return &completion{Name: desc.Info.Name, Checksum: desc.Checksum, PackageID: id}, nil
	}

	if path, ok := d.FileCache.Lookup(desc.Checksum); ok {
		metrics.RecordDownload(metrics.DownloadCacheReused, 0)
		return &completion{Name: desc.Info.Name, Checksum: desc.Checksum, Path: path}, nil
	}

	if opts.NoNet {
		metrics.RecordDownload(metrics.DownloadFailed, 0)
		return nil, &errs.NotCached{URL: desc.Location}
	}

	body, err := download.Download(ctx, d.Client, d.Store, download.NoCache, desc.Location)
	if err != nil {
		metrics.RecordDownload(metrics.DownloadFailed, 0)
		return nil, err
	}
	defer body.Close()

	adder, err := d.FileCache.Add(desc.Checksum.Kind)
	if err != nil {
		return nil, err
	}
	n, err := io.Copy(adder, body)
	if err != nil {
		metrics.RecordDownload(metrics.DownloadFailed, n)
		return nil, &errs.IO{Err: err}
	}
	path, err := adder.Finish(ctx, desc.Checksum)
	if err != nil {
		metrics.RecordDownload(metrics.DownloadFailed, n)
		return nil, err
	}
	metrics.RecordDownload(metrics.DownloadFetched, n)
	return &completion{Name: desc.Info.Name, Checksum: desc.Checksum, Path: path}, nil
}

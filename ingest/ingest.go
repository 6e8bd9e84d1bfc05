// Package ingest implements the ingestion driver (C10): turning a list of
// repository base URLs (or local RPM files) into persisted packages,
// running the download-url protocol, the per-package parse/analyze/store
// pipeline, and the package-set membership update.
package ingest

import (
	"context"
	"io"
	"regexp"
	"strconv"

	"github.com/quay/zlog"

	"github.com/symboldb/symboldb/download"
	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/fetch"
	"github.com/symboldb/symboldb/filecache"
	"github.com/symboldb/symboldb/internal/metrics"
	"github.com/symboldb/symboldb/pkgset"
	"github.com/symboldb/symboldb/pyimport"
	"github.com/symboldb/symboldb/repomd"
	"github.com/symboldb/symboldb/store"
)

// Options carries the policy knobs for the repository ingestion driver.
type Options struct {
	// DownloadThreads is the number of concurrent workers per round.
	DownloadThreads int
	// NoNet skips network access entirely; only already-cached artifacts
	// can be loaded.
	NoNet bool
	// IgnoreDownloadErrors, when true, logs and skips URLs still failing
	// after three rounds instead of returning an error, provided at least
	// one package loaded.
	IgnoreDownloadErrors bool
	// Randomize shuffles the work list before the first round.
	Randomize bool
	// TransientRPMs removes a downloaded RPM's file-cache entry once it has
	// been loaded, trading re-download cost for disk usage.
	TransientRPMs bool
	// ExcludeName, when non-nil, drops any package whose name matches.
	ExcludeName *regexp.Regexp
}

const maxRounds = 3

// Driver bundles the collaborators the ingestion pipeline needs: the
// relational store (C11), the file cache (C2), the URL fetcher (C3), and a
// Python analyzer (C7d) kept warm across packages.
type Driver struct {
	Store     store.Store
	FileCache *filecache.Cache
	Client    *fetch.Client
	Python    *pyimport.Analyzer
}

// New returns a Driver ready to ingest. Callers must call Close when done,
// to release the Python analyzer's subprocesses.
func New(st store.Store, fc *filecache.Cache, client *fetch.Client) *Driver {
	return &Driver{Store: st, FileCache: fc, Client: client, Python: &pyimport.Analyzer{}}
}

// Close releases the driver's long-lived resources.
func (d *Driver) Close() error {
	return d.Python.Close()
}

// Result summarizes one RunRepos invocation.
type Result struct {
	Loaded       []int64 // Package ids freshly or already interned.
	SetChanged   bool
	RemainingURL []string // URLs still failing after the last retry round.
}

var errRetriesExhausted = &errs.Internal{Msg: "ingest: exhausted retry rounds"}

// RunRepos acquires repository metadata from each of baseURLs, consolidates
// (name, arch) occurrences to their highest version (C9), downloads and
// loads every surviving package (C10/C6/C8/C7/C11), and — when setName is
// non-empty — replaces the named package set's membership and recomputes
// its link closure (C12).
func RunRepos(ctx context.Context, d *Driver, baseURLs []string, setName string, opts Options) (*Result, error) {
	descs, err := collect(ctx, d, baseURLs, opts)
	if err != nil {
		return nil, err
	}
	zlog.Info(ctx).Int("count", len(descs)).Msg("ingest: packages to consider")

	work := descs
	if opts.Randomize {
		shuffle(work)
	}

	res := &Result{}
	var loaded []int64
	for round := 1; round <= maxRounds && len(work) > 0; round++ {
		zlog.Info(ctx).Int("round", round).Int("remaining", len(work)).Msg("ingest: starting round")
		retry, ids, err := d.runRound(ctx, work, opts)
		loaded = append(loaded, ids...)
		if err != nil {
			return nil, err
		}
		work = retry
	}
	if len(work) > 0 {
		for _, desc := range work {
			res.RemainingURL = append(res.RemainingURL, desc.Location)
		}
		metrics.SetRemainingURLs(len(res.RemainingURL))
		if !opts.IgnoreDownloadErrors || len(loaded) == 0 {
			return res, &errs.Network{URL: work[0].Location, Err: errRetriesExhausted}
		}
		zlog.Info(ctx).Int("count", len(work)).Msg("ingest: giving up on URLs after max rounds")
	} else {
		metrics.SetRemainingURLs(0)
	}
	res.Loaded = loaded

	if setName != "" && len(loaded) > 0 {
		changed, err := d.updateSet(ctx, setName, loaded)
		if err != nil {
			return res, err
		}
		res.SetChanged = changed
	}
	return res, nil
}

// collect acquires every base URL's repository metadata and consolidates
// the result via C9, applying the exclude-name filter.
func collect(ctx context.Context, d *Driver, baseURLs []string, opts Options) ([]*repomd.Descriptor, error) {
	mode := download.CheckCache
	if opts.NoNet {
		mode = download.OnlyCache
	}

	set := pkgset.New[*repomd.Descriptor]()
	for _, base := range baseURLs {
		rp, err := repomd.Acquire(ctx, d.Client, d.Store, mode, base)
		if err != nil {
			return nil, err
		}
		primary, err := repomd.PrimaryXML(ctx, rp, d.Client, d.Store, mode)
		if err != nil {
			return nil, err
		}
		if err := collectPrimary(ctx, primary, set, opts); err != nil {
			primary.Close()
			return nil, err
		}
		primary.Close()
	}

	out := make([]*repomd.Descriptor, 0, set.Len())
	for _, e := range set.Values() {
		out = append(out, e.Value)
	}
	return out, nil
}

func collectPrimary(ctx context.Context, primary *repomd.Primary, set *pkgset.Set[*repomd.Descriptor], opts Options) error {
	for {
		desc, err := primary.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if opts.ExcludeName != nil && opts.ExcludeName.MatchString(desc.Info.Name) {
			continue
		}
		epoch := "0"
		if desc.Info.Epoch != nil {
			epoch = strconv.FormatInt(int64(*desc.Info.Epoch), 10)
		}
		set.Add(pkgset.Entry[*repomd.Descriptor]{
			Name:    desc.Info.Name,
			Arch:    desc.Info.Arch,
			Epoch:   epoch,
			Version: desc.Info.Version,
			Release: desc.Info.Release,
			Value:   desc,
		})
	}
}

// updateSet replaces the set's membership and, when membership changed,
// recomputes its link closure.
func (d *Driver) updateSet(ctx context.Context, setName string, loaded []int64) (bool, error) {
	setID, ok, err := d.Store.LookupPackageSet(ctx, setName)
	if err != nil {
		return false, err
	}
	if !ok {
		setID, err = d.Store.CreatePackageSet(ctx, setName)
		if err != nil {
			return false, err
		}
	}
	changed, err := d.Store.UpdatePackageSet(ctx, setID, loaded)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	if err := d.Store.UpdatePackageSetCaches(ctx, setID); err != nil {
		return true, err
	}
	return true, nil
}

// shuffle permutes descs in place using a small deterministic generator
// seeded from the slice length; ingest avoids math/rand's global state so
// concurrent callers in the same process never contend on its lock.
func shuffle(descs []*repomd.Descriptor) {
	n := len(descs)
	if n < 2 {
		return
	}
	seed := uint64(n)*2654435761 + 1
	for i := n - 1; i > 0; i-- {
		seed = seed*6364136223846793005 + 1442695040888963407
		j := int((seed >> 33) % uint64(i+1))
		descs[i], descs[j] = descs[j], descs[i]
	}
}

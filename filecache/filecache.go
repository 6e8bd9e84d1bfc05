// Package filecache implements the content-addressed file cache (C2): a
// directory laid out as <root>/<algo>/<hex-digest>, populated via a
// temp-file-then-rename sequence so concurrent writers of distinct digests
// never observe a partial file.
package filecache

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quay/zlog"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/byteio"
	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/internal/metrics"
)

// Cache is a content-addressed directory cache rooted at Root.
type Cache struct {
	Root string
	// Fsync, when true, calls Sync on the temp file before renaming it into
	// place, trading throughput for durability against a crash between
	// write and rename.
	Fsync bool
}

// New returns a Cache rooted at root, creating it if necessary.
func New(root string, fsync bool) (*Cache, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &errs.IO{Err: fmt.Errorf("filecache: creating root: %w", err)}
	}
	return &Cache{Root: root, Fsync: fsync}, nil
}

func (c *Cache) path(kind sdb.HashKind, digest []byte) string {
	return filepath.Join(c.Root, string(kind), hex.EncodeToString(digest))
}

// Lookup returns the path to the cached blob for csum, and whether it
// exists.
func (c *Cache) Lookup(csum sdb.Checksum) (string, bool) {
	p := c.path(csum.Kind, csum.Digest)
	if _, err := os.Stat(p); err != nil {
		metrics.RecordCacheLookup(metrics.CacheMiss)
		return "", false
	}
	metrics.RecordCacheLookup(metrics.CacheHit)
	return p, true
}

// Adder is returned by [Cache.Add]; callers write the blob's bytes to it and
// call Finish with the checksum the bytes are expected to match.
type Adder struct {
	c         *Cache
	tmp       *os.File
	anonymous bool // tmp was opened via O_TMPFILE; it has no path to remove or rename.
	sink      *byteio.HashingSink
	tee       *byteio.TeeSink
	closed    bool
}

// fileSink adapts *os.File to [byteio.Sink].
type fileSink struct{ f *os.File }

func (s fileSink) Write(p []byte) (int, error) { return s.f.Write(p) }
func (s fileSink) Finish() error               { return nil }

// Add opens a temp file in the cache root and returns an Adder that hashes
// everything written to it with kind, for later verification against an
// expected checksum. On Linux the temp file is opened anonymously via
// O_TMPFILE when the filesystem supports it (falling back to a named temp
// file otherwise), so a process that crashes before Finish leaves nothing
// for the cache directory to accumulate.
func (c *Cache) Add(kind sdb.HashKind) (*Adder, error) {
	dir := filepath.Join(c.Root, string(kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &errs.IO{Err: fmt.Errorf("filecache: creating %s dir: %w", kind, err)}
	}
	tmp, anonymous, err := openTemp(dir)
	if err != nil {
		return nil, &errs.IO{Err: fmt.Errorf("filecache: creating temp file: %w", err)}
	}
	sink, err := byteio.NewHashingSink(kind)
	if err != nil {
		tmp.Close()
		if !anonymous {
			os.Remove(tmp.Name())
		}
		return nil, err
	}
	return &Adder{
		c:         c,
		tmp:       tmp,
		anonymous: anonymous,
		sink:      sink,
		tee:       byteio.NewTeeSink(sink, fileSink{tmp}),
	}, nil
}

// Write implements [io.Writer].
func (a *Adder) Write(p []byte) (int, error) { return a.tee.Write(p) }

// Finish verifies the accumulated digest and length against want (when
// want.Length is not [sdb.NoLength]), then atomically installs the temp file
// at its content-addressed path. On any failure the temp file is removed.
func (a *Adder) Finish(ctx context.Context, want sdb.Checksum) (string, error) {
	if a.closed {
		return "", &errs.Internal{Msg: "filecache: Adder.Finish called twice"}
	}
	a.closed = true
	defer func() {
		if a.tmp != nil {
			if !a.anonymous {
				os.Remove(a.tmp.Name())
			}
			a.tmp.Close()
		}
	}()

	got := a.sink.Checksum()
	if string(got.Kind) != string(want.Kind) {
		return "", &errs.UnsupportedHash{Algo: string(want.Kind)}
	}
	if want.Length != sdb.NoLength && got.Length != want.Length {
		return "", &errs.ChecksumMismatch{Want: want.String(), Got: got.String()}
	}
	if hexDigest(got) != hexDigest(want) {
		return "", &errs.ChecksumMismatch{Want: want.String(), Got: got.String()}
	}

	if a.c.Fsync {
		if err := a.tmp.Sync(); err != nil {
			return "", &errs.IO{Err: fmt.Errorf("filecache: fsync: %w", err)}
		}
	}

	final := a.c.path(want.Kind, want.Digest)
	if a.anonymous {
		// The file was never linked into the directory, so rename has
		// nothing to rename from; materialize it at final directly while
		// its fd is still open.
		if err := linkTemp(a.tmp, final); err != nil {
			return "", &errs.IO{Err: fmt.Errorf("filecache: linking into place: %w", err)}
		}
		if err := a.tmp.Close(); err != nil {
			return "", &errs.IO{Err: fmt.Errorf("filecache: closing temp file: %w", err)}
		}
	} else {
		if err := a.tmp.Close(); err != nil {
			return "", &errs.IO{Err: fmt.Errorf("filecache: closing temp file: %w", err)}
		}
		if err := os.Rename(a.tmp.Name(), final); err != nil {
			return "", &errs.IO{Err: fmt.Errorf("filecache: rename into place: %w", err)}
		}
	}
	a.tmp = nil
	zlog.Debug(ctx).Str("path", final).Msg("filecache: added blob")
	return final, nil
}

func hexDigest(c sdb.Checksum) string { return hex.EncodeToString(c.Digest) }

// Digest is one entry reported by [Cache.Digests]: the algorithm and digest
// encoded by a cached blob's path.
type Digest struct {
	Kind   sdb.HashKind
	Digest []byte
}

// Digests enumerates every (algo, digest) pair currently cached, by walking
// the directory tree. Large caches should prefer an auxiliary index (see
// [Index]) instead of calling this
// repeatedly.
func (c *Cache) Digests() ([]Digest, error) {
	var out []Digest
	algoDirs, err := os.ReadDir(c.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &errs.IO{Err: err}
	}
	for _, ad := range algoDirs {
		if !ad.IsDir() {
			continue
		}
		kind := sdb.HashKind(ad.Name())
		entries, err := os.ReadDir(filepath.Join(c.Root, ad.Name()))
		if err != nil {
			return nil, &errs.IO{Err: err}
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			d, err := hex.DecodeString(e.Name())
			if err != nil {
				continue // Not a digest-named file (e.g. a leftover temp file).
			}
			out = append(out, Digest{Kind: kind, Digest: d})
		}
	}
	return out, nil
}

// Remove deletes the cached blob for csum, if present. Removing an absent
// blob is not an error.
func (c *Cache) Remove(csum sdb.Checksum) error {
	p := c.path(csum.Kind, csum.Digest)
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return &errs.IO{Err: err}
	}
	return nil
}

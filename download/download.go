// Package download implements the download policy (C4): four cache modes
// layered over the URL fetcher (C3) and a relational URL cache, returning a
// byte source.
package download

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/fetch"
)

// Mode selects how aggressively a cached URL-cache entry is trusted.
type Mode int

const (
	// NoCache never reads or writes the DB URL cache; every call hits the
	// network. Used for large artifacts (RPMs) whose caching is the file
	// cache's job (C2), not the URL cache's.
	NoCache Mode = iota
	// CheckCache issues a HEAD first; only trusts the DB entry when its
	// stored length and last-modified agree with the network's.
	CheckCache
	// AlwaysCache trusts any existing DB entry unconditionally; fetches
	// and stores on a miss.
	AlwaysCache
	// OnlyCache never opens a socket; fails with *errs.NotCached on a
	// miss.
	OnlyCache
)

// URLCache is the subset of the relational store (C11) this package needs:
// url_cache_fetch and url_cache_update.
type URLCache interface {
	// Fetch returns the cached body for url, if any entry exists.
	Fetch(ctx context.Context, url string) ([]byte, bool, error)
	// FetchExpected returns the cached body for url only if its recorded
	// length and last-modified time match the given values exactly.
	FetchExpected(ctx context.Context, url string, length int64, lastModified time.Time) ([]byte, bool, error)
	// Update stores (or replaces) the cached body and last-modified time
	// for url.
	Update(ctx context.Context, url string, data []byte, lastModified time.Time) error
}

// Download fetches url under the given mode, consulting/populating cache as
// mode dictates. The caller must close the returned reader.
func Download(ctx context.Context, client *fetch.Client, cache URLCache, mode Mode, url string) (io.ReadCloser, error) {
	switch mode {
	case OnlyCache, AlwaysCache:
		data, ok, err := cache.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		if ok {
			return io.NopCloser(bytes.NewReader(data)), nil
		}
		if mode == OnlyCache {
			return nil, &errs.NotCached{URL: url}
		}
		return fetchAndStore(ctx, client, cache, url)
	case CheckCache:
		head, err := client.Head(ctx, url, nil)
		if err == nil && !head.LastModified.IsZero() && head.Length != sdb.NoLength {
			data, ok, ferr := cache.FetchExpected(ctx, url, head.Length, head.LastModified)
			if ferr != nil {
				return nil, ferr
			}
			if ok {
				return io.NopCloser(bytes.NewReader(data)), nil
			}
		}
		return fetchAndStore(ctx, client, cache, url)
	case NoCache:
		res, err := client.Get(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		return res.Body, nil
	default:
		return nil, &errs.Internal{Msg: fmt.Sprintf("download: unknown mode %d", mode)}
	}
}

// fetchAndStore performs a network GET and returns a body that, once fully
// drained, writes the accumulated bytes and the response's last-modified
// time into cache.
func fetchAndStore(ctx context.Context, client *fetch.Client, cache URLCache, url string) (io.ReadCloser, error) {
	res, err := client.Get(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &cachingBody{ctx: ctx, body: res.Body, cache: cache, url: url, lastMod: res.LastModified}, nil
}

// cachingBody tees a response body into an in-memory buffer, writing it to
// the URL cache on the first end-of-stream Read.
type cachingBody struct {
	ctx     context.Context
	body    io.ReadCloser
	buf     bytes.Buffer
	cache   URLCache
	url     string
	lastMod time.Time
	stored  bool
}

func (b *cachingBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if n > 0 {
		b.buf.Write(p[:n])
	}
	if err == io.EOF && !b.stored {
		b.stored = true
		if uerr := b.cache.Update(b.ctx, b.url, b.buf.Bytes(), b.lastMod); uerr != nil {
			return n, uerr
		}
	}
	return n, err
}

func (b *cachingBody) Close() error { return b.body.Close() }

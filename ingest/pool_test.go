package ingest

import (
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/fetch"
	"github.com/symboldb/symboldb/filecache"
	"github.com/symboldb/symboldb/repomd"
)

func sha256Checksum(data []byte) sdb.Checksum {
	sum := sha256.Sum256(data)
	return sdb.Checksum{Kind: sdb.SHA256, Digest: sum[:], Length: int64(len(data))}
}

func newDriver(t *testing.T) (*Driver, *fakeStore) {
	t.Helper()
	fc, err := filecache.New(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	st := newFakeStore()
	return New(st, fc, fetch.New()), st
}

func TestDownloadURLShortCircuitsOnKnownDigest(t *testing.T) {
	d, st := newDriver(t)
	desc := &repomd.Descriptor{
		Info:     sdb.Package{Name: "foo"},
		Location: "http://127.0.0.1:0/unreachable.rpm",
		Checksum: sha256Checksum([]byte("body")),
	}
	st.markKnown(desc.Checksum, 42)

	c, err := d.downloadURL(context.Background(), desc, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if c.PackageID != 42 {
		t.Fatalf("PackageID = %d, want 42", c.PackageID)
	}
	if c.Path != "" {
		t.Fatalf("Path = %q, want empty when short-circuited", c.Path)
	}
}

func TestDownloadURLReusesFileCache(t *testing.T) {
	d, _ := newDriver(t)
	body := []byte("cached-body")
	csum := sha256Checksum(body)

	adder, err := d.FileCache.Add(csum.Kind)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := adder.Write(body); err != nil {
		t.Fatal(err)
	}
	if _, err := adder.Finish(context.Background(), csum); err != nil {
		t.Fatal(err)
	}

	desc := &repomd.Descriptor{
		Info:     sdb.Package{Name: "foo"},
		Location: "http://127.0.0.1:0/unreachable.rpm",
		Checksum: csum,
	}
	c, err := d.downloadURL(context.Background(), desc, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if c.Path == "" {
		t.Fatal("expected a file-cache path, got empty")
	}
	if c.PackageID != 0 {
		t.Fatalf("PackageID = %d, want 0 (not yet interned)", c.PackageID)
	}
}

func TestDownloadURLFetchesAndCaches(t *testing.T) {
	d, _ := newDriver(t)
	body := []byte("fresh-body")
	csum := sha256Checksum(body)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	desc := &repomd.Descriptor{
		Info:     sdb.Package{Name: "foo"},
		Location: srv.URL,
		Checksum: csum,
	}
	c, err := d.downloadURL(context.Background(), desc, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if c.Path == "" {
		t.Fatal("expected a file-cache path after download")
	}
	got, err := os.ReadFile(c.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(body) {
		t.Fatalf("cached body = %q, want %q", got, body)
	}
	if _, ok := d.FileCache.Lookup(csum); !ok {
		t.Fatal("file cache should now contain the digest")
	}
}

func TestDownloadURLNoNetMissIsNotCached(t *testing.T) {
	d, _ := newDriver(t)
	desc := &repomd.Descriptor{
		Info:     sdb.Package{Name: "foo"},
		Location: "http://127.0.0.1:0/unreachable.rpm",
		Checksum: sha256Checksum([]byte("absent")),
	}
	_, err := d.downloadURL(context.Background(), desc, Options{NoNet: true})
	if err == nil {
		t.Fatal("expected an error for an uncached URL under NoNet")
	}
	var notCached *errs.NotCached
	if !errors.As(err, &notCached) {
		t.Fatalf("got %T, want *errs.NotCached", err)
	}
}

func TestDownloadURLChecksumMismatchIsRetryable(t *testing.T) {
	d, _ := newDriver(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("wrong-body"))
	}))
	defer srv.Close()

	desc := &repomd.Descriptor{
		Info:     sdb.Package{Name: "foo"},
		Location: srv.URL,
		Checksum: sha256Checksum([]byte("expected-body")),
	}
	_, err := d.downloadURL(context.Background(), desc, Options{})
	if err == nil {
		t.Fatal("expected a checksum mismatch error")
	}
	if !isRetryable(err) {
		t.Fatalf("expected checksum mismatch to be retryable, got %T: %v", err, err)
	}
}

func TestRunRoundCollectsAlreadyKnownDigestsWithoutLoading(t *testing.T) {
	d, st := newDriver(t)
	descs := make([]*repomd.Descriptor, 3)
	for i := range descs {
		csum := sha256Checksum([]byte{byte(i)})
		st.markKnown(csum, int64(100+i))
		descs[i] = &repomd.Descriptor{
			Info:     sdb.Package{Name: "pkg"},
			Location: "http://127.0.0.1:0/unreachable.rpm",
			Checksum: csum,
		}
	}

	retry, loaded, err := d.runRound(context.Background(), descs, Options{DownloadThreads: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(retry) != 0 {
		t.Fatalf("retry = %v, want none", retry)
	}
	if len(loaded) != 3 {
		t.Fatalf("loaded = %v, want 3 entries", loaded)
	}
}

func TestRunRoundRetriesNetworkFailures(t *testing.T) {
	d, _ := newDriver(t)
	descs := []*repomd.Descriptor{
		{
			Info:     sdb.Package{Name: "unreachable"},
			Location: "http://127.0.0.1:1/definitely-unreachable.rpm",
			Checksum: sha256Checksum([]byte("x")),
		},
	}
	retry, loaded, err := d.runRound(context.Background(), descs, Options{DownloadThreads: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 0 {
		t.Fatalf("loaded = %v, want none", loaded)
	}
	if len(retry) != 1 {
		t.Fatalf("retry = %v, want the one failing URL", retry)
	}
}

func TestIsRetryableAndIsMalformed(t *testing.T) {
	if !isRetryable(&errs.Network{URL: "x"}) {
		t.Error("*errs.Network should be retryable")
	}
	if !isRetryable(&errs.ChecksumMismatch{}) {
		t.Error("*errs.ChecksumMismatch should be retryable")
	}
	if !isRetryable(&errs.NotCached{}) {
		t.Error("*errs.NotCached should be retryable")
	}
	if isRetryable(&errs.DB{Err: io.EOF}) {
		t.Error("*errs.DB should not be retryable")
	}
	if !isMalformed(&errs.Malformed{Of: errs.MalformedRPM}) {
		t.Error("*errs.Malformed should be malformed")
	}
	if isMalformed(&errs.Network{URL: "x"}) {
		t.Error("*errs.Network should not be malformed")
	}
}


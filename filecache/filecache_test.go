package filecache

import (
	"context"
	"os"
	"testing"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/byteio"
)

func TestAddAndLookupRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, false)
	if err != nil {
		t.Fatal(err)
	}

	body := []byte("hello, cache")
	a, err := c.Add(sdb.SHA256)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Write(body); err != nil {
		t.Fatal(err)
	}
	want := sdb.Checksum{Kind: sdb.SHA256, Digest: sha256Of(body), Length: int64(len(body))}
	path, err := a.Finish(context.Background(), want)
	if err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(body) {
		t.Fatalf("got %q, want %q", got, body)
	}

	p2, ok := c.Lookup(want)
	if !ok || p2 != path {
		t.Fatalf("Lookup(%v) = %q, %v", want, p2, ok)
	}
}

func TestFinishRejectsLengthMismatch(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	a, err := c.Add(sdb.SHA256)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Write([]byte("short")); err != nil {
		t.Fatal(err)
	}
	want := sdb.Checksum{Kind: sdb.SHA256, Digest: sha256Of([]byte("short")), Length: 9999}
	if _, err := a.Finish(context.Background(), want); err == nil {
		t.Fatal("expected a checksum mismatch error")
	}
}

func TestDigestsEnumeratesAdded(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	a, err := c.Add(sdb.SHA256)
	if err != nil {
		t.Fatal(err)
	}
	body := []byte("digest me")
	if _, err := a.Write(body); err != nil {
		t.Fatal(err)
	}
	want := sdb.Checksum{Kind: sdb.SHA256, Digest: sha256Of(body), Length: int64(len(body))}
	if _, err := a.Finish(context.Background(), want); err != nil {
		t.Fatal(err)
	}

	digests, err := c.Digests()
	if err != nil {
		t.Fatal(err)
	}
	if len(digests) != 1 || digests[0].Kind != sdb.SHA256 {
		t.Fatalf("got %+v", digests)
	}
}

func sha256Of(b []byte) []byte {
	s, err := byteio.NewHashingSink(sdb.SHA256)
	if err != nil {
		panic(err)
	}
	s.Write(b)
	return s.Checksum().Digest
}

package byteio

import (
	"bytes"
	"compress/gzip"
	"encoding/hex"
	"io"
	"testing"

	sdb "github.com/symboldb/symboldb"
)

func TestHashingSinkChecksum(t *testing.T) {
	s, err := NewHashingSink(sdb.SHA256)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write([]byte("hello world")); err != nil {
		t.Fatal(err)
	}
	if err := s.Finish(); err != nil {
		t.Fatal(err)
	}
	const want = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	got := hex.EncodeToString(s.Checksum().Digest)
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
	if s.Len() != 11 {
		t.Fatalf("got length %d, want 11", s.Len())
	}
}

func TestHashingSinkUnsupported(t *testing.T) {
	if _, err := NewHashingSink("crc32"); err == nil {
		t.Fatal("expected an error for an unsupported algorithm")
	}
}

func TestTeeSinkWritesBoth(t *testing.T) {
	a, err := NewHashingSink(sdb.SHA256)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewHashingSink(sdb.MD5)
	if err != nil {
		t.Fatal(err)
	}
	tee := NewTeeSink(a, b)
	if _, err := tee.Write([]byte("data")); err != nil {
		t.Fatal(err)
	}
	if err := tee.Finish(); err != nil {
		t.Fatal(err)
	}
	if a.Len() != 4 || b.Len() != 4 {
		t.Fatalf("got lengths %d, %d, want 4, 4", a.Len(), b.Len())
	}
}

func TestGzipSource(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte("inflate me")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	src, err := NewGzipSource(&buf)
	if err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 10)
	if _, err := io.ReadFull(src, got); err != nil {
		t.Fatal(err)
	}
	if string(got) != "inflate me" {
		t.Fatalf("got %q", got)
	}
}

package cpio

import (
	"bytes"
	"fmt"
	"io"
	"testing"
)

// buildEntry appends one newc-format entry (header + name + padding +
// content + padding) to buf.
func buildEntry(buf *bytes.Buffer, name string, content []byte, ino int64, nlink, mode int32) {
	fields := []int64{ino, int64(mode), 0, 0, int64(nlink), 0, int64(len(content)), 0, 0, 0, 0, int64(len(name) + 1), 0}
	buf.WriteString(magicNewc)
	for _, f := range fields {
		fmt.Fprintf(buf, "%08X", uint32(f))
	}
	buf.WriteString(name)
	buf.WriteByte(0)
	consumed := headerLen + len(name) + 1
	if pad := consumed % 4; pad != 0 {
		buf.Write(make([]byte, 4-pad))
	}
	buf.Write(content)
	if pad := len(content) % 4; pad != 0 {
		buf.Write(make([]byte, 4-pad))
	}
}

type namedEntry struct {
	name    string
	content []byte
}

func buildArchive(entries []namedEntry) []byte {
	var buf bytes.Buffer
	for i, e := range entries {
		buildEntry(&buf, e.name, e.content, int64(i+1), 1, 0100644)
	}
	buildEntry(&buf, Trailer, nil, 0, 1, 0)
	return buf.Bytes()
}

func TestReaderRoundTrip(t *testing.T) {
	archive := buildArchive([]namedEntry{{"./usr/bin/hello", []byte("hello world")}})

	r := NewReader(bytes.NewReader(archive))
	h, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if h.Name != "./usr/bin/hello" {
		t.Fatalf("got name %q", h.Name)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("got content %q", got)
	}

	h, err = r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if h.Name != Trailer {
		t.Fatalf("got %q, want trailer", h.Name)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("got %v, want io.EOF", err)
	}
}

func TestReaderSkipsUnreadContent(t *testing.T) {
	archive := buildArchive([]namedEntry{
		{"./a", []byte("first entry content")},
		{"./b", []byte("second")},
	})
	r := NewReader(bytes.NewReader(archive))
	if _, err := r.Next(); err != nil {
		t.Fatal(err)
	}
	// Don't read "./a"'s content; Next must skip it and its padding.
	h, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if h.Name != "./b" {
		t.Fatalf("got %q, want ./b", h.Name)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Fatalf("got content %q", got)
	}
}

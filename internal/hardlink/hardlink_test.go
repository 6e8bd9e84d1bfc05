package hardlink

import (
	"bytes"
	"testing"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/internal/rpm"
	"github.com/symboldb/symboldb/internal/rpm/cpio"
)

func TestFeedNonHardlinkEmitsImmediately(t *testing.T) {
	files := []rpm.FileInfo{{Path: "usr/bin/hello", Mode: 0100755, NLinks: -1}}
	r := New(files)
	h := &cpio.Header{Name: "./usr/bin/hello", NLink: 1, Ino: 5, Size: 5}
	out, err := r.Feed(h, bytes.NewReader([]byte("hello")))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d entries, want 1", len(out))
	}
	if out[0].Info.Path != "usr/bin/hello" {
		t.Fatalf("got path %q", out[0].Info.Path)
	}
}

func TestFeedHardlinkGroupClosesOnLastOccurrence(t *testing.T) {
	files := []rpm.FileInfo{
		{Path: "a", Mode: 0100644, NLinks: 2},
		{Path: "b", Mode: 0100644, NLinks: 2},
	}
	r := New(files)

	out, err := r.Feed(&cpio.Header{Name: "./a", NLink: 2, Ino: 7, Size: 0}, bytes.NewReader(nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatalf("got %d entries before group closed, want 0", len(out))
	}

	out, err = r.Feed(&cpio.Header{Name: "./b", NLink: 2, Ino: 7, Size: 4}, bytes.NewReader([]byte("data")))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d entries, want 2", len(out))
	}
	if out[0].Checksum.String() != out[1].Checksum.String() {
		t.Fatalf("hard-linked entries should share a checksum")
	}
}

func TestGhostsEmittedForUnseenPaths(t *testing.T) {
	files := []rpm.FileInfo{
		{Path: "seen", Mode: 0100644, NLinks: -1},
		{Path: "ghost", Mode: 0100644, NLinks: -1, Flags: sdb.FlagGhost},
	}
	r := New(files)
	if _, err := r.Feed(&cpio.Header{Name: "./seen", NLink: 1, Ino: 1, Size: 1}, bytes.NewReader([]byte("x"))); err != nil {
		t.Fatal(err)
	}
	ghosts := r.Ghosts()
	if len(ghosts) != 1 || ghosts[0].Info.Path != "ghost" {
		t.Fatalf("got %+v", ghosts)
	}
	if ghosts[0].Checksum.String() != sdb.EmptyContentsChecksum().String() {
		t.Fatalf("ghost checksum should be the fixed empty digest")
	}
}

func TestFeedUnknownNameIsMalformed(t *testing.T) {
	r := New(nil)
	if _, err := r.Feed(&cpio.Header{Name: "./missing", NLink: 1, Size: 0}, bytes.NewReader(nil)); err == nil {
		t.Fatal("expected an error for a name absent from the header file table")
	}
}

package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/fetch"
	"github.com/symboldb/symboldb/filecache"
	"github.com/symboldb/symboldb/internal/hardlink"
	"github.com/symboldb/symboldb/internal/rpm"
	"github.com/symboldb/symboldb/pyimport"
)

func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	fc, err := filecache.New(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	return &Driver{Store: newFakeStore(), FileCache: fc, Client: fetch.New(), Python: &pyimport.Analyzer{}}
}

// modeFor builds a raw POSIX mode value with the given format bits and
// permission bits, matching how rpm.FileInfo.Mode is populated from the
// header's TagFileModes.
func modeFor(fmtBits uint32) uint32 { return fmtBits | 0644 }

func TestStoreEntryDirectoryAndSymlink(t *testing.T) {
	d := newTestDriver(t)
	tx := &fakeTx{store: d.Store.(*fakeStore), id: 1}
	content := map[string][]byte{}
	analyzed := map[string]bool{}

	dirEntry := hardlink.Entry{Info: rpm.FileInfo{Path: "/usr/lib", Mode: modeFor(modeDir)}}
	if err := d.storeEntry(context.Background(), tx, 1, dirEntry, content, analyzed); err != nil {
		t.Fatal(err)
	}

	linkEntry := hardlink.Entry{Info: rpm.FileInfo{Path: "/usr/lib/libfoo.so", Mode: modeFor(modeLnk), LinkTo: "libfoo.so.1"}}
	if err := d.storeEntry(context.Background(), tx, 1, linkEntry, content, analyzed); err != nil {
		t.Fatal(err)
	}
}

func TestStoreEntryAnalyzesFreshContentOnly(t *testing.T) {
	d := newTestDriver(t)
	tx := &fakeTx{store: d.Store.(*fakeStore), id: 1}

	data := append([]byte{0x7f, 'E', 'L', 'F'}, make([]byte, 16)...)
	sum := sha256.Sum256(data)
	csum := sdb.Checksum{Kind: sdb.SHA256, Digest: sum[:], Length: int64(len(data))}
	key := hex.EncodeToString(csum.Digest)

	content := map[string][]byte{key: data}
	analyzed := map[string]bool{}

	entry := hardlink.Entry{
		Info:     rpm.FileInfo{Path: "/usr/lib/libfoo.so.1", Mode: modeFor(0)},
		Checksum: csum,
	}

	if err := d.storeEntry(context.Background(), tx, 1, entry, content, analyzed); err != nil {
		t.Fatal(err)
	}
	if !analyzed[key] {
		t.Fatal("expected the content digest to be marked analyzed")
	}

	// A second occurrence of the same content (e.g. another hard-link path
	// sharing the digest) must not re-dispatch to the analyzer; storeEntry
	// should return cleanly without needing content[key] again.
	delete(content, key)
	if err := d.storeEntry(context.Background(), tx, 1, entry, content, analyzed); err != nil {
		t.Fatal(err)
	}
}

func TestStoreEntrySkipsGhostWithNoContent(t *testing.T) {
	d := newTestDriver(t)
	tx := &fakeTx{store: d.Store.(*fakeStore), id: 1}

	entry := hardlink.Entry{
		Info:     rpm.FileInfo{Path: "/usr/share/ghost", Mode: modeFor(0)},
		Checksum: sdb.EmptyContentsChecksum(),
	}
	content := map[string][]byte{}
	analyzed := map[string]bool{}

	// No content entry exists for the empty-SHA-256 ghost checksum, so
	// storeEntry must not attempt to analyze it.
	if err := d.storeEntry(context.Background(), tx, 1, entry, content, analyzed); err != nil {
		t.Fatal(err)
	}
	key := hex.EncodeToString(entry.Checksum.Digest)
	if analyzed[key] {
		t.Fatal("a ghost with no captured content should not be marked analyzed")
	}
}

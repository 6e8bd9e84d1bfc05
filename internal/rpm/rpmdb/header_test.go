package rpmdb

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// putEntry appends one on-disk EntryInfo (tag, type, offset, count) to buf.
func putEntry(buf *bytes.Buffer, tag Tag, typ Kind, offset int32, count uint32) {
	var b [entryInfoSize]byte
	binary.BigEndian.PutUint32(b[0:4], uint32(tag))
	binary.BigEndian.PutUint32(b[4:8], uint32(typ))
	binary.BigEndian.PutUint32(b[8:12], uint32(offset))
	binary.BigEndian.PutUint32(b[12:16], count)
	buf.Write(b[:])
}

// buildHeader assembles a minimal, well-formed header blob: a region tag
// holding one TagName string entry, plus the region trailer.
func buildHeader(t *testing.T, name string) []byte {
	t.Helper()

	var data bytes.Buffer
	data.WriteString(name)
	data.WriteByte(0)
	trailerOff := int32(data.Len())
	const nTags = 2
	putEntry(&data, TagHeaderImmutable, TypeRegionTag, -int32(nTags*entryInfoSize), regionTagCount)

	var tags bytes.Buffer
	putEntry(&tags, TagHeaderImmutable, TypeBin, trailerOff, regionTagCount)
	putEntry(&tags, TagName, TypeString, 0, 1)

	var out bytes.Buffer
	var pre [preambleSize]byte
	binary.BigEndian.PutUint32(pre[0:4], nTags)
	binary.BigEndian.PutUint32(pre[4:8], uint32(data.Len()))
	out.Write(pre[:])
	out.Write(tags.Bytes())
	out.Write(data.Bytes())
	return out.Bytes()
}

const regionTagCount = 16

func TestParseHeader(t *testing.T) {
	ctx := t.Context()
	blob := buildHeader(t, "test-pkg")

	h, err := ParseHeader(ctx, bytes.NewReader(blob))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(h.Infos), 2; got != want {
		t.Fatalf("got %d infos, want %d", got, want)
	}

	e := &h.Infos[1]
	if e.Tag != TagName || e.Type != TypeString {
		t.Errorf("unexpected entry: %s", e)
	}
	v, err := h.ReadData(ctx, e)
	if err != nil {
		t.Fatal(err)
	}
	name, ok := v.(string)
	if !ok {
		t.Fatalf("ReadData returned %T, want string", v)
	}
	if name != "test-pkg" {
		t.Errorf("got name %q, want %q", name, "test-pkg")
	}
}

func TestParseHeaderTruncated(t *testing.T) {
	ctx := t.Context()
	blob := buildHeader(t, "test-pkg")
	if _, err := ParseHeader(ctx, bytes.NewReader(blob[:len(blob)-4])); err == nil {
		t.Fatal("expected error parsing truncated header")
	}
}

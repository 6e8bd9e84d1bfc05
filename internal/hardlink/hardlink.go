// Package hardlink reconstructs inode identity across a CPIO stream (C8):
// entries sharing an inode and carrying nlinks > 1 are grouped, and once the
// N-th occurrence of that inode has been seen, every recorded occurrence is
// released paired with the one CPIO entry that actually carried content.
package hardlink

import (
	"fmt"
	"io"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/byteio"
	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/internal/rpm"
	"github.com/symboldb/symboldb/internal/rpm/cpio"
)

// Entry pairs a header-derived [rpm.FileInfo] with the contents it resolved
// to: either read from the CPIO payload, or the fixed empty digest for a
// ghost file.
type Entry struct {
	Info     rpm.FileInfo
	Checksum sdb.Checksum
	Preview  []byte
}

type group struct {
	nlinks int32
	seen   []rpm.FileInfo
	// content is populated by whichever occurrence carries size > 0.
	haveContent bool
	checksum    sdb.Checksum
	preview     []byte
}

// Reconstructor consumes CPIO entries in stream order, matching each by name
// against the header's file table, and yields completed [Entry] values as
// hard-link groups close.
type Reconstructor struct {
	byPath map[string]rpm.FileInfo
	groups map[int64]*group
	done   map[string]bool
}

// New builds a Reconstructor over the header's file table.
func New(files []rpm.FileInfo) *Reconstructor {
	byPath := make(map[string]rpm.FileInfo, len(files))
	for _, fi := range files {
		byPath[fi.Path] = fi
	}
	return &Reconstructor{
		byPath: byPath,
		groups: make(map[int64]*group),
		done:   make(map[string]bool),
	}
}

// trimName strips the "./" CPIO conventionally prefixes payload names with.
func trimName(name string) string {
	for len(name) >= 2 && name[0] == '.' && name[1] == '/' {
		name = name[2:]
	}
	return name
}

// Feed processes one CPIO entry (header already read via cr.Next) and
// returns zero or more Entry values that became ready as a result —
// immediately, for a non-hardlinked file, or because this was the occurrence
// that closed out its inode group.
func (r *Reconstructor) Feed(h *cpio.Header, cr io.Reader) ([]Entry, error) {
	name := trimName(h.Name)
	if name == cpio.Trailer {
		return nil, nil
	}
	fi, ok := r.byPath[name]
	if !ok {
		return nil, &errs.Malformed{Of: errs.MalformedRPM, Msg: fmt.Sprintf("cpio entry %q not present in header file table", name)}
	}
	r.done[name] = true

	sink, err := byteio.NewHashingSink(sdb.SHA256)
	if err != nil {
		return nil, err
	}
	preview := make([]byte, 0, sdb.PreviewSize)
	pr := &previewingWriter{sink: sink, want: sdb.PreviewSize, buf: &preview}
	if _, err := io.Copy(pr, io.LimitReader(cr, h.Size)); err != nil {
		return nil, fmt.Errorf("hardlink: reading %q: %w", name, err)
	}
	csum := sink.Checksum()

	if h.NLink <= 1 || h.Ino == 0 {
		return []Entry{{Info: fi, Checksum: csum, Preview: preview}}, nil
	}

	g, ok := r.groups[h.Ino]
	if !ok {
		g = &group{nlinks: h.NLink}
		r.groups[h.Ino] = g
	}
	if err := validateMember(g, fi); err != nil {
		return nil, err
	}
	g.seen = append(g.seen, fi)
	if h.Size > 0 && !g.haveContent {
		g.haveContent = true
		g.checksum = csum
		g.preview = preview
	}

	if int32(len(g.seen)) < g.nlinks {
		return nil, nil
	}
	delete(r.groups, h.Ino)
	if !g.haveContent {
		// All N occurrences had zero size; use the last-computed (empty)
		// digest as the content, matching a zero-length shared inode.
		g.checksum = csum
		g.preview = preview
	}
	out := make([]Entry, len(g.seen))
	for i, info := range g.seen {
		out[i] = Entry{Info: info, Checksum: g.checksum, Preview: g.preview}
	}
	return out, nil
}

// Ghosts returns one Entry per header file never seen in the payload,
// carrying the fixed empty-SHA-256 digest. Call this after all CPIO
// entries have been fed.
func (r *Reconstructor) Ghosts() []Entry {
	var out []Entry
	for path, fi := range r.byPath {
		if r.done[path] {
			continue
		}
		out = append(out, Entry{Info: fi, Checksum: sdb.EmptyContentsChecksum()})
	}
	return out
}

// validateMember checks that a later occurrence of a hard-linked inode
// agrees with the first occurrence's recorded attributes.
func validateMember(g *group, fi rpm.FileInfo) error {
	if len(g.seen) == 0 {
		return nil
	}
	first := g.seen[0]
	if first.Mode != fi.Mode || first.User != fi.User || first.Group != fi.Group ||
		first.MTime != fi.MTime || first.NLinks != fi.NLinks {
		return &errs.Malformed{Of: errs.MalformedRPM, Msg: fmt.Sprintf("hard-linked file %q disagrees with %q on recorded attributes", fi.Path, first.Path)}
	}
	return nil
}

// previewingWriter tees writes into a hashing sink while capturing up to
// want leading bytes into *buf.
type previewingWriter struct {
	sink *byteio.HashingSink
	want int
	buf  *[]byte
}

func (p *previewingWriter) Write(b []byte) (int, error) {
	if len(*p.buf) < p.want {
		n := p.want - len(*p.buf)
		if n > len(b) {
			n = len(b)
		}
		*p.buf = append(*p.buf, b[:n]...)
	}
	return p.sink.Write(b)
}

// Package byteio implements the byte-stream abstractions of C1: a pull-model
// source, a push-model sink, a gzip-inflating source wrapper, a hashing sink
// that accumulates a content digest and byte count, and a tee sink that fans
// a write out to two sinks.
//
// Everything here is synchronous: a [Source] is just an [io.Reader] and a
// [Sink] just an [io.Writer] with a Finish step, so the rest of the module
// composes these with ordinary io helpers (io.Copy, io.TeeReader) rather than
// a bespoke interface hierarchy.
package byteio

import (
	"compress/gzip"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"hash"
	"io"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/errs"
)

// Source is a pull-model byte producer. End-of-stream is signaled the usual
// Go way, via io.EOF.
type Source = io.Reader

// Sink is a push-model byte consumer that must be finalized once all bytes
// have been written.
type Sink interface {
	io.Writer
	// Finish completes the sink. Sinks that only accumulate in memory (like
	// [HashingSink]) never fail here; sinks that flush to durable storage
	// may.
	Finish() error
}

// NewGzipSource wraps r, inflating a gzip stream. Finalization (detecting a
// truncated stream) happens naturally: a short gzip stream surfaces
// io.ErrUnexpectedEOF from the returned reader's final Read.
func NewGzipSource(r Source) (Source, error) {
	return gzip.NewReader(r)
}

// HashingSink accumulates an incremental digest over everything written to
// it, plus a running byte count, used by [github.com/symboldb/symboldb/filecache]
// to verify an added blob against its expected checksum.
type HashingSink struct {
	kind sdb.HashKind
	h    hash.Hash
	n    int64
}

// NewHashingSink returns a HashingSink for the given algorithm.
func NewHashingSink(kind sdb.HashKind) (*HashingSink, error) {
	var h hash.Hash
	switch kind {
	case sdb.MD5:
		h = md5.New()
	case sdb.SHA1:
		h = sha1.New()
	case sdb.SHA256:
		h = sha256.New()
	default:
		return nil, &errs.UnsupportedHash{Algo: string(kind)}
	}
	return &HashingSink{kind: kind, h: h}, nil
}

// Write implements [io.Writer].
func (s *HashingSink) Write(p []byte) (int, error) {
	n, err := s.h.Write(p)
	s.n += int64(n)
	return n, err
}

// Finish implements [Sink]. A HashingSink never fails to finish; the digest
// is available via [HashingSink.Checksum] immediately after.
func (s *HashingSink) Finish() error { return nil }

// Len reports the number of bytes written so far.
func (s *HashingSink) Len() int64 { return s.n }

// Checksum returns the checksum of everything written so far. Calling it
// does not reset the underlying hash; like [hash.Hash.Sum], further writes
// continue accumulating into the same digest.
func (s *HashingSink) Checksum() sdb.Checksum {
	return sdb.Checksum{Kind: s.kind, Digest: s.h.Sum(nil), Length: s.n}
}

// TeeSink fans writes out to two sinks, e.g. a [HashingSink] computing the
// file's content digest alongside a sink that spools the bytes to disk.
type TeeSink struct {
	a, b Sink
}

// NewTeeSink returns a sink that writes every byte to both a and b.
func NewTeeSink(a, b Sink) *TeeSink {
	return &TeeSink{a: a, b: b}
}

// Write implements [io.Writer]. A short write or error from either sink
// aborts without writing to the other.
func (t *TeeSink) Write(p []byte) (int, error) {
	n, err := t.a.Write(p)
	if err != nil {
		return n, err
	}
	if n != len(p) {
		return n, io.ErrShortWrite
	}
	return t.b.Write(p)
}

// Finish finishes both sinks, a before b, returning the first error.
func (t *TeeSink) Finish() error {
	if err := t.a.Finish(); err != nil {
		return err
	}
	return t.b.Finish()
}

// Package errs defines the error taxonomy shared across the ingestion
// pipeline.
//
// Each kind is a distinct type implementing error and an unexported
// "kind() errKind" method, so the CLI can map any returned error to a single
// exit code and log prefix via [ExitCode] and [Prefix] without the two
// concerns drifting apart.
package errs

import "fmt"

type errKind uint8

const (
	kindUsage errKind = iota
	kindConfig
	kindNetwork
	kindNotCached
	kindMalformed
	kindUnsupportedHash
	kindChecksumMismatch
	kindIO
	kindDB
	kindInternal
)

// classified is implemented by every error type in this package.
type classified interface {
	error
	kind() errKind
}

// Usage signals a bad CLI invocation.
type Usage struct{ Msg string }

func (e *Usage) Error() string { return "usage: " + e.Msg }
func (*Usage) kind() errKind   { return kindUsage }

// Config signals a bad configuration value (e.g. an unusable cache
// directory).
type Config struct{ Msg string }

func (e *Config) Error() string { return "config: " + e.Msg }
func (*Config) kind() errKind   { return kindConfig }

// Network wraps a transport/protocol failure from the URL fetcher (C3),
// carrying the fields that need to be surfaced: URL, status, and remote
// endpoint.
type Network struct {
	URL        string
	FinalURL   string // After following redirects, if different.
	StatusCode int    // Zero when the failure predates a response.
	RemoteAddr string
	Err        error
}

func (e *Network) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("network: %s (status %d, remote %s): %v", e.URL, e.StatusCode, e.RemoteAddr, e.Err)
	default:
		return fmt.Sprintf("network: %s: %v", e.URL, e.Err)
	}
}
func (e *Network) Unwrap() error { return e.Err }
func (*Network) kind() errKind   { return kindNetwork }

// NotCached signals that [download.OnlyCache] was requested but no cached
// copy exists.
type NotCached struct{ URL string }

func (e *NotCached) Error() string { return "not cached: " + e.URL }
func (*NotCached) kind() errKind   { return kindNotCached }

// MalformedKind further classifies a [Malformed] error.
type MalformedKind string

// Malformed-input sub-kinds, one per wire format the core parses.
const (
	MalformedRPM   MalformedKind = "rpm"
	MalformedCPIO  MalformedKind = "cpio"
	MalformedELF   MalformedKind = "elf"
	MalformedZip   MalformedKind = "zip"
	MalformedClass MalformedKind = "class"
	MalformedXML   MalformedKind = "xml"
)

// Malformed signals a structural parse failure in untrusted binary or XML
// input.
type Malformed struct {
	Of  MalformedKind
	Msg string
	Err error
}

func (e *Malformed) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed %s: %s: %v", e.Of, e.Msg, e.Err)
	}
	return fmt.Sprintf("malformed %s: %s", e.Of, e.Msg)
}
func (e *Malformed) Unwrap() error { return e.Err }
func (*Malformed) kind() errKind   { return kindMalformed }

// UnsupportedHash signals a digest algorithm id the cache or RPM parser
// doesn't know how to compute.
type UnsupportedHash struct{ Algo string }

func (e *UnsupportedHash) Error() string { return "unsupported hash algorithm: " + e.Algo }
func (*UnsupportedHash) kind() errKind   { return kindUnsupportedHash }

// ChecksumMismatch signals that [filecache.Cache.Add]'s finish step found a
// digest or length that didn't match the expected [symboldb.Checksum].
type ChecksumMismatch struct {
	Want, Got string
}

func (e *ChecksumMismatch) Error() string {
	return fmt.Sprintf("checksum mismatch: want %s, got %s", e.Want, e.Got)
}
func (*ChecksumMismatch) kind() errKind { return kindChecksumMismatch }

// IO wraps an otherwise-unclassified filesystem/transport error.
type IO struct{ Err error }

func (e *IO) Error() string { return "io: " + e.Err.Error() }
func (e *IO) Unwrap() error { return e.Err }
func (*IO) kind() errKind   { return kindIO }

// DB wraps a relational-store failure: it aborts the current per-package
// transaction but never the outer ingestion loop.
type DB struct{ Err error }

func (e *DB) Error() string { return "db: " + e.Err.Error() }
func (e *DB) Unwrap() error { return e.Err }
func (*DB) kind() errKind   { return kindDB }

// Internal signals a programmer error: a state that invariants say can't
// happen. It aborts the process.
type Internal struct{ Msg string }

func (e *Internal) Error() string { return "internal: " + e.Msg }
func (*Internal) kind() errKind   { return kindInternal }

// ExitCode maps any error classified by this package to a process exit
// code: 0 (handled elsewhere, on nil error), 1 for operational failures, 2
// for usage errors. Unclassified errors get 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var c classified
	if as(err, &c) && c.kind() == kindUsage {
		return 2
	}
	return 1
}

// Prefix returns the fixed stderr prefix ("error:", "warning:", "info:")
// for the given error. Non-classified errors and all
// hard failures get "error:"; only per-file/per-package soft failures that
// the caller has chosen to merely log should be passed through as
// "warning:" by the caller directly (Prefix always returns "error:" because
// by the time an error value exists, it is being reported as a failure).
func Prefix(err error) string {
	if err == nil {
		return "info:"
	}
	return "error:"
}

// as walks err's Unwrap chain and stores the first error classified by this
// package in *target, reporting whether one was found.
func as(err error, target *classified) bool {
	for err != nil {
		if c, ok := err.(classified); ok {
			*target = c
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

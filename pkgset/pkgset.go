// Package pkgset implements the package-set consolidator (C9): collapsing
// repeated (name, arch) occurrences discovered while streaming repository
// metadata down to the one carrying the greatest (epoch, version, release)
// under RPM version comparison.
package pkgset

import (
	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/internal/rpmver"
)

// Entry is one candidate seen by the consolidator: a package identity plus
// whatever payload the caller wants carried through (typically a download
// URL and checksum).
type Entry[T any] struct {
	Name    string
	Arch    string
	Epoch   string
	Version string
	Release string
	Value   T
}

func (e Entry[T]) version() rpmver.Version {
	epoch := e.Epoch
	if epoch == "" {
		epoch = "0"
	}
	return rpmver.Version{Epoch: epoch, Version: e.Version, Release: e.Release}
}

// Set keeps, for each (name, arch) key, the Entry with the greatest
// (epoch, version, release).
type Set[T any] struct {
	best map[key]Entry[T]
	// order records first-seen key order so values() is stable across a
	// single run without depending on map iteration.
	order []key
}

type key struct{ name, arch string }

// New returns an empty consolidator.
func New[T any]() *Set[T] {
	return &Set[T]{best: make(map[key]Entry[T])}
}

// Add considers e for inclusion, replacing the current survivor for its
// (name, arch) key when e's version is strictly greater.
func (s *Set[T]) Add(e Entry[T]) {
	k := key{e.Name, e.Arch}
	cur, ok := s.best[k]
	if !ok {
		s.best[k] = e
		s.order = append(s.order, k)
		return
	}
	ev, cv := e.version(), cur.version()
	if rpmver.Compare(&ev, &cv) > 0 {
		s.best[k] = e
	}
}

// Len reports the number of distinct (name, arch) keys retained.
func (s *Set[T]) Len() int { return len(s.order) }

// Values returns the surviving entries, in stable first-seen-key order, for
// reproducible tests.
func (s *Set[T]) Values() []Entry[T] {
	out := make([]Entry[T], 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.best[k])
	}
	return out
}

// Package adapts a [sdb.Package] (plus an arbitrary payload) into an Entry,
// for consolidating already-parsed packages rather than repository
// descriptors.
func Package[T any](p sdb.Package, value T) Entry[T] {
	epoch := "0"
	if p.Epoch != nil {
		epoch = itoa(*p.Epoch)
	}
	return Entry[T]{
		Name:    p.Name,
		Arch:    p.Arch,
		Epoch:   epoch,
		Version: p.Version,
		Release: p.Release,
		Value:   value,
	}
}

func itoa(v int32) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

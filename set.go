package symboldb

import "time"

// URLCacheEntry is a row in the small metadata cache: used only for
// repository-metadata artifacts, never RPM bodies.
type URLCacheEntry struct {
	URL          string
	Bytes        []byte
	FetchTime    time.Time
	LastModified time.Time
}

// PackageSet is a named, mutable collection of packages.
type PackageSet struct {
	ID      int64
	Name    string
	Members []int64 // Package ids.
}

// ClosureEdge is one row produced by the link-closure resolver
// ([github.com/symboldb/symboldb/closure]), mapping a needing file's needed
// soname to a chosen provider.
type ClosureEdge struct {
	NeedingFile int64
	Soname      string
	ChosenFile  int64

	// Conflicts lists every candidate file id that satisfied the soname and
	// class/data match, chosen file first, when there was more than one.
	Conflicts []int64

	// Missing is true when no candidate satisfied the soname at all; in that
	// case ChosenFile and Conflicts are zero/nil.
	Missing bool
}

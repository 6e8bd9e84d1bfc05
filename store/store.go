// Package store defines the relational writer (C11): the contract the
// ingestion driver (C10) and the link-closure resolver (C12) use to commit
// packages, files, symbols, and package sets.
//
// The schema DDL itself is an external collaborator, out of scope for this
// package; it only names the operations and their shapes. The concrete
// implementation lives in [github.com/symboldb/symboldb/store/postgres].
package store

import (
	"context"
	"time"

	sdb "github.com/symboldb/symboldb"
)

// FileKind distinguishes the three file-table row shapes.
type FileKind string

// File kinds.
const (
	Regular FileKind = "regular"
	Dir     FileKind = "dir"
	Symlink FileKind = "symlink"
)

// Lock is an advisory lock handle; releasing it is Close, mirroring the
// "destruction releases the lock" contract advisory locks follow elsewhere
// in this package.
type Lock interface {
	Close(ctx context.Context) error
}

// Store is the process-scoped handle onto the relational writer: package
// sets, the URL cache, expiration, and advisory locks that are not scoped to
// a single package's transaction. It also satisfies
// [github.com/symboldb/symboldb/download.URLCache].
type Store interface {
	// Begin opens a per-package transaction (C11's "idempotent and scoped
	// to per-package transactions" contract); callers issue every C11
	// write for one package through the returned Tx, then Commit or
	// Rollback it.
	Begin(ctx context.Context) (Tx, error)

	// PackageByDigest looks up a package id by an alternate full-file
	// digest.
	PackageByDigest(ctx context.Context, digest sdb.Checksum) (id int64, ok bool, err error)

	// Fetch, FetchExpected, Update implement download.URLCache
	// ("url_cache_fetch"/"url_cache_update").
	Fetch(ctx context.Context, url string) (data []byte, ok bool, err error)
	FetchExpected(ctx context.Context, url string, length int64, lastModified time.Time) (data []byte, ok bool, err error)
	Update(ctx context.Context, url string, data []byte, lastModified time.Time) error

	// Package sets.
	CreatePackageSet(ctx context.Context, name string) (id int64, err error)
	LookupPackageSet(ctx context.Context, name string) (id int64, ok bool, err error)
	AddPackageSet(ctx context.Context, set int64, pkg int64) error
	DeleteFromPackageSet(ctx context.Context, set int64, pkg int64) error
	EmptyPackageSet(ctx context.Context, set int64) error
	// UpdatePackageSet replaces set's membership with ids and reports
	// whether membership actually changed.
	UpdatePackageSet(ctx context.Context, set int64, ids []int64) (changed bool, err error)
	// UpdatePackageSetCaches invokes C12
	// ([github.com/symboldb/symboldb/closure]) for set and persists its
	// output.
	UpdatePackageSetCaches(ctx context.Context, set int64) error
	PackageSetMembers(ctx context.Context, set int64) ([]int64, error)
	// SonameConflicts reports every persisted closure_edge row for set
	// whose candidate set has more than one member, for
	// "--show-soname-conflicts".
	SonameConflicts(ctx context.Context, set int64) ([]Conflict, error)

	// Expiration (C13).
	ExpireURLCache(ctx context.Context) (removed int64, err error)
	ExpirePackages(ctx context.Context) (removed int64, err error)
	ExpireFileContents(ctx context.Context) (removed int64, err error)
	ExpireJavaClasses(ctx context.Context) (removed int64, err error)
	ReferencedPackageDigests(ctx context.Context) (map[string]bool, error)

	// Lock takes an advisory lock keyed by (a, b); process-scoped when not
	// called from within a transaction.
	Lock(ctx context.Context, a, b int64) (Lock, error)
	// LockDigest takes an advisory lock keyed by the first 8 bytes of a
	// digest, the first step of the per-URL download protocol.
	LockDigest(ctx context.Context, digest []byte) (Lock, error)

	Close(ctx context.Context) error
}

// Tx is a single package's worth of C11 writes, all issued inside one
// non-synchronous-commit transaction.
type Tx interface {
	// InternPackage returns the existing id if a package with the same
	// header hash is already known; otherwise it inserts one. fresh is
	// true only on insert.
	InternPackage(ctx context.Context, pkg sdb.Package) (id int64, fresh bool, err error)
	AddPackageDigest(ctx context.Context, pkg int64, digest sdb.Checksum) error
	AddDependency(ctx context.Context, pkg int64, dep sdb.Dependency) error

	// AddPackageTrigger records one trigger, with its nested condition
	// list grouped by the header's trigger index.
	AddPackageTrigger(ctx context.Context, pkg int64, script string, interp string, conditions []TriggerCondition) error

	// AddFile interns the contents row by digest (fresh reports whether
	// this digest was newly inserted) and inserts the file row.
	AddFile(ctx context.Context, pkg int64, info FileInfo, content sdb.Checksum, preview []byte) (fileID, contentsID int64, fresh bool, err error)
	AddDirectory(ctx context.Context, pkg int64, path string, mode uint32) (fileID int64, err error)
	AddSymlink(ctx context.Context, pkg int64, path string, mode uint32, target string) (fileID int64, err error)

	// ELF (only called when AddFile reported fresh for that contents row).
	AddELFImage(ctx context.Context, contents int64, img *sdb.Image) error
	AddELFSymbolDefinition(ctx context.Context, contents int64, def sdb.SymbolDefinition) error
	AddELFSymbolReference(ctx context.Context, contents int64, ref sdb.SymbolReference) error
	AddELFNeeded(ctx context.Context, contents int64, soname string) error
	AddELFRPath(ctx context.Context, contents int64, path string) error
	AddELFRunPath(ctx context.Context, contents int64, path string) error
	AddELFError(ctx context.Context, contents int64, message string) error

	// Java (per contents and per ZIP member).
	AddJavaClass(ctx context.Context, contents int64, class *sdb.JavaClass) error
	AddJavaError(ctx context.Context, contents int64, class *sdb.JavaError) error

	// Python (per contents).
	AddPythonImport(ctx context.Context, contents int64, imp *sdb.PythonImport) error
	AddPythonError(ctx context.Context, contents int64, parseErr *sdb.PythonError) error
	// HasPythonImports reports whether contents already has Python import
	// rows, guarding re-analysis of contents shared across hard links.
	HasPythonImports(ctx context.Context, contents int64) (bool, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// FileInfo is the subset of a file-table row [Tx.AddFile] needs, independent
// of the internal RPM-header representation.
type FileInfo struct {
	Path   string
	Mode   uint32
	User   string
	Group  string
	MTime  int64
	Flags  sdb.FileFlag
	Ino    int64
	NLinks int32
}

// TriggerCondition is one scriptlet-trigger condition, grouped by the
// header's TagTriggerIndex.
type TriggerCondition struct {
	Name string
	Op   sdb.Op
	Version string
	Flags   int32
}

// ConflictFile is one candidate in a [Conflict]'s candidate list.
type ConflictFile struct {
	FileID  int64
	Path    string
	NEVRA   string
}

// Conflict is one unresolved closure edge: a needing file whose soname
// resolved to more than one same-class candidate within the set.
type Conflict struct {
	Soname      string
	NeedingFile int64
	NeedingPath string
	NeedingNEVRA string
	Candidates  []ConflictFile
}

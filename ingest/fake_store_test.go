package ingest

import (
	"context"
	"sync"
	"time"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/store"
)

// fakeStore is a minimal in-memory store.Store/store.Tx double used across
// this package's tests. It only implements the behavior each test actually
// exercises; methods outside that scope panic so a test silently relying on
// unimplemented behavior fails loudly instead of passing by accident.
type fakeStore struct {
	mu sync.Mutex

	byDigest map[string]int64 // digest string -> package id
	nextID   int64

	lockCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byDigest: make(map[string]int64)}
}

type fakeLock struct{}

func (fakeLock) Close(ctx context.Context) error { return nil }

func (f *fakeStore) LockDigest(ctx context.Context, digest []byte) (store.Lock, error) {
	f.mu.Lock()
	f.lockCalls++
	f.mu.Unlock()
	return fakeLock{}, nil
}

func (f *fakeStore) PackageByDigest(ctx context.Context, digest sdb.Checksum) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byDigest[digest.String()]
	return id, ok, nil
}

func (f *fakeStore) markKnown(digest sdb.Checksum, id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byDigest[digest.String()] = id
}

func (f *fakeStore) Begin(ctx context.Context) (store.Tx, error) {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.mu.Unlock()
	return &fakeTx{store: f, id: id}, nil
}

// The remaining store.Store methods are unused by the tests in this package.
func (f *fakeStore) Fetch(ctx context.Context, url string) ([]byte, bool, error) {
	panic("fakeStore.Fetch: not implemented")
}
func (f *fakeStore) FetchExpected(ctx context.Context, url string, length int64, lastModified time.Time) ([]byte, bool, error) {
	panic("fakeStore.FetchExpected: not implemented")
}
func (f *fakeStore) Update(ctx context.Context, url string, data []byte, lastModified time.Time) error {
	panic("fakeStore.Update: not implemented")
}
func (f *fakeStore) CreatePackageSet(ctx context.Context, name string) (int64, error) {
	panic("fakeStore.CreatePackageSet: not implemented")
}
func (f *fakeStore) LookupPackageSet(ctx context.Context, name string) (int64, bool, error) {
	panic("fakeStore.LookupPackageSet: not implemented")
}
func (f *fakeStore) AddPackageSet(ctx context.Context, set int64, pkg int64) error {
	panic("fakeStore.AddPackageSet: not implemented")
}
func (f *fakeStore) DeleteFromPackageSet(ctx context.Context, set int64, pkg int64) error {
	panic("fakeStore.DeleteFromPackageSet: not implemented")
}
func (f *fakeStore) EmptyPackageSet(ctx context.Context, set int64) error {
	panic("fakeStore.EmptyPackageSet: not implemented")
}
func (f *fakeStore) UpdatePackageSet(ctx context.Context, set int64, ids []int64) (bool, error) {
	panic("fakeStore.UpdatePackageSet: not implemented")
}
func (f *fakeStore) UpdatePackageSetCaches(ctx context.Context, set int64) error {
	panic("fakeStore.UpdatePackageSetCaches: not implemented")
}
func (f *fakeStore) PackageSetMembers(ctx context.Context, set int64) ([]int64, error) {
	panic("fakeStore.PackageSetMembers: not implemented")
}
func (f *fakeStore) SonameConflicts(ctx context.Context, set int64) ([]store.Conflict, error) {
	panic("fakeStore.SonameConflicts: not implemented")
}
func (f *fakeStore) ExpireURLCache(ctx context.Context) (int64, error) {
	panic("fakeStore.ExpireURLCache: not implemented")
}
func (f *fakeStore) ExpirePackages(ctx context.Context) (int64, error) {
	panic("fakeStore.ExpirePackages: not implemented")
}
func (f *fakeStore) ExpireFileContents(ctx context.Context) (int64, error) {
	panic("fakeStore.ExpireFileContents: not implemented")
}
func (f *fakeStore) ExpireJavaClasses(ctx context.Context) (int64, error) {
	panic("fakeStore.ExpireJavaClasses: not implemented")
}
func (f *fakeStore) ReferencedPackageDigests(ctx context.Context) (map[string]bool, error) {
	panic("fakeStore.ReferencedPackageDigests: not implemented")
}
func (f *fakeStore) Lock(ctx context.Context, a, b int64) (store.Lock, error) {
	return fakeLock{}, nil
}
func (f *fakeStore) Close(ctx context.Context) error { return nil }

// fakeTx is a bare-bones store.Tx: it reports every package as freshly
// interned under the transaction's id and otherwise records nothing, which is
// sufficient for tests exercising the ingestion driver's control flow rather
// than its persisted data shape.
type fakeTx struct {
	store *fakeStore
	id    int64

	committed, rolledBack bool
}

func (t *fakeTx) InternPackage(ctx context.Context, pkg sdb.Package) (int64, bool, error) {
	return t.id, true, nil
}
func (t *fakeTx) AddPackageDigest(ctx context.Context, pkg int64, digest sdb.Checksum) error {
	return nil
}
func (t *fakeTx) AddDependency(ctx context.Context, pkg int64, dep sdb.Dependency) error {
	return nil
}
func (t *fakeTx) AddPackageTrigger(ctx context.Context, pkg int64, script string, interp string, conditions []store.TriggerCondition) error {
	return nil
}
func (t *fakeTx) AddFile(ctx context.Context, pkg int64, info store.FileInfo, content sdb.Checksum, preview []byte) (int64, int64, bool, error) {
	return 1, 1, true, nil
}
func (t *fakeTx) AddDirectory(ctx context.Context, pkg int64, path string, mode uint32) (int64, error) {
	return 1, nil
}
func (t *fakeTx) AddSymlink(ctx context.Context, pkg int64, path string, mode uint32, target string) (int64, error) {
	return 1, nil
}
func (t *fakeTx) AddELFImage(ctx context.Context, contents int64, img *sdb.Image) error { return nil }
func (t *fakeTx) AddELFSymbolDefinition(ctx context.Context, contents int64, def sdb.SymbolDefinition) error {
	return nil
}
func (t *fakeTx) AddELFSymbolReference(ctx context.Context, contents int64, ref sdb.SymbolReference) error {
	return nil
}
func (t *fakeTx) AddELFNeeded(ctx context.Context, contents int64, soname string) error { return nil }
func (t *fakeTx) AddELFRPath(ctx context.Context, contents int64, path string) error    { return nil }
func (t *fakeTx) AddELFRunPath(ctx context.Context, contents int64, path string) error  { return nil }
func (t *fakeTx) AddELFError(ctx context.Context, contents int64, message string) error { return nil }
func (t *fakeTx) AddJavaClass(ctx context.Context, contents int64, class *sdb.JavaClass) error {
	return nil
}
func (t *fakeTx) AddJavaError(ctx context.Context, contents int64, class *sdb.JavaError) error {
	return nil
}
func (t *fakeTx) AddPythonImport(ctx context.Context, contents int64, imp *sdb.PythonImport) error {
	return nil
}
func (t *fakeTx) AddPythonError(ctx context.Context, contents int64, parseErr *sdb.PythonError) error {
	return nil
}
func (t *fakeTx) HasPythonImports(ctx context.Context, contents int64) (bool, error) {
	return false, nil
}
func (t *fakeTx) Commit(ctx context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(ctx context.Context) error { t.rolledBack = true; return nil }

var _ store.Store = (*fakeStore)(nil)
var _ store.Tx = (*fakeTx)(nil)

// setTrackingStore overrides just the package-set methods of fakeStore, for
// tests exercising Driver.updateSet's create/update/recompute sequencing.
type setTrackingStore struct {
	*fakeStore

	existingSet   int64 // 0 means LookupPackageSet reports not-found.
	unchanged     bool  // UpdatePackageSet reports changed=false.
	cachesUpdated bool
}

func (s *setTrackingStore) LookupPackageSet(ctx context.Context, name string) (int64, bool, error) {
	if s.existingSet == 0 {
		return 0, false, nil
	}
	return s.existingSet, true, nil
}

func (s *setTrackingStore) CreatePackageSet(ctx context.Context, name string) (int64, error) {
	return 99, nil
}

func (s *setTrackingStore) UpdatePackageSet(ctx context.Context, set int64, ids []int64) (bool, error) {
	return !s.unchanged, nil
}

func (s *setTrackingStore) UpdatePackageSetCaches(ctx context.Context, set int64) error {
	s.cachesUpdated = true
	return nil
}

var _ store.Store = (*setTrackingStore)(nil)

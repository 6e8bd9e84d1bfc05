package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/closure"
	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/store"
)

func (s *Store) CreatePackageSet(ctx context.Context, name string) (int64, error) {
	const q = `INSERT INTO package_set (name) VALUES ($1) RETURNING id`
	var err error
	defer observe("create_package_set")(&err)

	var id int64
	if err = s.pool.QueryRow(ctx, q, name).Scan(&id); err != nil {
		return 0, &errs.DB{Err: fmt.Errorf("store: create_package_set: %w", err)}
	}
	return id, nil
}

func (s *Store) LookupPackageSet(ctx context.Context, name string) (int64, bool, error) {
	const q = `SELECT id FROM package_set WHERE name = $1`
	var err error
	defer observe("lookup_package_set")(&err)

	var id int64
	err = s.pool.QueryRow(ctx, q, name).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &errs.DB{Err: fmt.Errorf("store: lookup_package_set: %w", err)}
	}
	return id, true, nil
}

func (s *Store) AddPackageSet(ctx context.Context, set, pkg int64) error {
	const q = `INSERT INTO package_set_member (set_id, package_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	var err error
	defer observe("add_package_set")(&err)
	if _, err = s.pool.Exec(ctx, q, set, pkg); err != nil {
		return &errs.DB{Err: fmt.Errorf("store: add_package_set: %w", err)}
	}
	return nil
}

func (s *Store) DeleteFromPackageSet(ctx context.Context, set, pkg int64) error {
	const q = `DELETE FROM package_set_member WHERE set_id = $1 AND package_id = $2`
	var err error
	defer observe("delete_from_package_set")(&err)
	if _, err = s.pool.Exec(ctx, q, set, pkg); err != nil {
		return &errs.DB{Err: fmt.Errorf("store: delete_from_package_set: %w", err)}
	}
	return nil
}

func (s *Store) EmptyPackageSet(ctx context.Context, set int64) error {
	const q = `DELETE FROM package_set_member WHERE set_id = $1`
	var err error
	defer observe("empty_package_set")(&err)
	if _, err = s.pool.Exec(ctx, q, set); err != nil {
		return &errs.DB{Err: fmt.Errorf("store: empty_package_set: %w", err)}
	}
	return nil
}

func (s *Store) PackageSetMembers(ctx context.Context, set int64) ([]int64, error) {
	const q = `SELECT package_id FROM package_set_member WHERE set_id = $1`
	var err error
	defer observe("package_set_members")(&err)

	rows, err := s.pool.Query(ctx, q, set)
	if err != nil {
		return nil, &errs.DB{Err: fmt.Errorf("store: package_set_members: %w", err)}
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, &errs.DB{Err: fmt.Errorf("store: package_set_members scan: %w", err)}
		}
		out = append(out, id)
	}
	if err = rows.Err(); err != nil {
		return nil, &errs.DB{Err: fmt.Errorf("store: package_set_members: %w", err)}
	}
	return out, nil
}

// UpdatePackageSet replaces set's membership with ids under a
// transaction-scoped advisory lock keyed by (packageSetLockTag, set), and
// reports whether membership actually changed.
func (s *Store) UpdatePackageSet(ctx context.Context, set int64, ids []int64) (bool, error) {
	var err error
	defer observe("update_package_set")(&err)

	pgxTx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, &errs.DB{Err: fmt.Errorf("store: update_package_set begin: %w", err)}
	}
	defer pgxTx.Rollback(ctx)

	if _, err = lockTx(ctx, pgxTx, packageSetLockTag, set); err != nil {
		return false, err
	}

	before, err := queryMembers(ctx, pgxTx, set)
	if err != nil {
		return false, &errs.DB{Err: fmt.Errorf("store: update_package_set read: %w", err)}
	}

	if _, err = pgxTx.Exec(ctx, `DELETE FROM package_set_member WHERE set_id = $1`, set); err != nil {
		return false, &errs.DB{Err: fmt.Errorf("store: update_package_set clear: %w", err)}
	}
	const insert = `INSERT INTO package_set_member (set_id, package_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for _, id := range ids {
		if _, err = pgxTx.Exec(ctx, insert, set, id); err != nil {
			return false, &errs.DB{Err: fmt.Errorf("store: update_package_set insert: %w", err)}
		}
	}

	if err = pgxTx.Commit(ctx); err != nil {
		return false, &errs.DB{Err: fmt.Errorf("store: update_package_set commit: %w", err)}
	}
	return !sameSet(before, ids), nil
}

func queryMembers(ctx context.Context, t pgx.Tx, set int64) ([]int64, error) {
	rows, err := t.Query(ctx, `SELECT package_id FROM package_set_member WHERE set_id = $1`, set)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func sameSet(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	a, b = append([]int64(nil), a...), append([]int64(nil), b...)
	sort.Slice(a, func(i, j int) bool { return a[i] < a[j] })
	sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// elfFilesInSet loads every ELF file belonging to set, in the shape
// [closure.Resolve] needs.
func (s *Store) elfFilesInSet(ctx context.Context, set int64) ([]closure.File, error) {
	const q = `
		SELECT f.id, f.package_id, f.path, e.ei_class, e.ei_data, coalesce(e.soname, ''),
		       coalesce(array(SELECT soname FROM elf_needed WHERE contents_id = f.contents_id), '{}')
		FROM file f
		JOIN package_set_member m ON m.package_id = f.package_id AND m.set_id = $1
		JOIN elf_image e ON e.contents_id = f.contents_id`
	var err error
	defer observe("elf_files_in_set")(&err)

	rows, err := s.pool.Query(ctx, q, set)
	if err != nil {
		return nil, &errs.DB{Err: fmt.Errorf("store: elf_files_in_set: %w", err)}
	}
	defer rows.Close()
	var out []closure.File
	for rows.Next() {
		var r closure.File
		var class, data uint8
		if err = rows.Scan(&r.FileID, &r.PackageID, &r.Path, &class, &data, &r.Soname, &r.Needed); err != nil {
			return nil, &errs.DB{Err: fmt.Errorf("store: elf_files_in_set scan: %w", err)}
		}
		r.Class, r.Data = sdb.ELFClass(class), sdb.ELFData(data)
		out = append(out, r)
	}
	if err = rows.Err(); err != nil {
		return nil, &errs.DB{Err: fmt.Errorf("store: elf_files_in_set: %w", err)}
	}
	return out, nil
}

// nevraOf formats a name-epoch:version-release.arch string from the raw
// package columns this query already has in hand.
func nevraOf(name string, epoch *int32, version, release, arch string) string {
	if epoch != nil && *epoch != 0 {
		return fmt.Sprintf("%s-%d:%s-%s.%s", name, *epoch, version, release, arch)
	}
	return fmt.Sprintf("%s-%s-%s.%s", name, version, release, arch)
}

// SonameConflicts reports every closure_edge row for set with more than one
// candidate, joined against file/package to produce human-readable NEVRAs.
func (s *Store) SonameConflicts(ctx context.Context, set int64) ([]store.Conflict, error) {
	const q = `
		SELECT e.needing_file, e.soname, e.conflicts,
		       nf.path, np.name, np.epoch, np.version, np.release, np.arch
		FROM closure_edge e
		JOIN file nf ON nf.id = e.needing_file
		JOIN package np ON np.id = nf.package_id
		WHERE e.set_id = $1 AND cardinality(e.conflicts) > 1`
	var err error
	defer observe("soname_conflicts")(&err)

	rows, err := s.pool.Query(ctx, q, set)
	if err != nil {
		return nil, &errs.DB{Err: fmt.Errorf("store: soname_conflicts: %w", err)}
	}
	defer rows.Close()

	var out []store.Conflict
	var allCandidates []int64
	for rows.Next() {
		var c store.Conflict
		var candidates []int64
		var epoch *int32
		var name, version, release, arch string
		if err = rows.Scan(&c.NeedingFile, &c.Soname, &candidates, &c.NeedingPath, &name, &epoch, &version, &release, &arch); err != nil {
			return nil, &errs.DB{Err: fmt.Errorf("store: soname_conflicts scan: %w", err)}
		}
		c.NeedingNEVRA = nevraOf(name, epoch, version, release, arch)
		for _, id := range candidates {
			c.Candidates = append(c.Candidates, store.ConflictFile{FileID: id})
		}
		allCandidates = append(allCandidates, candidates...)
		out = append(out, c)
	}
	if err = rows.Err(); err != nil {
		return nil, &errs.DB{Err: fmt.Errorf("store: soname_conflicts: %w", err)}
	}
	if len(out) == 0 {
		return nil, nil
	}

	info, err := fileNEVRAs(ctx, s, allCandidates)
	if err != nil {
		return nil, err
	}
	for i := range out {
		for j := range out[i].Candidates {
			if fi, ok := info[out[i].Candidates[j].FileID]; ok {
				out[i].Candidates[j] = fi
			}
		}
	}
	return out, nil
}

// fileNEVRAs resolves a batch of file ids to their path and owning
// package's NEVRA in one query.
func fileNEVRAs(ctx context.Context, s *Store, ids []int64) (map[int64]store.ConflictFile, error) {
	const q = `
		SELECT f.id, f.path, p.name, p.epoch, p.version, p.release, p.arch
		FROM file f JOIN package p ON p.id = f.package_id
		WHERE f.id = ANY($1)`
	var err error
	defer observe("file_nevras")(&err)

	rows, err := s.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, &errs.DB{Err: fmt.Errorf("store: file_nevras: %w", err)}
	}
	defer rows.Close()

	out := make(map[int64]store.ConflictFile, len(ids))
	for rows.Next() {
		var cf store.ConflictFile
		var epoch *int32
		var name, version, release, arch string
		if err = rows.Scan(&cf.FileID, &cf.Path, &name, &epoch, &version, &release, &arch); err != nil {
			return nil, &errs.DB{Err: fmt.Errorf("store: file_nevras scan: %w", err)}
		}
		cf.NEVRA = nevraOf(name, epoch, version, release, arch)
		out[cf.FileID] = cf
	}
	if err = rows.Err(); err != nil {
		return nil, &errs.DB{Err: fmt.Errorf("store: file_nevras: %w", err)}
	}
	return out, nil
}

// UpdatePackageSetCaches invokes the link-closure resolver (C12) for set and
// persists its output.
func (s *Store) UpdatePackageSetCaches(ctx context.Context, set int64) error {
	var err error
	defer observe("update_package_set_caches")(&err)

	files, err := s.elfFilesInSet(ctx, set)
	if err != nil {
		return err
	}
	edges := closure.Resolve(files, nil)

	pgxTx, err := s.pool.Begin(ctx)
	if err != nil {
		return &errs.DB{Err: fmt.Errorf("store: update_package_set_caches begin: %w", err)}
	}
	defer pgxTx.Rollback(ctx)

	if _, err = pgxTx.Exec(ctx, `DELETE FROM closure_edge WHERE set_id = $1`, set); err != nil {
		return &errs.DB{Err: fmt.Errorf("store: update_package_set_caches clear: %w", err)}
	}
	const insert = `
		INSERT INTO closure_edge (set_id, needing_file, soname, chosen_file, conflicts, missing)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for _, e := range edges {
		if _, err = pgxTx.Exec(ctx, insert, set, e.NeedingFile, e.Soname, e.ChosenFile, e.Conflicts, e.Missing); err != nil {
			return &errs.DB{Err: fmt.Errorf("store: update_package_set_caches insert: %w", err)}
		}
	}
	if err = pgxTx.Commit(ctx); err != nil {
		return &errs.DB{Err: fmt.Errorf("store: update_package_set_caches commit: %w", err)}
	}
	return nil
}

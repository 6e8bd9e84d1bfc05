package postgres

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/symboldb/symboldb/errs"
)

// ExpireURLCache removes URL-cache rows. This package has no policy for
// *which* rows are stale beyond "referenced nowhere else" — the URL cache
// only ever holds small metadata artifacts, so every row older than any
// still-open ingest is a candidate; callers that want an age cutoff pass it
// as part of a future policy knob (C13 itself has none, only the
// operation).
func (s *Store) ExpireURLCache(ctx context.Context) (int64, error) {
	const q = `DELETE FROM url_cache`
	var err error
	defer observe("expire_url_cache")(&err)
	tag, err := s.pool.Exec(ctx, q)
	if err != nil {
		return 0, &errs.DB{Err: fmt.Errorf("store: expire_url_cache: %w", err)}
	}
	return tag.RowsAffected(), nil
}

// ExpirePackages removes packages referenced by no package set.
func (s *Store) ExpirePackages(ctx context.Context) (int64, error) {
	const q = `DELETE FROM package WHERE id NOT IN (SELECT package_id FROM package_set_member)`
	var err error
	defer observe("expire_packages")(&err)
	tag, err := s.pool.Exec(ctx, q)
	if err != nil {
		return 0, &errs.DB{Err: fmt.Errorf("store: expire_packages: %w", err)}
	}
	return tag.RowsAffected(), nil
}

// ExpireFileContents removes contents rows no file row references anymore
// (a consequence of ExpirePackages having removed their owning packages).
func (s *Store) ExpireFileContents(ctx context.Context) (int64, error) {
	const q = `DELETE FROM contents WHERE id NOT IN (SELECT contents_id FROM file WHERE contents_id IS NOT NULL)`
	var err error
	defer observe("expire_file_contents")(&err)
	tag, err := s.pool.Exec(ctx, q)
	if err != nil {
		return 0, &errs.DB{Err: fmt.Errorf("store: expire_file_contents: %w", err)}
	}
	return tag.RowsAffected(), nil
}

// ExpireJavaClasses removes java_class rows whose contents row is gone;
// java_error rows are not removed.
func (s *Store) ExpireJavaClasses(ctx context.Context) (int64, error) {
	const q = `DELETE FROM java_class WHERE contents_id NOT IN (SELECT id FROM contents)`
	var err error
	defer observe("expire_java_classes")(&err)
	tag, err := s.pool.Exec(ctx, q)
	if err != nil {
		return 0, &errs.DB{Err: fmt.Errorf("store: expire_java_classes: %w", err)}
	}
	return tag.RowsAffected(), nil
}

// ReferencedPackageDigests returns every package_digest value still
// referenced by a live package, keyed by "algo:hex", for
// --show-stale-cached-rpms to diff against the file cache's contents.
func (s *Store) ReferencedPackageDigests(ctx context.Context) (map[string]bool, error) {
	const q = `SELECT algo, digest FROM package_digest`
	var err error
	defer observe("referenced_package_digests")(&err)

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, &errs.DB{Err: fmt.Errorf("store: referenced_package_digests: %w", err)}
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var algo string
		var digest []byte
		if err = rows.Scan(&algo, &digest); err != nil {
			return nil, &errs.DB{Err: fmt.Errorf("store: referenced_package_digests scan: %w", err)}
		}
		out[algo+":"+hex.EncodeToString(digest)] = true
	}
	if err = rows.Err(); err != nil {
		return nil, &errs.DB{Err: fmt.Errorf("store: referenced_package_digests: %w", err)}
	}
	return out, nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/store"
)

var _ store.Store = (*Store)(nil)

// Store implements [github.com/symboldb/symboldb/store.Store] and
// [github.com/symboldb/symboldb/download.URLCache] against PostgreSQL.
//
// All other exported methods live in their own files, one concern per file,
// the way datastore/postgres splits IndexerStore's methods.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-connected pool (see [Connect]).
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close(_ context.Context) error {
	s.pool.Close()
	return nil
}

// Begin opens a per-package transaction. Commits are non-synchronous: a
// durable commit is issued only when linking an RPM into a set or URL
// cache.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	pgxTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, &errs.DB{Err: fmt.Errorf("store: begin: %w", err)}
	}
	if _, err := pgxTx.Exec(ctx, `SET LOCAL synchronous_commit = off`); err != nil {
		pgxTx.Rollback(ctx)
		return nil, &errs.DB{Err: fmt.Errorf("store: set synchronous_commit: %w", err)}
	}
	return &tx{tx: pgxTx}, nil
}

func (s *Store) PackageByDigest(ctx context.Context, digest sdb.Checksum) (int64, bool, error) {
	const q = `SELECT package_id FROM package_digest WHERE algo = $1 AND digest = $2`
	var err error
	defer observe("package_by_digest")(&err)

	var id int64
	err = s.pool.QueryRow(ctx, q, string(digest.Kind), digest.Digest).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &errs.DB{Err: fmt.Errorf("store: package_by_digest: %w", err)}
	}
	return id, true, nil
}

// Fetch, FetchExpected, and Update implement download.URLCache.

func (s *Store) Fetch(ctx context.Context, url string) ([]byte, bool, error) {
	const q = `SELECT bytes FROM url_cache WHERE url = $1`
	var err error
	defer observe("url_cache_fetch")(&err)

	var data []byte
	err = s.pool.QueryRow(ctx, q, url).Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &errs.DB{Err: fmt.Errorf("store: url_cache_fetch: %w", err)}
	}
	return data, true, nil
}

func (s *Store) FetchExpected(ctx context.Context, url string, length int64, lastModified time.Time) ([]byte, bool, error) {
	const q = `
		SELECT bytes FROM url_cache
		WHERE url = $1 AND length(bytes) = $2 AND last_modified = $3`
	var err error
	defer observe("url_cache_fetch_expected")(&err)

	var data []byte
	err = s.pool.QueryRow(ctx, q, url, length, lastModified).Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &errs.DB{Err: fmt.Errorf("store: url_cache_fetch_expected: %w", err)}
	}
	return data, true, nil
}

func (s *Store) Update(ctx context.Context, url string, data []byte, lastModified time.Time) error {
	const q = `
		INSERT INTO url_cache (url, bytes, fetch_time, last_modified)
		VALUES ($1, $2, now(), $3)
		ON CONFLICT (url) DO UPDATE SET bytes = excluded.bytes, fetch_time = excluded.fetch_time, last_modified = excluded.last_modified`
	var err error
	defer observe("url_cache_update")(&err)

	if _, err = s.pool.Exec(ctx, q, url, data, lastModified); err != nil {
		return &errs.DB{Err: fmt.Errorf("store: url_cache_update: %w", err)}
	}
	return nil
}

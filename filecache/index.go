package filecache

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"

	_ "modernc.org/sqlite"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/errs"
)

// Index is an auxiliary (algo, digest) -> path lookup table backed by a
// local SQLite database, avoiding a full directory walk on large caches.
// It is strictly a speedup: [Cache.Digests] remains authoritative and the
// index can always be rebuilt from the directory tree.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if absent) the digest index at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &errs.DB{Err: fmt.Errorf("filecache: opening index: %w", err)}
	}
	const schema = `
CREATE TABLE IF NOT EXISTS blobs (
	algo   TEXT NOT NULL,
	digest TEXT NOT NULL,
	path   TEXT NOT NULL,
	PRIMARY KEY (algo, digest)
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &errs.DB{Err: fmt.Errorf("filecache: creating index schema: %w", err)}
	}
	return &Index{db: db}, nil
}

// Close closes the underlying database handle.
func (idx *Index) Close() error { return idx.db.Close() }

// Record adds (or replaces) the path recorded for csum.
func (idx *Index) Record(ctx context.Context, csum sdb.Checksum, path string) error {
	_, err := idx.db.ExecContext(ctx,
		`INSERT INTO blobs(algo, digest, path) VALUES (?, ?, ?)
		 ON CONFLICT(algo, digest) DO UPDATE SET path = excluded.path`,
		string(csum.Kind), hex.EncodeToString(csum.Digest), path)
	if err != nil {
		return &errs.DB{Err: err}
	}
	return nil
}

// Lookup returns the recorded path for csum, if indexed.
func (idx *Index) Lookup(ctx context.Context, csum sdb.Checksum) (string, bool, error) {
	var path string
	err := idx.db.QueryRowContext(ctx,
		`SELECT path FROM blobs WHERE algo = ? AND digest = ?`,
		string(csum.Kind), hex.EncodeToString(csum.Digest)).Scan(&path)
	switch {
	case err == sql.ErrNoRows:
		return "", false, nil
	case err != nil:
		return "", false, &errs.DB{Err: err}
	}
	return path, true, nil
}

// Forget removes csum's entry from the index, e.g. after expiration deletes
// the underlying blob.
func (idx *Index) Forget(ctx context.Context, csum sdb.Checksum) error {
	_, err := idx.db.ExecContext(ctx,
		`DELETE FROM blobs WHERE algo = ? AND digest = ?`,
		string(csum.Kind), hex.EncodeToString(csum.Digest))
	if err != nil {
		return &errs.DB{Err: err}
	}
	return nil
}

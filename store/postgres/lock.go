package postgres

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/store"
)

// digestLockTag namespaces digest-keyed advisory locks away from set-keyed
// ones, so the two lock families never collide on the shared 64-bit
// advisory-lock keyspace.
const digestLockTag = 1

// packageSetLockTag namespaces the package-set mutation lock.
const packageSetLockTag = 2

// Lock takes a process-scoped advisory lock keyed by (a, b); destroying the
// returned Lock (Close) releases it.
func (s *Store) Lock(ctx context.Context, a, b int64) (store.Lock, error) {
	const q = `SELECT pg_advisory_lock($1, $2)`
	var err error
	defer observe("lock")(&err)
	if _, err = s.pool.Exec(ctx, q, a, b); err != nil {
		return nil, &errs.DB{Err: fmt.Errorf("store: lock(%d,%d): %w", a, b, err)}
	}
	return &poolLock{pool: s.pool, a: a, b: b}, nil
}

// LockDigest takes an advisory lock keyed by the first 8 bytes of digest.
func (s *Store) LockDigest(ctx context.Context, digest []byte) (store.Lock, error) {
	var buf [8]byte
	copy(buf[:], digest)
	key := int64(binary.BigEndian.Uint64(buf[:]))
	return s.Lock(ctx, digestLockTag, key)
}

// poolLock is a process-scoped advisory lock; Close issues pg_advisory_unlock.
type poolLock struct {
	pool *pgxpool.Pool
	a, b int64
}

func (l *poolLock) Close(ctx context.Context) error {
	const q = `SELECT pg_advisory_unlock($1, $2)`
	if _, err := l.pool.Exec(ctx, q, l.a, l.b); err != nil {
		return &errs.DB{Err: fmt.Errorf("store: unlock(%d,%d): %w", l.a, l.b, err)}
	}
	return nil
}

// txLock is a transaction-scoped advisory lock taken with
// pg_advisory_xact_lock; it releases automatically at commit/rollback, so
// Close is a no-op.
type txLock struct{}

func (txLock) Close(context.Context) error { return nil }

// lockTx takes a transaction-scoped advisory lock, used for the
// per-package-set lock guarding a set's membership mutation.
func lockTx(ctx context.Context, t pgx.Tx, a, b int64) (store.Lock, error) {
	const q = `SELECT pg_advisory_xact_lock($1, $2)`
	if _, err := t.Exec(ctx, q, a, b); err != nil {
		return nil, &errs.DB{Err: fmt.Errorf("store: xact lock(%d,%d): %w", a, b, err)}
	}
	return txLock{}, nil
}

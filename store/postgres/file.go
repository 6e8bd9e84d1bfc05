package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/store"
)

// AddFile interns the contents row by digest and inserts the file row.
// fresh reports whether the contents row was newly inserted, gating the
// ELF/Java/Python analyzer writes the caller issues afterward.
func (t *tx) AddFile(ctx context.Context, pkg int64, info store.FileInfo, content sdb.Checksum, preview []byte) (int64, int64, bool, error) {
	var err error
	defer observe("add_file")(&err)

	contentsID, fresh, err := t.internContents(ctx, content, preview)
	if err != nil {
		return 0, 0, false, err
	}

	const insert = `
		INSERT INTO file (package_id, path, kind, mode, user_name, group_name, mtime, flags, ino, nlinks, contents_id)
		VALUES ($1,$2,'regular',$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (package_id, path) DO UPDATE SET contents_id = excluded.contents_id
		RETURNING id`
	var fileID int64
	err = t.tx.QueryRow(ctx, insert,
		pkg, info.Path, info.Mode, info.User, info.Group, info.MTime, int32(info.Flags), info.Ino, info.NLinks, contentsID,
	).Scan(&fileID)
	if err != nil {
		return 0, 0, false, &errs.DB{Err: fmt.Errorf("store: add_file: %w", err)}
	}
	return fileID, contentsID, fresh, nil
}

func (t *tx) AddDirectory(ctx context.Context, pkg int64, path string, mode uint32) (int64, error) {
	const insert = `
		INSERT INTO file (package_id, path, kind, mode)
		VALUES ($1, $2, 'dir', $3)
		ON CONFLICT (package_id, path) DO NOTHING
		RETURNING id`
	var err error
	defer observe("add_directory")(&err)
	var id int64
	if err = t.tx.QueryRow(ctx, insert, pkg, path, mode).Scan(&id); err != nil {
		return 0, &errs.DB{Err: fmt.Errorf("store: add_directory: %w", err)}
	}
	return id, nil
}

func (t *tx) AddSymlink(ctx context.Context, pkg int64, path string, mode uint32, target string) (int64, error) {
	const insert = `
		INSERT INTO file (package_id, path, kind, mode, symlink_target)
		VALUES ($1, $2, 'symlink', $3, $4)
		ON CONFLICT (package_id, path) DO UPDATE SET symlink_target = excluded.symlink_target
		RETURNING id`
	var err error
	defer observe("add_symlink")(&err)
	var id int64
	if err = t.tx.QueryRow(ctx, insert, pkg, path, mode, target).Scan(&id); err != nil {
		return 0, &errs.DB{Err: fmt.Errorf("store: add_symlink: %w", err)}
	}
	return id, nil
}

// internContents interns a contents row by (algo, digest). A
// unique-constraint race is absorbed the same way InternPackage's is.
func (t *tx) internContents(ctx context.Context, content sdb.Checksum, preview []byte) (int64, bool, error) {
	const selectQ = `SELECT id FROM contents WHERE algo = $1 AND digest = $2`
	const insertQ = `
		INSERT INTO contents (algo, digest, length, preview)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (algo, digest) DO NOTHING
		RETURNING id`

	var id int64
	err := t.tx.QueryRow(ctx, selectQ, string(content.Kind), content.Digest).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if err != pgx.ErrNoRows {
		return 0, false, &errs.DB{Err: fmt.Errorf("store: intern contents select: %w", err)}
	}

	err = t.tx.QueryRow(ctx, insertQ, string(content.Kind), content.Digest, content.Length, preview).Scan(&id)
	if err == pgx.ErrNoRows {
		if err = t.tx.QueryRow(ctx, selectQ, string(content.Kind), content.Digest).Scan(&id); err != nil {
			return 0, false, &errs.DB{Err: fmt.Errorf("store: intern contents re-select: %w", err)}
		}
		return id, false, nil
	}
	if err != nil {
		return 0, false, &errs.DB{Err: fmt.Errorf("store: intern contents insert: %w", err)}
	}
	return id, true, nil
}

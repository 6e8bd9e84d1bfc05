package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/store"
)

var _ store.Tx = (*tx)(nil)

// tx is one per-package transaction.
type tx struct {
	tx pgx.Tx
}

func (t *tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return &errs.DB{Err: fmt.Errorf("store: commit: %w", err)}
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		return &errs.DB{Err: fmt.Errorf("store: rollback: %w", err)}
	}
	return nil
}

// InternPackage returns the existing id if the header hash matches; else
// inserts. A unique constraint race (concurrent insert of the same
// package) is absorbed by re-selecting the existing row rather than
// surfacing the constraint violation as an error.
func (t *tx) InternPackage(ctx context.Context, pkg sdb.Package) (int64, bool, error) {
	const selectQ = `SELECT id FROM package WHERE hash = $1`
	const insertQ = `
		INSERT INTO package (
			name, epoch, version, release, arch, source_rpm, build_time,
			build_host, summary, description, license, group_name, vendor,
			packager, hash, kind, module, module_stream, no_source, no_patch
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (hash) DO NOTHING
		RETURNING id`
	var err error
	defer observe("intern_package")(&err)

	var id int64
	err = t.tx.QueryRow(ctx, selectQ, pkg.Hash).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if err != pgx.ErrNoRows {
		return 0, false, &errs.DB{Err: fmt.Errorf("store: intern_package select: %w", err)}
	}

	err = t.tx.QueryRow(ctx, insertQ,
		pkg.Name, pkg.Epoch, pkg.Version, pkg.Release, pkg.Arch, pkg.SourceRPM, pkg.BuildTime,
		pkg.BuildHost, pkg.Summary, pkg.Description, pkg.License, pkg.Group, pkg.Vendor,
		pkg.Packager, pkg.Hash, string(pkg.Kind), pkg.Module, pkg.ModuleStream, pkg.NoSource, pkg.NoPatch,
	).Scan(&id)
	if err == pgx.ErrNoRows {
		// Lost the insert race: someone else committed the same hash
		// between our select and insert. Re-select rather than erroring.
		err = t.tx.QueryRow(ctx, selectQ, pkg.Hash).Scan(&id)
		if err != nil {
			return 0, false, &errs.DB{Err: fmt.Errorf("store: intern_package re-select: %w", err)}
		}
		return id, false, nil
	}
	if err != nil {
		return 0, false, &errs.DB{Err: fmt.Errorf("store: intern_package insert: %w", err)}
	}
	return id, true, nil
}

func (t *tx) AddPackageDigest(ctx context.Context, pkg int64, digest sdb.Checksum) error {
	const q = `
		INSERT INTO package_digest (package_id, algo, digest, length)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (package_id, algo, digest) DO NOTHING`
	var err error
	defer observe("add_package_digest")(&err)
	if _, err = t.tx.Exec(ctx, q, pkg, string(digest.Kind), digest.Digest, digest.Length); err != nil {
		return &errs.DB{Err: fmt.Errorf("store: add_package_digest: %w", err)}
	}
	return nil
}

func (t *tx) AddDependency(ctx context.Context, pkg int64, dep sdb.Dependency) error {
	const q = `
		INSERT INTO package_dependency (package_id, kind, capability, op, version, pre_req)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING`
	var err error
	defer observe("add_dependency")(&err)
	if _, err = t.tx.Exec(ctx, q, pkg, string(dep.Kind), dep.Capability, string(dep.Op), dep.Version, dep.PreReq); err != nil {
		return &errs.DB{Err: fmt.Errorf("store: add_dependency: %w", err)}
	}
	return nil
}

// AddPackageTrigger records a trigger row and its nested condition list.
func (t *tx) AddPackageTrigger(ctx context.Context, pkg int64, script, interp string, conditions []store.TriggerCondition) error {
	const insertTrigger = `
		INSERT INTO package_trigger (package_id, script, interp) VALUES ($1, $2, $3) RETURNING id`
	const insertCondition = `
		INSERT INTO package_trigger_condition (trigger_id, name, op, version, flags) VALUES ($1, $2, $3, $4, $5)`
	var err error
	defer observe("add_package_trigger")(&err)

	var triggerID int64
	if err = t.tx.QueryRow(ctx, insertTrigger, pkg, script, interp).Scan(&triggerID); err != nil {
		return &errs.DB{Err: fmt.Errorf("store: add_package_trigger: %w", err)}
	}
	for _, c := range conditions {
		if _, err = t.tx.Exec(ctx, insertCondition, triggerID, c.Name, string(c.Op), c.Version, c.Flags); err != nil {
			return &errs.DB{Err: fmt.Errorf("store: add_package_trigger condition: %w", err)}
		}
	}
	return nil
}

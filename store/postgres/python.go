package postgres

import (
	"context"
	"fmt"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/errs"
)

func (t *tx) AddPythonImport(ctx context.Context, contents int64, imp *sdb.PythonImport) error {
	const insert = `INSERT INTO python_import (contents_id, module, attributes) VALUES ($1, $2, $3)`
	var err error
	defer observe("add_python_import")(&err)
	if _, err = t.tx.Exec(ctx, insert, contents, imp.Module, imp.Attributes); err != nil {
		return &errs.DB{Err: fmt.Errorf("store: add_python_import: %w", err)}
	}
	return nil
}

func (t *tx) AddPythonError(ctx context.Context, contents int64, e *sdb.PythonError) error {
	const insert = `INSERT INTO python_error (contents_id, line, message) VALUES ($1, $2, $3)`
	var err error
	defer observe("add_python_error")(&err)
	if _, err = t.tx.Exec(ctx, insert, contents, e.Line, e.Message); err != nil {
		return &errs.DB{Err: fmt.Errorf("store: add_python_error: %w", err)}
	}
	return nil
}

// HasPythonImports guards re-analysis of contents shared across hard links
// (a ghost and its target may collide even though distinct hard links
// can't).
func (t *tx) HasPythonImports(ctx context.Context, contents int64) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM python_import WHERE contents_id = $1)`
	var err error
	defer observe("has_python_imports")(&err)
	var ok bool
	if err = t.tx.QueryRow(ctx, q, contents).Scan(&ok); err != nil {
		return false, &errs.DB{Err: fmt.Errorf("store: has_python_imports: %w", err)}
	}
	return ok, nil
}

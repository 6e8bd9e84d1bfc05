package postgres

import (
	"context"
	"fmt"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/errs"
)

func (t *tx) AddJavaClass(ctx context.Context, contents int64, class *sdb.JavaClass) error {
	const insert = `
		INSERT INTO java_class (contents_id, member, access_flags, this_class, super_class, interfaces, class_references)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`
	var err error
	defer observe("add_java_class")(&err)
	var super any
	if class.SuperClass != "" {
		super = class.SuperClass
	}
	if _, err = t.tx.Exec(ctx, insert, contents, class.Member, class.AccessFlags, class.ThisClass, super, class.Interfaces, class.References); err != nil {
		return &errs.DB{Err: fmt.Errorf("store: add_java_class: %w", err)}
	}
	return nil
}

func (t *tx) AddJavaError(ctx context.Context, contents int64, e *sdb.JavaError) error {
	const insert = `INSERT INTO java_error (contents_id, member, message) VALUES ($1, $2, $3)`
	var err error
	defer observe("add_java_error")(&err)
	if _, err = t.tx.Exec(ctx, insert, contents, e.Member, e.Message); err != nil {
		return &errs.DB{Err: fmt.Errorf("store: add_java_error: %w", err)}
	}
	return nil
}

package postgres

import (
	"context"
	"fmt"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/errs"
)

// AddELFImage records the image-level row; sub-entities (definitions,
// references, needed, rpath, runpath, errors) are added by the remaining
// methods in this file. Callers only invoke these when AddFile reported
// fresh true for that contents row.
func (t *tx) AddELFImage(ctx context.Context, contents int64, img *sdb.Image) error {
	const insert = `
		INSERT INTO elf_image (contents_id, ei_class, ei_data, e_type, e_machine, architecture, build_id, soname)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	var err error
	defer observe("add_elf_image")(&err)
	var arch any
	if img.Architecture != "" {
		arch = img.Architecture
	}
	var buildID any
	if len(img.BuildID) > 0 {
		buildID = img.BuildID
	}
	var soname any
	if img.Soname != "" {
		soname = img.Soname
	}
	if _, err = t.tx.Exec(ctx, insert, contents, uint8(img.Class), uint8(img.Data), img.Type, img.Machine, arch, buildID, soname); err != nil {
		return &errs.DB{Err: fmt.Errorf("store: add_elf_image: %w", err)}
	}
	return nil
}

func (t *tx) AddELFSymbolDefinition(ctx context.Context, contents int64, def sdb.SymbolDefinition) error {
	const insert = `
		INSERT INTO elf_symbol_definition (contents_id, name, version, is_default, value, section, binding, type, visibility)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	var err error
	defer observe("add_elf_symbol_definition")(&err)
	if _, err = t.tx.Exec(ctx, insert, contents, def.Name, def.Version, def.Default, def.Value, def.Section, uint8(def.Binding), uint8(def.Type), uint8(def.Visibility)); err != nil {
		return &errs.DB{Err: fmt.Errorf("store: add_elf_symbol_definition: %w", err)}
	}
	return nil
}

func (t *tx) AddELFSymbolReference(ctx context.Context, contents int64, ref sdb.SymbolReference) error {
	const insert = `INSERT INTO elf_symbol_reference (contents_id, name, version, weak) VALUES ($1,$2,$3,$4)`
	var err error
	defer observe("add_elf_symbol_reference")(&err)
	if _, err = t.tx.Exec(ctx, insert, contents, ref.Name, ref.Version, ref.Weak); err != nil {
		return &errs.DB{Err: fmt.Errorf("store: add_elf_symbol_reference: %w", err)}
	}
	return nil
}

func (t *tx) AddELFNeeded(ctx context.Context, contents int64, soname string) error {
	const insert = `INSERT INTO elf_needed (contents_id, soname) VALUES ($1, $2)`
	var err error
	defer observe("add_elf_needed")(&err)
	if _, err = t.tx.Exec(ctx, insert, contents, soname); err != nil {
		return &errs.DB{Err: fmt.Errorf("store: add_elf_needed: %w", err)}
	}
	return nil
}

func (t *tx) AddELFRPath(ctx context.Context, contents int64, path string) error {
	const insert = `INSERT INTO elf_rpath (contents_id, path) VALUES ($1, $2)`
	var err error
	defer observe("add_elf_rpath")(&err)
	if _, err = t.tx.Exec(ctx, insert, contents, path); err != nil {
		return &errs.DB{Err: fmt.Errorf("store: add_elf_rpath: %w", err)}
	}
	return nil
}

func (t *tx) AddELFRunPath(ctx context.Context, contents int64, path string) error {
	const insert = `INSERT INTO elf_runpath (contents_id, path) VALUES ($1, $2)`
	var err error
	defer observe("add_elf_runpath")(&err)
	if _, err = t.tx.Exec(ctx, insert, contents, path); err != nil {
		return &errs.DB{Err: fmt.Errorf("store: add_elf_runpath: %w", err)}
	}
	return nil
}

func (t *tx) AddELFError(ctx context.Context, contents int64, message string) error {
	const insert = `INSERT INTO elf_error (contents_id, message) VALUES ($1, $2)`
	var err error
	defer observe("add_elf_error")(&err)
	if _, err = t.tx.Exec(ctx, insert, contents, message); err != nil {
		return &errs.DB{Err: fmt.Errorf("store: add_elf_error: %w", err)}
	}
	return nil
}

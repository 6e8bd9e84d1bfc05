package ingest

import (
	"bytes"
	"context"
	"errors"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/elf"
	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/jar"
	"github.com/symboldb/symboldb/javaclass"
	"github.com/symboldb/symboldb/pyimport"
	"github.com/symboldb/symboldb/store"
)

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// analyze dispatches data — the full content bytes of a freshly interned
// contents row — to whichever format analyzer (C7a-d) recognizes it.
// Unrecognized content (the common case: plain data files) is silently left
// with no analyzer rows.
func (d *Driver) analyze(ctx context.Context, tx store.Tx, contents int64, data []byte) error {
	switch {
	case bytes.HasPrefix(data, elfMagic):
		return d.analyzeELF(ctx, tx, contents, data)
	case javaclass.HasSignature(data):
		return d.analyzeJavaClass(ctx, tx, contents, data, "")
	case bytes.HasPrefix(data, jar.Header):
		return d.analyzeJar(ctx, tx, contents, data)
	case pyimport.IsCandidate(data):
		return d.analyzePython(ctx, tx, contents, data)
	}
	return nil
}

func (d *Driver) analyzeELF(ctx context.Context, tx store.Tx, contents int64, data []byte) error {
	img, err := elf.Parse(data)
	if err != nil {
		var m *errs.Malformed
		if errors.As(err, &m) {
			return tx.AddELFError(ctx, contents, err.Error())
		}
		return err
	}
	if err := tx.AddELFImage(ctx, contents, img); err != nil {
		return err
	}
	for _, def := range img.Definitions {
		if err := tx.AddELFSymbolDefinition(ctx, contents, def); err != nil {
			return err
		}
	}
	for _, ref := range img.References {
		if err := tx.AddELFSymbolReference(ctx, contents, ref); err != nil {
			return err
		}
	}
	for _, soname := range img.Needed {
		if err := tx.AddELFNeeded(ctx, contents, soname); err != nil {
			return err
		}
	}
	for _, p := range img.RPath {
		if err := tx.AddELFRPath(ctx, contents, p); err != nil {
			return err
		}
	}
	for _, p := range img.RunPath {
		if err := tx.AddELFRunPath(ctx, contents, p); err != nil {
			return err
		}
	}
	for _, e := range img.Errors {
		if err := tx.AddELFError(ctx, contents, e); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) analyzeJavaClass(ctx context.Context, tx store.Tx, contents int64, data []byte, member string) error {
	jc, err := javaclass.Parse(data, member)
	if err != nil {
		return tx.AddJavaError(ctx, contents, &sdb.JavaError{Member: member, Message: err.Error()})
	}
	return tx.AddJavaClass(ctx, contents, jc)
}

func (d *Driver) analyzeJar(ctx context.Context, tx store.Tx, contents int64, data []byte) error {
	res, err := jar.Parse(data)
	if err != nil {
		var m *errs.Malformed
		if errors.As(err, &m) {
			return tx.AddJavaError(ctx, contents, &sdb.JavaError{Message: err.Error()})
		}
		return err
	}
	for _, jc := range res.Classes {
		if err := tx.AddJavaClass(ctx, contents, jc); err != nil {
			return err
		}
	}
	for _, je := range res.Errors {
		if err := tx.AddJavaError(ctx, contents, je); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) analyzePython(ctx context.Context, tx store.Tx, contents int64, data []byte) error {
	already, err := tx.HasPythonImports(ctx, contents)
	if err != nil {
		return err
	}
	if already {
		return nil
	}
	res, err := d.Python.Parse(ctx, data)
	if err != nil {
		return err
	}
	if res.Error != nil {
		return tx.AddPythonError(ctx, contents, res.Error)
	}
	for _, imp := range res.Imports {
		if err := tx.AddPythonImport(ctx, contents, imp); err != nil {
			return err
		}
	}
	return nil
}

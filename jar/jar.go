// Package jar implements the ZIP/jar archive analyzer (C7c): it streams the
// members of a Java archive, routing every member whose bytes open with the
// Java class file magic to the class file analyzer.
package jar

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/javaclass"
)

// Header is the magic bytes identifying a ZIP local file header, shared with
// the jar-detection heuristic elsewhere in the pipeline.
var Header = []byte{'P', 'K', 0x03, 0x04}

// Result holds the classes and per-member failures discovered in one archive.
type Result struct {
	Classes []*sdb.JavaClass
	Errors  []*sdb.JavaError
}

// Parse decodes the ZIP archive in data and analyzes every member that looks
// like a compiled Java class. Per-member read or parse failures are recorded
// in the returned Result's Errors rather than aborting the archive. An error
// is returned only when data isn't a parseable ZIP archive at all.
func Parse(data []byte) (*Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &errs.Malformed{Of: errs.MalformedZip, Msg: "not a zip archive", Err: err}
	}

	res := &Result{}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		body, err := readMember(f)
		if err != nil {
			res.Errors = append(res.Errors, &sdb.JavaError{Member: f.Name, Message: err.Error()})
			continue
		}
		if !javaclass.HasSignature(body) {
			continue
		}
		jc, err := javaclass.Parse(body, f.Name)
		if err != nil {
			res.Errors = append(res.Errors, &sdb.JavaError{Member: f.Name, Message: err.Error()})
			continue
		}
		res.Classes = append(res.Classes, jc)
	}
	return res, nil
}

// readMember decompresses one ZIP member fully into memory. Class files are
// small, and the member count per archive is bounded, so streaming member
// data incrementally wouldn't meaningfully change memory pressure here.
func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("jar: opening %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("jar: reading %s: %w", f.Name, err)
	}
	return data, nil
}

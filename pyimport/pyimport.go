// Package pyimport implements the Python import analyzer (C7d): source
// candidate detection and a subprocess-driven AST walk that extracts the
// imports of a Python source file.
//
// The source is handed to a small embedded Python helper script over a
// length-prefixed pipe protocol, trying a Python 2 interpreter before
// falling back to Python 3. Each [Analyzer] keeps its interpreters running
// across calls, so it should not be shared between goroutines.
package pyimport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/errs"
)

// candidateWindow is the number of leading bytes inspected for the "python"
// hint.
const candidateWindow = 100

// IsCandidate reports whether data looks like a Python source file: it
// starts with '#' and mentions "python" somewhere in its first 100 bytes
// (a shebang line such as "#!/usr/bin/env python3").
func IsCandidate(data []byte) bool {
	if len(data) == 0 || data[0] != '#' {
		return false
	}
	n := len(data)
	if n > candidateWindow {
		n = candidateWindow
	}
	return bytes.Contains(bytes.ToLower(data[:n]), []byte("python"))
}

// Result is the outcome of analyzing one Python source candidate: either a
// list of imports, or a parse error, never both.
type Result struct {
	Imports []*sdb.PythonImport
	Error   *sdb.PythonError
	// Version is the interpreter version (2 or 3) that produced Imports, or
	// zero when Error is set.
	Version int
}

// Analyzer drives the Python 2 and Python 3 helper subprocesses. The zero
// value is ready to use. Call [Analyzer.Close] when done to release the
// subprocesses.
type Analyzer struct {
	mu      sync.Mutex
	python2 *interpreter
	python3 *interpreter

	// Python2Path/Python3Path override the interpreter executables used,
	// for tests. Empty means the default "python2"/"python3".
	Python2Path string
	Python3Path string
}

// Parse analyzes source, a candidate Python file's raw bytes. An error is
// returned only for an infrastructure failure (no interpreter could be
// started); syntax failures in the source itself are reported via
// Result.Error.
func (a *Analyzer) Parse(ctx context.Context, source []byte) (*Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if line, ok := embeddedNUL(source); ok {
		return &Result{Error: &sdb.PythonError{Line: line, Message: "source code contains NUL character"}}, nil
	}

	var r2 *parseResult
	py2, err2 := a.ensure(&a.python2, a.path2(), 2)
	if err2 == nil {
		r2, err2 = py2.parse(ctx, source)
	}
	if err2 == nil && r2.errorLine == 0 {
		return &Result{Imports: toPythonImports(r2), Version: 2}, nil
	}

	py3, err := a.ensure(&a.python3, a.path3(), 3)
	if err != nil {
		return nil, errors.Join(err2, err)
	}
	r3, err := py3.parse(ctx, source)
	if err != nil {
		return nil, errors.Join(err2, err)
	}
	if r3.errorLine == 0 {
		return &Result{Imports: toPythonImports(r3), Version: 3}, nil
	}

	// Neither interpreter accepted the source. Per the original
	// implementation, report the one whose error is further into the file.
	if r2 == nil || r3.errorLine > r2.errorLine {
		return &Result{Error: &sdb.PythonError{Line: int(r3.errorLine), Message: r3.errorMsg}}, nil
	}
	return &Result{Error: &sdb.PythonError{Line: int(r2.errorLine), Message: r2.errorMsg}}, nil
}

func (a *Analyzer) path2() string {
	if a.Python2Path != "" {
		return a.Python2Path
	}
	return "python2"
}

func (a *Analyzer) path3() string {
	if a.Python3Path != "" {
		return a.Python3Path
	}
	return "python3"
}

func (a *Analyzer) ensure(slot **interpreter, path string, version int) (*interpreter, error) {
	if *slot != nil && (*slot).running() {
		return *slot, nil
	}
	interp, err := startInterpreter(path, version)
	if err != nil {
		return nil, err
	}
	*slot = interp
	return interp, nil
}

// Close terminates any running interpreter subprocesses.
func (a *Analyzer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var err1, err2 error
	if a.python2 != nil {
		err1 = a.python2.close()
	}
	if a.python3 != nil {
		err2 = a.python3.close()
	}
	return errors.Join(err1, err2)
}

// embeddedNUL reports whether source contains a NUL byte, and if so, the
// 1-based line (1 plus the count of newlines preceding it).
func embeddedNUL(source []byte) (int, bool) {
	i := bytes.IndexByte(source, 0)
	if i < 0 {
		return 0, false
	}
	return 1 + bytes.Count(source[:i], []byte{'\n'}), true
}

func toPythonImports(r *parseResult) []*sdb.PythonImport {
	imports := make([]*sdb.PythonImport, 0, len(r.imports))
	for i, module := range r.imports {
		var attrs []string
		if i < len(r.attributes) && r.attributes[i] != "" {
			attrs = strings.Split(r.attributes[i], ",")
		}
		imports = append(imports, &sdb.PythonImport{Module: module, Attributes: attrs})
	}
	return imports
}

// interpreter manages one long-running Python helper subprocess and its
// length-prefixed request/response protocol: numbers are 32-bit big-endian;
// strings are length-prefixed bytes; arrays are a count followed by that
// many strings.
type interpreter struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	version int
}

func startInterpreter(path string, version int) (*interpreter, error) {
	cmd := exec.Command(path, "-c", pythonHelperScript)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &errs.IO{Err: fmt.Errorf("pyimport: creating stdin pipe: %w", err)}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &errs.IO{Err: fmt.Errorf("pyimport: creating stdout pipe: %w", err)}
	}
	if err := cmd.Start(); err != nil {
		return nil, &errs.IO{Err: fmt.Errorf("pyimport: starting %s: %w", path, err)}
	}
	return &interpreter{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout), version: version}, nil
}

func (p *interpreter) running() bool {
	return p.cmd.ProcessState == nil
}

func (p *interpreter) close() error {
	p.stdin.Close()
	return p.cmd.Wait()
}

type parseResult struct {
	errorMsg   string
	errorLine  uint32
	imports    []string
	attributes []string
}

func (p *interpreter) parse(ctx context.Context, source []byte) (*parseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := writeString(p.stdin, source); err != nil {
		return nil, &errs.IO{Err: fmt.Errorf("pyimport: writing to python%d helper: %w", p.version, err)}
	}
	msg, err := readString(p.stdout)
	if err != nil {
		return nil, &errs.IO{Err: fmt.Errorf("pyimport: reading from python%d helper: %w", p.version, err)}
	}
	line, err := readNumber(p.stdout)
	if err != nil {
		return nil, &errs.IO{Err: fmt.Errorf("pyimport: reading from python%d helper: %w", p.version, err)}
	}
	imports, err := readArray(p.stdout)
	if err != nil {
		return nil, &errs.IO{Err: fmt.Errorf("pyimport: reading from python%d helper: %w", p.version, err)}
	}
	attributes, err := readArray(p.stdout)
	if err != nil {
		return nil, &errs.IO{Err: fmt.Errorf("pyimport: reading from python%d helper: %w", p.version, err)}
	}
	return &parseResult{errorMsg: string(msg), errorLine: line, imports: imports, attributes: attributes}, nil
}

func writeNumber(w io.Writer, n uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], n)
	_, err := w.Write(buf[:])
	return err
}

func writeString(w io.Writer, s []byte) error {
	if err := writeNumber(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write(s)
	return err
}

func readNumber(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func readString(r io.Reader) ([]byte, error) {
	n, err := readNumber(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readArray(r io.Reader) ([]string, error) {
	n, err := readNumber(r)
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		out[i] = string(s)
	}
	return out, nil
}

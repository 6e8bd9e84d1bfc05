package pyimport

import (
	"context"
	"os/exec"
	"testing"
	"time"
)

func TestIsCandidate(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want bool
	}{
		{"shebang python3", []byte("#!/usr/bin/env python3\nimport os\n"), true},
		{"shebang python2", []byte("#!/usr/bin/python\nimport os\n"), true},
		{"not a comment", []byte("import os\n"), false},
		{"comment without python", []byte("# a regular comment\n"), false},
		{"empty", nil, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := IsCandidate(c.data); got != c.want {
				t.Fatalf("IsCandidate(%q) = %v, want %v", c.data, got, c.want)
			}
		})
	}
}

func TestEmbeddedNUL(t *testing.T) {
	line, ok := embeddedNUL([]byte("a\nb\x00c"))
	if !ok || line != 2 {
		t.Fatalf("embeddedNUL = (%d, %v), want (2, true)", line, ok)
	}
	if _, ok := embeddedNUL([]byte("no nul here")); ok {
		t.Fatal("expected no NUL to be found")
	}
}

func TestParseRefusesEmbeddedNUL(t *testing.T) {
	a := &Analyzer{}
	res, err := a.Parse(context.Background(), []byte("#!/usr/bin/env python\nimport os\n\x00more"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Error == nil || res.Error.Line != 3 {
		t.Fatalf("result = %+v, want a NUL error at line 3", res)
	}
}

// findPython locates a usable interpreter pair for the subprocess-driven
// tests, skipping them entirely when neither is installed.
func findPython(t *testing.T) (python2, python3 string) {
	t.Helper()
	if p, err := exec.LookPath("python2"); err == nil {
		python2 = p
	}
	if p, err := exec.LookPath("python3"); err == nil {
		python3 = p
	}
	if python2 == "" && python3 == "" {
		t.Skip("no python2 or python3 interpreter found in PATH")
	}
	return python2, python3
}

func TestParseValidSource(t *testing.T) {
	py2, py3 := findPython(t)
	a := &Analyzer{Python2Path: py2, Python3Path: py3}
	if py2 == "" {
		a.Python2Path = py3 // force the python3-only path to be exercised
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	src := []byte("#!/usr/bin/env python\nimport os\nfrom collections import OrderedDict, defaultdict\n")
	res, err := a.Parse(ctx, src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Error != nil {
		t.Fatalf("unexpected parse error: %+v", res.Error)
	}
	var sawOS, sawCollections bool
	for _, imp := range res.Imports {
		switch imp.Module {
		case "os":
			sawOS = true
		case "collections":
			sawCollections = true
			want := map[string]bool{"OrderedDict": true, "defaultdict": true}
			if len(imp.Attributes) != 2 || !want[imp.Attributes[0]] || !want[imp.Attributes[1]] {
				t.Fatalf("collections attributes = %v", imp.Attributes)
			}
		}
	}
	if !sawOS || !sawCollections {
		t.Fatalf("imports = %+v, missing os/collections", res.Imports)
	}
}

func TestParseSyntaxError(t *testing.T) {
	py2, py3 := findPython(t)
	a := &Analyzer{Python2Path: py2, Python3Path: py3}
	if py2 == "" {
		a.Python2Path = py3
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	src := []byte("#!/usr/bin/env python\ndef f(:\n    pass\n")
	res, err := a.Parse(ctx, src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Error == nil {
		t.Fatalf("expected a syntax error, got imports %+v", res.Imports)
	}
}

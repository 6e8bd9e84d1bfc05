// Package closure implements the link-closure resolver (C12): for a package
// set, it maps every ELF file's needed sonames to a chosen provider within
// the same set.
//
// Resolve is a pure function over an in-memory file list so it has no
// dependency on the relational store; the caller (store/postgres) is the
// one that knows how to load a set's ELF files and persist the result.
package closure

import sdb "github.com/symboldb/symboldb"

// File is one ELF file in a package set, as the resolver needs it.
type File struct {
	FileID    int64
	PackageID int64
	Path      string
	Class     sdb.ELFClass
	Data      sdb.ELFData
	Soname    string // Empty when the file carries none.
	Needed    []string
}

// Edge is one output row: a needing file's resolution for one needed
// soname, matching sdb.ClosureEdge's shape.
type Edge struct {
	NeedingFile int64
	Soname      string
	ChosenFile  int64
	Conflicts   []int64 // Candidate file ids, chosen first, when len > 1.
	Missing     bool
}

// EventFunc, when non-nil, is invoked for every Edge before it is returned,
// letting a caller observe resolution events for diagnostics or dry-runs
// before they're written.
type EventFunc func(Edge)

// Resolve computes the link closure for files: for each file F needing
// soname S, candidates are the files providing S whose Class and Data match
// F's. Zero candidates is a miss; more than one is a conflict, resolved
// deterministically (package id, then path) with the chosen candidate
// listed first.
func Resolve(files []File, onEvent EventFunc) []Edge {
	providers := make(map[string][]File)
	for _, f := range files {
		if f.Soname == "" {
			continue
		}
		providers[f.Soname] = append(providers[f.Soname], f)
	}

	var out []Edge
	for _, f := range files {
		for _, soname := range f.Needed {
			edge := resolveOne(f, soname, providers[soname])
			if onEvent != nil {
				onEvent(edge)
			}
			out = append(out, edge)
		}
	}
	return out
}

func resolveOne(needer File, soname string, all []File) Edge {
	var candidates []File
	for _, p := range all {
		if p.Class == needer.Class && p.Data == needer.Data {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return Edge{NeedingFile: needer.FileID, Soname: soname, Missing: true}
	}
	sortCandidates(candidates)
	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.FileID
	}
	edge := Edge{NeedingFile: needer.FileID, Soname: soname, ChosenFile: ids[0]}
	if len(ids) > 1 {
		edge.Conflicts = ids
	}
	return edge
}

// sortCandidates orders by package id then file path, the deterministic
// tie-break for conflicting providers.
func sortCandidates(files []File) {
	for i := 1; i < len(files); i++ {
		for j := i; j > 0 && less(files[j], files[j-1]); j-- {
			files[j], files[j-1] = files[j-1], files[j]
		}
	}
}

func less(a, b File) bool {
	if a.PackageID != b.PackageID {
		return a.PackageID < b.PackageID
	}
	return a.Path < b.Path
}

// Package rpmver implements RPM version comparison: the algorithm the
// package-set consolidator (C9) uses to decide which of two same-(name,
// arch) occurrences is newer.
package rpmver

import (
	"strings"
	"unicode/utf8"
)

// Version is an RPM epoch/version/release triplet. Packages already carry
// these as separate fields (see [github.com/symboldb/symboldb.Package]), so
// this package has no NEVRA-string parser to build or maintain — only the
// comparison the consolidator needs.
type Version struct {
	Epoch   string
	Version string
	Release string
}

// Compare orders two Versions the way rpm itself does: epoch first, then
// version, then release, each compared with [rpmvercmp].
func Compare(a, b *Version) int {
	if c := rpmvercmp(a.Epoch, b.Epoch); c != 0 {
		return c
	}
	if c := rpmvercmp(a.Version, b.Version); c != 0 {
		return c
	}
	return rpmvercmp(a.Release, b.Release)
}

// rpmvercmp compares RPM version strings.
//
// This is a port of the C version at https://github.com/rpm-software-management/rpm/blob/572844039a04846fe9e030cbacb6336e2240bd6f/rpmio/rpmvercmp.cc
//
//	 1: a is newer than b
//	 0: a and b are the same version
//	-1: b is newer than a
func rpmvercmp(a, b string) int {
	// Easy comparison to see if versions are identical.
	if a == b {
		return 0
	}

	// Loop through each version segment of a and b and compare them.
	for {
		a = strings.TrimLeftFunc(a, rpmSeparatorTrim)
		b = strings.TrimLeftFunc(b, rpmSeparatorTrim)

		// Handle the tilde separator; it sorts before everything else.
		switch {
		case strings.HasPrefix(a, "~") && strings.HasPrefix(b, "~"):
			a = a[1:]
			b = b[1:]
		case strings.HasPrefix(a, "~") && !strings.HasPrefix(b, "~"):
			return -1
		case !strings.HasPrefix(a, "~") && strings.HasPrefix(b, "~"):
			return 1
		}

		// Handle caret separator. Concept is the same as tilde, except that if
		// one of the strings ends (base version), the other is considered as
		// higher version.
		switch {
		case strings.HasPrefix(a, "^") && strings.HasPrefix(b, "^"):
			a = a[1:]
			b = b[1:]
		case a == "" && strings.HasPrefix(b, "^"):
			return -1
		case strings.HasPrefix(a, "^") && b == "":
			return 1
		case strings.HasPrefix(a, "^") && !strings.HasPrefix(b, "^"):
			return -1
		case !strings.HasPrefix(a, "^") && strings.HasPrefix(b, "^"):
			return 1
		}

		// If we ran to the end of either, we are finished with the loop.
		if a == "" || b == "" {
			break
		}

		// Grab first completely alpha or completely numeric segment.
		//
		// Have aSeg and bSeg point to the start of the alpha or numeric segment
		// and walk a and b to end of segment.
		r, _ := utf8.DecodeRuneInString(a)
		isnum := isDigit(r)
		var aSeg, bSeg string
		if isnum {
			aSeg, a = splitFunc(a, isDigit)
			bSeg, b = splitFunc(b, isDigit)
		} else {
			aSeg, a = splitFunc(a, isAlpha)
			bSeg, b = splitFunc(b, isAlpha)
		}

		switch {
		// This cannot happen, as we previously tested to make sure that the
		// first string has a non-null segment.
		case aSeg == "":
			return -1 // Called out as arbitrary in C implementation.

		// Take care of the case where the two version segments are different
		// types: one numeric, the other alpha (i.e. empty). Numeric segments
		// are always newer than alpha segments.
		//
		// XXX See patch #60884 (and details) from bugzilla #50977. (RPM project)
		case bSeg == "" && !isnum:
			return -1
		case bSeg == "" && isnum:
			return 1
		}

		if isnum {
			// This used to be done by converting the digit segments to ints
			// using atoi(). It's changed because long digit segments can
			// overflow an int. This should fix that.

			// Throw away any leading zeros - it's a number, right?
			aSeg = strings.TrimLeft(aSeg, "0")
			bSeg = strings.TrimLeft(bSeg, "0")

			// Whichever number has more digits wins.
			switch {
			case len(aSeg) > len(bSeg):
				return 1
			case len(aSeg) < len(bSeg):
				return -1
			}
		}

		// Strcmp will return which one is greater, even if the two segments are
		// alpha or if they are numeric. Don't return if they are equal because
		// there might be more segments to compare.
		if c := strings.Compare(aSeg, bSeg); c != 0 {
			return c
		}
	}

	switch {
	// This catches the case where all numeric and alpha segments have compared
	// identically but the segment separating characters were different.
	case a == "" && b == "":
		return 0

	// Whichever version still has characters left over wins.
	case a != "" && b == "":
		return 1
	case a == "" && b != "":
		return -1

	// Unreachable:
	case a != "" && b != "":
	}
	panic("unreachable")
}

// rpmSeparatorTrim reports true for non-operative separator runes.
func rpmSeparatorTrim(r rune) bool {
	return !isAlnum(r) && r != '~' && r != '^'
}

// splitFunc splits the string on the index reported by the inverse of f.
func splitFunc(s string, f func(rune) bool) (string, string) {
	i := strings.IndexFunc(s, func(r rune) bool { return !f(r) })
	if i == -1 {
		return s, ""
	}
	return s[:i], s[i:]
}

func isAlpha(r rune) bool { return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' }

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isAlnum(r rune) bool { return isAlpha(r) || isDigit(r) }

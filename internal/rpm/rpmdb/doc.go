// Package rpmdb parses the RPM "header blob" binary format: a tag-count and
// data-size preamble, a sorted array of fixed-size entry descriptors, and a
// data region the descriptors index into.
//
// The same blob format backs both sections of a standalone .rpm file that
// [github.com/symboldb/symboldb/internal/rpm] reads (the signature header and the
// main header), differing only in the tag namespace each uses and in
// whether a leading region tag is present.
//
// See the reference material at
// https://rpm-software-management.github.io/rpm/manual/.
package rpmdb

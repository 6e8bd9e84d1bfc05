// Package rpm reads standalone RPM v3 package files: the 96-byte lead, the
// signature header, the main header, and the compressed CPIO payload that
// follows them.
//
// It does not open an installed RPM database (bdb/ndb/sqlite) and does not
// verify any signature cryptographically; the signature header is read only
// far enough to locate the header digest used as a package's identity hash
// and the PGP signature packet whose key id is surfaced as [Package].KeyID.
package rpm

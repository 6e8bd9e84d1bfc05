package symboldb

import "unicode/utf8"

// RepairUTF8 returns b as a string unchanged when it already is valid
// UTF-8; otherwise it reinterprets the bytes as Latin-1 (ISO-8859-1), the
// fallback license strings and CPIO path names need when a header wasn't
// actually UTF-8 to begin with. Latin-1 is a direct byte-to-code-point
// mapping, so no charset-conversion library is needed: each byte becomes
// the rune of the same numeric value.
func RepairUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}

package symboldb

import (
	"encoding/hex"
	"fmt"
)

// HashKind names a supported digest algorithm.
//
// The file cache ([github.com/symboldb/symboldb/filecache]) and the contents
// table key on these.
type HashKind string

// Supported digest algorithms.
const (
	MD5    HashKind = "md5"
	SHA1   HashKind = "sha1"
	SHA256 HashKind = "sha256"
)

// NoLength is the sentinel used when a byte length is unknown, e.g. a
// repository metadata entry that omitted a `<size>` element.
const NoLength int64 = -1

// Checksum identifies a byte string by algorithm, digest, and (optionally)
// length.
//
// A Length of [NoLength] means the length wasn't known at the
// time the Checksum was recorded; it is not the same as asserting a
// zero-length payload.
type Checksum struct {
	Kind   HashKind
	Digest []byte
	Length int64
}

// String implements [fmt.Stringer], formatting as "kind:hex".
func (c Checksum) String() string {
	return fmt.Sprintf("%s:%s", c.Kind, hex.EncodeToString(c.Digest))
}

// IsZero reports whether c is the zero value.
func (c Checksum) IsZero() bool {
	return c.Kind == "" && len(c.Digest) == 0
}

// emptySHA256 is the SHA-256 digest of zero bytes, used for ghost files.
var emptySHA256 = []byte{
	0xe3, 0xb0, 0xc4, 0x42, 0x98, 0xfc, 0x1c, 0x14,
	0x9a, 0xfb, 0xf4, 0xc8, 0x99, 0x6f, 0xb9, 0x24,
	0x27, 0xae, 0x41, 0xe4, 0x64, 0x9b, 0x93, 0x4c,
	0xa4, 0x95, 0x99, 0x1b, 0x78, 0x52, 0xb8, 0x55,
}

// EmptyContentsChecksum is the Checksum recorded for a ghost file: SHA-256
// of zero bytes, zero length.
func EmptyContentsChecksum() Checksum {
	return Checksum{Kind: SHA256, Digest: emptySHA256, Length: 0}
}

package symboldb

// FileFlag is a bitmask of RPM file attribute flags relevant to this index.
type FileFlag uint32

// Flags recorded on a [File], mirroring the subset of RPM's FILEFLAGS that
// matter to ingestion.
const (
	FlagGhost FileFlag = 1 << iota
	FlagConfig
	FlagDoc
	FlagNoReplace
)

// Has reports whether f has all the bits set in want.
func (f FileFlag) Has(want FileFlag) bool { return f&want == want }

// FileKind distinguishes the three file-table row shapes: a regular file
// (with Contents), a directory, or a symlink.
type FileKind string

// File row kinds.
const (
	RegularFile FileKind = "file"
	Directory   FileKind = "dir"
	Symlink     FileKind = "symlink"
)

// File is one (package, path) row.
//
// Identity is (Package, Path). Regular files reference a [Contents] row by
// digest; directories and symlinks carry no Contents (a symlink's target text
// is recorded directly on the row).
type File struct {
	Path string
	Kind FileKind

	Mode    uint32
	User    string
	Group   string
	MTime   int64
	Flags   FileFlag
	Ino     int64
	NLinks  int32

	// SymlinkTarget is set only when Kind == Symlink.
	SymlinkTarget string

	// ContentsChecksum identifies the [Contents] row for RegularFile rows
	// (including ghosts, which point at [EmptyContentsChecksum]).
	ContentsChecksum Checksum
}

// Contents is the deduplicated content entity keyed by SHA-256 of file
// bytes.
type Contents struct {
	Checksum Checksum // Kind is always SHA256.
	Length   int64
	Preview  []byte // Up to 64 bytes of the file's prefix.
}

// PreviewSize is the maximum number of leading bytes recorded in
// [Contents.Preview].
const PreviewSize = 64

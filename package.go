package symboldb

// Kind distinguishes binary and source packages.
type Kind string

// Package kinds.
const (
	Binary Kind = "binary"
	Source Kind = "source"
)

// Package is the identity and metadata of one RPM.
//
// Identity is the tuple (Name, Epoch, Version, Release, Arch, SourceRPM,
// BuildTime, BuildHost, Summary, Description, License, Group, Hash, Kind).
// The invariant (Name, Epoch, Version, Release, Arch, Kind) determines Hash.
// [github.com/symboldb/symboldb/store] interns packages by Hash alone and
// does not check that a stored row with the same Hash has the same tuple.
type Package struct {
	Name        string
	Epoch       *int32 // nil means "no epoch", distinct from epoch 0.
	Version     string
	Release     string
	Arch        string
	SourceRPM   string
	BuildTime   int64
	BuildHost   string
	Summary     string
	Description string
	License     string
	Group       string
	Vendor      string // Carried from the original RPM header's Vendor tag.
	Packager    string // Carried from the original RPM header's Packager tag.
	Hash        []byte // RPM header SHA-1.
	Kind        Kind

	// Module and ModuleStream, when non-empty, record a modularity label and
	// its derived stream component.
	Module       string
	ModuleStream string

	// NoSource and NoPatch list the indices from TagNoSource/TagNoPatch,
	// consumed by source packages only.
	NoSource []int32
	NoPatch  []int32
}

// Digest is an alternate full-file digest of the on-disk representation of a
// Package (different compressions or signatures can each yield one).
type Digest struct {
	Checksum Checksum
}

// DependencyKind enumerates the RPM relationship kinds.
type DependencyKind string

// Dependency kinds.
const (
	Requires  DependencyKind = "requires"
	Provides  DependencyKind = "provides"
	Obsoletes DependencyKind = "obsoletes"
	Conflicts DependencyKind = "conflicts"
)

// Op is a version-comparison operator carried by a [Dependency].
type Op string

// Comparison operators. The empty Op means the dependency is version-free.
const (
	OpNone   Op = ""
	OpLT     Op = "<"
	OpLE     Op = "<="
	OpEQ     Op = "="
	OpGE     Op = ">="
	OpGT     Op = ">"
)

// Dependency is one requires/provides/obsoletes/conflicts relation carried by
// a package.
type Dependency struct {
	Kind       DependencyKind
	Capability string
	Op         Op
	Version    string
	PreReq     bool
}

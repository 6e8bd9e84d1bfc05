package symboldb

// ELFClass is the ei_class field: 32- or 64-bit.
type ELFClass uint8

// ELF classes.
const (
	ELFClassNone ELFClass = iota
	ELFClass32
	ELFClass64
)

// ELFData is the ei_data field: byte order.
type ELFData uint8

// ELF byte orders.
const (
	ELFDataNone ELFData = iota
	ELFDataLSB
	ELFDataMSB
)

// Image is the per-[Contents] ELF metadata.
type Image struct {
	Class        ELFClass
	Data         ELFData
	Type         uint16 // e_type
	Machine      uint16 // e_machine
	Architecture string // Derived label, empty when e_machine is unrecognized.
	BuildID      []byte // .note.gnu.build-id, when present.
	Soname       string // First DT_SONAME seen, if any.

	Needed  []string
	RPath   []string
	RunPath []string

	Definitions []SymbolDefinition
	References  []SymbolReference
	Errors      []string
}

// SymbolBinding is the STB_* binding of an ELF symbol.
type SymbolBinding uint8

// SymbolType is the STT_* type of an ELF symbol.
type SymbolType uint8

// SymbolVisibility is the STV_* visibility of an ELF symbol.
type SymbolVisibility uint8

// ShndxSentinel marks a symbol's section index as the SHN_XINDEX escape,
// meaning the real index lives in the .symtab_shndx table.
const ShndxSentinel = -1

// SymbolDefinition is a defined dynamic symbol.
type SymbolDefinition struct {
	Name       string
	Version    string // Empty when unversioned.
	Default    bool   // True for "foo@@V1"-style default versions.
	Value      uint64
	Section    int32 // ShndxSentinel when SHN_XINDEX.
	Binding    SymbolBinding
	Type       SymbolType
	Visibility SymbolVisibility
	Other      uint8
}

// SymbolReference is an undefined (needed) dynamic symbol.
type SymbolReference struct {
	Name    string
	Version string
	Weak    bool
}

// Package elf implements the ELF format analyzer (C7a): it parses an
// in-memory byte range into an [sdb.Image] of symbol definitions and
// references, dynamic-section entries, and the build-id.
//
// It is built on the standard library's [debug/elf], matching the pack's own
// ELF-reading code; see DESIGN.md for the symbol-versioning extensions layered
// on top (the standard library resolves reference versions via the verneed
// table but never parses verdef, so default-versioned definitions such as
// "foo@@V1" are recovered here by hand).
package elf

import (
	"bytes"
	stdelf "debug/elf"
	"fmt"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/errs"
)

// Parse analyzes the ELF image in data. It never returns an error for
// malformed symbol-table or dynamic-section content; such failures are
// appended to the returned Image's Errors field instead, recorded per file
// rather than propagated. An error is returned only when data isn't a
// parseable ELF file at all.
func Parse(data []byte) (*sdb.Image, error) {
	f, err := stdelf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, &errs.Malformed{Of: errs.MalformedELF, Msg: "not an ELF file", Err: err}
	}
	defer f.Close()

	img := &sdb.Image{
		Class:        classOf(f.Class),
		Data:         dataOf(f.Data),
		Type:         uint16(f.Type),
		Machine:      uint16(f.Machine),
		Architecture: archLabel(f.Machine),
	}

	if id, err := buildID(f); err != nil {
		img.Errors = append(img.Errors, err.Error())
	} else {
		img.BuildID = id
	}

	if err := readDynamic(f, img); err != nil {
		img.Errors = append(img.Errors, err.Error())
	}

	if err := readSymbols(f, img); err != nil {
		img.Errors = append(img.Errors, err.Error())
	}

	return img, nil
}

func classOf(c stdelf.Class) sdb.ELFClass {
	switch c {
	case stdelf.ELFCLASS32:
		return sdb.ELFClass32
	case stdelf.ELFCLASS64:
		return sdb.ELFClass64
	default:
		return sdb.ELFClassNone
	}
}

func dataOf(d stdelf.Data) sdb.ELFData {
	switch d {
	case stdelf.ELFDATA2LSB:
		return sdb.ELFDataLSB
	case stdelf.ELFDATA2MSB:
		return sdb.ELFDataMSB
	default:
		return sdb.ELFDataNone
	}
}

// archLabel derives the architecture label from e_machine via a small
// enumerated mapping; unknown machines map to "". The labels differ
// slightly from RPM's arch names, as in the original implementation's
// elf_image::arch().
func archLabel(m stdelf.Machine) string {
	switch m {
	case stdelf.EM_386:
		return "i386"
	case stdelf.EM_X86_64:
		return "x86_64"
	case stdelf.EM_ARM:
		return "arm"
	case stdelf.EM_AARCH64:
		return "aarch64"
	case stdelf.EM_PPC:
		return "ppc"
	case stdelf.EM_PPC64:
		return "ppc64"
	case stdelf.EM_S390:
		return "s390x"
	case stdelf.EM_MIPS:
		return "mips"
	case stdelf.EM_RISCV:
		return "riscv"
	default:
		return ""
	}
}

// buildID extracts the .note.gnu.build-id program-header note. It scans
// PT_NOTE segments rather than the section table, since stripped binaries
// keep program headers but may drop sections.
func buildID(f *stdelf.File) ([]byte, error) {
	for _, prog := range f.Progs {
		if prog.Type != stdelf.PT_NOTE {
			continue
		}
		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil {
			return nil, fmt.Errorf("elf: reading PT_NOTE: %w", err)
		}
		if id, ok := findBuildIDNote(data, f.ByteOrder); ok {
			return id, nil
		}
	}
	return nil, nil
}

// findBuildIDNote walks a raw note segment, which is a sequence of
// (namesz, descsz, type, name, desc) records padded to 4-byte alignment.
func findBuildIDNote(data []byte, order byteOrder) ([]byte, bool) {
	const noteGNUBuildID = 3
	for len(data) >= 12 {
		namesz := order.Uint32(data[0:4])
		descsz := order.Uint32(data[4:8])
		typ := order.Uint32(data[8:12])
		off := 12
		nameEnd := off + int(align4(namesz))
		descStart := off + int(align4(namesz))
		descEnd := descStart + int(align4(descsz))
		if nameEnd > len(data) || descEnd > len(data) {
			return nil, false
		}
		name := data[off : off+int(namesz)]
		desc := data[descStart : descStart+int(descsz)]
		if typ == noteGNUBuildID && string(bytesTrimNul(name)) == "GNU" {
			return append([]byte(nil), desc...), true
		}
		data = data[descEnd:]
	}
	return nil, false
}

func align4(n uint32) uint32 { return (n + 3) &^ 3 }

func bytesTrimNul(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}

// byteOrder is the subset of encoding/binary.ByteOrder the note parser uses.
type byteOrder interface {
	Uint32([]byte) uint32
}

// readDynamic walks the .dynamic section, recording needed/soname/rpath/
// runpath entries in encounter order. Only the first soname is kept; later
// ones are recorded as errors.
func readDynamic(f *stdelf.File, img *sdb.Image) error {
	sonameSeen := false
	for _, tag := range []stdelf.DynTag{stdelf.DT_NEEDED, stdelf.DT_SONAME, stdelf.DT_RPATH, stdelf.DT_RUNPATH} {
		values, err := f.DynString(tag)
		if err != nil {
			return fmt.Errorf("elf: reading dynamic tag %v: %w", tag, err)
		}
		for _, v := range values {
			switch tag {
			case stdelf.DT_NEEDED:
				img.Needed = append(img.Needed, v)
			case stdelf.DT_SONAME:
				if !sonameSeen {
					img.Soname = v
					sonameSeen = true
				} else if v != img.Soname {
					img.Errors = append(img.Errors, fmt.Sprintf("elf: additional DT_SONAME %q ignored (first was %q)", v, img.Soname))
				}
			case stdelf.DT_RPATH:
				img.RPath = append(img.RPath, v)
			case stdelf.DT_RUNPATH:
				img.RunPath = append(img.RunPath, v)
			}
		}
	}
	return nil
}

// readSymbols populates img.Definitions and img.References from the dynamic
// symbol table. The standard library resolves a reference's version from
// the verneed table ([stdelf.File.DynamicSymbols]
// already does this), but it never parses verdef, so a defined symbol's own
// version and default-version flag are recovered here directly from
// .gnu.version and .gnu.version_d.
func readSymbols(f *stdelf.File, img *sdb.Image) error {
	syms, err := f.DynamicSymbols()
	if err != nil {
		if err == stdelf.ErrNoSymbols {
			return nil
		}
		return fmt.Errorf("elf: reading dynamic symbol table: %w", err)
	}

	defVersions, verr := parseVerdef(f)
	if verr != nil {
		img.Errors = append(img.Errors, verr.Error())
	}
	versym, _ := sectionData(f, ".gnu.version")

	for i, sym := range syms {
		if sym.Name == "" {
			continue
		}
		binding := sdb.SymbolBinding(stdelf.ST_BIND(sym.Info))
		typ := sdb.SymbolType(stdelf.ST_TYPE(sym.Info))

		if sym.Section == stdelf.SHN_UNDEF {
			img.References = append(img.References, sdb.SymbolReference{
				Name:    sym.Name,
				Version: sym.Version,
				Weak:    binding == sdb.SymbolBinding(stdelf.STB_WEAK),
			})
			continue
		}

		section := int32(sym.Section)
		if sym.Section == stdelf.SHN_XINDEX {
			section = sdb.ShndxSentinel
		}
		version, def := "", true
		if ndx, ok := versymIndex(versym, i, f.ByteOrder); ok {
			if v, ok := defVersions[ndx&0x7fff]; ok {
				version = v
				def = ndx&0x8000 == 0
			}
		}
		img.Definitions = append(img.Definitions, sdb.SymbolDefinition{
			Name:       sym.Name,
			Version:    version,
			Default:    def,
			Value:      sym.Value,
			Section:    section,
			Binding:    binding,
			Type:       typ,
			Visibility: sdb.SymbolVisibility(stdelf.ST_VISIBILITY(sym.Other)),
			Other:      sym.Other,
		})
	}
	return nil
}

// versymIndex returns the raw 16-bit version-symbol-table entry for the i'th
// dynamic symbol (excluding the null symbol at index 0, matching
// [stdelf.File.DynamicSymbols]'s indexing convention).
func versymIndex(versym []byte, i int, order byteOrder16) (uint16, bool) {
	if versym == nil {
		return 0, false
	}
	off := (i + 1) * 2
	if off+2 > len(versym) {
		return 0, false
	}
	return order.Uint16(versym[off : off+2]), true
}

// byteOrder16 is the subset of encoding/binary.ByteOrder the version-table
// readers use.
type byteOrder16 interface {
	Uint16([]byte) uint16
}

func sectionData(f *stdelf.File, name string) ([]byte, error) {
	sect := f.Section(name)
	if sect == nil {
		return nil, nil
	}
	return sect.Data()
}

// parseVerdef walks the .gnu.version_d section (SHT_GNU_VERDEF), building a
// map from version index (the low 15 bits of a .gnu.version entry) to
// version name.
func parseVerdef(f *stdelf.File) (map[uint16]string, error) {
	result := map[uint16]string{}
	data, err := sectionData(f, ".gnu.version_d")
	if err != nil || data == nil {
		return result, err
	}
	str, err := sectionData(f, ".dynstr")
	if err != nil {
		return result, fmt.Errorf("elf: reading .dynstr: %w", err)
	}
	order := f.ByteOrder
	i := 0
	for {
		if i+20 > len(data) {
			break
		}
		ndx := order.Uint16(data[i+4 : i+6])
		aux := order.Uint32(data[i+12 : i+16])
		next := order.Uint32(data[i+16 : i+20])

		if auxOff := i + int(aux); auxOff+8 <= len(data) {
			nameOff := order.Uint32(data[auxOff : auxOff+4])
			if name, ok := cString(str, int(nameOff)); ok {
				result[ndx&0x7fff] = name
			}
		}

		if next == 0 {
			break
		}
		i += int(next)
	}
	return result, nil
}

// cString reads a NUL-terminated string at offset off in a string table.
func cString(str []byte, off int) (string, bool) {
	if off < 0 || off >= len(str) {
		return "", false
	}
	end := off
	for end < len(str) && str[end] != 0 {
		end++
	}
	return string(str[off:end]), true
}

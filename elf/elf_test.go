package elf

import (
	"bytes"
	"encoding/binary"
	"testing"

	sdb "github.com/symboldb/symboldb"
)

// elfBuilder appends binary-encoded fields to an in-progress ELF image.
type elfBuilder struct {
	buf bytes.Buffer
}

func (b *elfBuilder) write(v any) {
	if err := binary.Write(&b.buf, binary.LittleEndian, v); err != nil {
		panic(err)
	}
}

// cstrTable builds a concatenated, NUL-terminated string table and returns
// the byte-offset of each input string within it (offset 0 is always the
// empty string, matching ELF convention).
func cstrTable(names ...string) ([]byte, map[string]uint32) {
	table := []byte{0}
	offs := map[string]uint32{"": 0}
	for _, n := range names {
		offs[n] = uint32(len(table))
		table = append(table, []byte(n)...)
		table = append(table, 0)
	}
	return table, offs
}

// buildSyntheticSharedObject constructs an ELF64 LE ET_DYN image exercising:
// a PT_NOTE build-id, a two-symbol dynamic symbol table (both defined, one
// default-versioned "foo@@V1" and one non-default "bar@V2"), and a dynamic
// section with DT_NEEDED/DT_SONAME/DT_RPATH.
func buildSyntheticSharedObject(t *testing.T) []byte {
	t.Helper()

	dynstr, off := cstrTable("foo", "bar", "V1", "V2", "libfoo.so.1", "/opt/lib", "libc.so.6")

	// .dynsym: Elf64_Sym{st_name,st_info,st_other,st_shndx,st_value,st_size}
	type sym64 struct {
		Name  uint32
		Info  uint8
		Other uint8
		Shndx uint16
		Value uint64
		Size  uint64
	}
	const stbGlobal, sttFunc = 1, 2
	dynsym := &bytes.Buffer{}
	binary.Write(dynsym, binary.LittleEndian, sym64{}) // null symbol at index 0
	binary.Write(dynsym, binary.LittleEndian, sym64{
		Name: off["foo"], Info: stbGlobal<<4 | sttFunc, Shndx: 1, Value: 0x1000,
	})
	binary.Write(dynsym, binary.LittleEndian, sym64{
		Name: off["bar"], Info: stbGlobal<<4 | sttFunc, Shndx: 1, Value: 0x2000,
	})

	// .gnu.version: one uint16 per dynsym entry, including the null symbol.
	versym := []uint16{0, 2, 3 | 0x8000} // foo -> verdef 2 (default), bar -> verdef 3 (hidden)
	versymBuf := &bytes.Buffer{}
	for _, v := range versym {
		binary.Write(versymBuf, binary.LittleEndian, v)
	}

	// .gnu.version_d: two chained Elf64_Verdef{+one Elf64_Verdaux} records.
	type verdef struct {
		Version, Flags, Ndx, Cnt uint16
		Hash                     uint32
		Aux, Next                uint32
	}
	type verdaux struct {
		Name, Next uint32
	}
	verdefBuf := &bytes.Buffer{}
	binary.Write(verdefBuf, binary.LittleEndian, verdef{Version: 1, Ndx: 2, Cnt: 1, Aux: 20, Next: 28})
	binary.Write(verdefBuf, binary.LittleEndian, verdaux{Name: off["V1"]})
	binary.Write(verdefBuf, binary.LittleEndian, verdef{Version: 1, Ndx: 3, Cnt: 1, Aux: 20, Next: 0})
	binary.Write(verdefBuf, binary.LittleEndian, verdaux{Name: off["V2"]})

	// .dynamic: Elf64_Dyn{tag,val} pairs, DT_NULL-terminated.
	type dyn64 struct{ Tag, Val int64 }
	dynamic := &bytes.Buffer{}
	binary.Write(dynamic, binary.LittleEndian, dyn64{1, int64(off["libc.so.6"])}) // DT_NEEDED
	binary.Write(dynamic, binary.LittleEndian, dyn64{14, int64(off["libfoo.so.1"])}) // DT_SONAME
	binary.Write(dynamic, binary.LittleEndian, dyn64{15, int64(off["/opt/lib"])})    // DT_RPATH
	binary.Write(dynamic, binary.LittleEndian, dyn64{0, 0})                         // DT_NULL

	shstrtab, shnameOff := cstrTable(".dynstr", ".dynsym", ".gnu.version", ".gnu.version_d", ".dynamic", ".shstrtab")

	buildID := bytes.Repeat([]byte{0}, 20)
	for i := range buildID {
		buildID[i] = byte(0x11 * i % 256)
	}
	note := &bytes.Buffer{}
	binary.Write(note, binary.LittleEndian, uint32(4))  // namesz, "GNU\0"
	binary.Write(note, binary.LittleEndian, uint32(20)) // descsz
	binary.Write(note, binary.LittleEndian, uint32(3))  // NT_GNU_BUILD_ID
	note.WriteString("GNU\x00")
	note.Write(buildID)

	b := &elfBuilder{}

	const ehdrSize, phdrSize, shdrSize = 64, 56, 64

	phoff := uint64(ehdrSize)
	noteOff := phoff + phdrSize
	dynstrOff := noteOff + uint64(note.Len())
	dynsymOff := dynstrOff + uint64(len(dynstr))
	versymOff := dynsymOff + uint64(dynsym.Len())
	verdefOff := versymOff + uint64(versymBuf.Len())
	dynamicOff := verdefOff + uint64(verdefBuf.Len())
	shstrtabOff := dynamicOff + uint64(dynamic.Len())
	shoff := shstrtabOff + uint64(len(shstrtab))

	// e_ident + rest of the ELF header.
	ident := [16]byte{0x7f, 'E', 'L', 'F', 2 /*ELFCLASS64*/, 1 /*ELFDATA2LSB*/, 1}
	b.write(ident)
	b.write(uint16(3))  // e_type = ET_DYN
	b.write(uint16(62)) // e_machine = EM_X86_64
	b.write(uint32(1))  // e_version
	b.write(uint64(0))  // e_entry
	b.write(phoff)      // e_phoff
	b.write(shoff)      // e_shoff
	b.write(uint32(0))  // e_flags
	b.write(uint16(ehdrSize))
	b.write(uint16(phdrSize))
	b.write(uint16(1)) // e_phnum
	b.write(uint16(shdrSize))
	b.write(uint16(7)) // e_shnum
	b.write(uint16(6)) // e_shstrndx

	// Program header: one PT_NOTE entry covering the build-id note.
	b.write(uint32(4)) // p_type = PT_NOTE
	b.write(uint32(4)) // p_flags
	b.write(noteOff)    // p_offset
	b.write(uint64(0))  // p_vaddr
	b.write(uint64(0))  // p_paddr
	b.write(uint64(note.Len())) // p_filesz
	b.write(uint64(note.Len())) // p_memsz
	b.write(uint64(4))          // p_align

	b.buf.Write(note.Bytes())
	b.buf.Write(dynstr)
	b.buf.Write(dynsym.Bytes())
	b.buf.Write(versymBuf.Bytes())
	b.buf.Write(verdefBuf.Bytes())
	b.buf.Write(dynamic.Bytes())
	b.buf.Write(shstrtab)

	type shdr64 struct {
		Name      uint32
		Type      uint32
		Flags     uint64
		Addr      uint64
		Offset    uint64
		Size      uint64
		Link      uint32
		Info      uint32
		AddrAlign uint64
		EntSize   uint64
	}
	sections := []shdr64{
		{}, // SHT_NULL
		{Name: shnameOff[".dynstr"], Type: 3, Offset: dynstrOff, Size: uint64(len(dynstr)), AddrAlign: 1},
		{Name: shnameOff[".dynsym"], Type: 11, Offset: dynsymOff, Size: uint64(dynsym.Len()), Link: 1, Info: 1, EntSize: 24},
		{Name: shnameOff[".gnu.version"], Type: 0x6fffffff, Offset: versymOff, Size: uint64(versymBuf.Len()), Link: 2, EntSize: 2},
		{Name: shnameOff[".gnu.version_d"], Type: 0x6ffffffd, Offset: verdefOff, Size: uint64(verdefBuf.Len()), Link: 1, Info: 2},
		{Name: shnameOff[".dynamic"], Type: 6, Offset: dynamicOff, Size: uint64(dynamic.Len()), Link: 1, EntSize: 16},
		{Name: shnameOff[".shstrtab"], Type: 3, Offset: shstrtabOff, Size: uint64(len(shstrtab)), AddrAlign: 1},
	}
	for i := range sections {
		b.write(sections[i])
	}

	return b.buf.Bytes()
}

func TestParseSyntheticSharedObject(t *testing.T) {
	data := buildSyntheticSharedObject(t)
	img, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if img.Class != sdb.ELFClass64 || img.Data != sdb.ELFDataLSB {
		t.Fatalf("class/data = %v/%v", img.Class, img.Data)
	}
	if img.Architecture != "x86_64" {
		t.Fatalf("architecture = %q", img.Architecture)
	}
	if len(img.BuildID) != 20 {
		t.Fatalf("build-id length = %d", len(img.BuildID))
	}
	if img.Soname != "libfoo.so.1" {
		t.Fatalf("soname = %q", img.Soname)
	}
	if len(img.RPath) != 1 || img.RPath[0] != "/opt/lib" {
		t.Fatalf("rpath = %v", img.RPath)
	}
	if len(img.Needed) != 1 || img.Needed[0] != "libc.so.6" {
		t.Fatalf("needed = %v", img.Needed)
	}
	if len(img.Definitions) != 2 {
		t.Fatalf("definitions = %+v", img.Definitions)
	}
	var foo, bar *sdb.SymbolDefinition
	for i := range img.Definitions {
		switch img.Definitions[i].Name {
		case "foo":
			foo = &img.Definitions[i]
		case "bar":
			bar = &img.Definitions[i]
		}
	}
	if foo == nil || bar == nil {
		t.Fatalf("expected foo and bar definitions, got %+v", img.Definitions)
	}
	if foo.Version != "V1" || !foo.Default {
		t.Fatalf("foo = %+v, want version=V1 default=true", foo)
	}
	if bar.Version != "V2" || bar.Default {
		t.Fatalf("bar = %+v, want version=V2 default=false", bar)
	}
}

func TestArchLabelUnknownMachineIsEmpty(t *testing.T) {
	if got := archLabel(0x9999); got != "" {
		t.Fatalf("archLabel(unknown) = %q, want empty", got)
	}
}

func TestFindBuildIDNote(t *testing.T) {
	note := &bytes.Buffer{}
	binary.Write(note, binary.LittleEndian, uint32(4))
	binary.Write(note, binary.LittleEndian, uint32(3))
	binary.Write(note, binary.LittleEndian, uint32(3))
	note.WriteString("GNU\x00")
	note.Write([]byte{0xaa, 0xbb, 0xcc, 0x00}) // desc padded to a 4-byte boundary
	id, ok := findBuildIDNote(note.Bytes(), binary.LittleEndian)
	if !ok {
		t.Fatal("expected to find a build-id note")
	}
	if !bytes.Equal(id, []byte{0xaa, 0xbb, 0xcc}) {
		t.Fatalf("build-id = %x", id)
	}
}

func TestParseRejectsNonELF(t *testing.T) {
	if _, err := Parse([]byte("not an elf file")); err == nil {
		t.Fatal("expected an error for non-ELF input")
	}
}

package javaclass

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// classBuilder assembles a minimal class file constant pool by hand, mirroring
// the structure javac itself would emit for a trivial class.
type classBuilder struct {
	buf  bytes.Buffer
	pool [][]byte // encoded constant pool entries, in order (1-based index)
}

func (c *classBuilder) addUTF8(s string) uint16 {
	e := &bytes.Buffer{}
	e.WriteByte(constantUtf8)
	binary.Write(e, binary.BigEndian, uint16(len(s)))
	e.WriteString(s)
	c.pool = append(c.pool, e.Bytes())
	return uint16(len(c.pool))
}

func (c *classBuilder) addClass(nameIdx uint16) uint16 {
	e := &bytes.Buffer{}
	e.WriteByte(constantClass)
	binary.Write(e, binary.BigEndian, nameIdx)
	c.pool = append(c.pool, e.Bytes())
	return uint16(len(c.pool))
}

// build renders the class file: magic/minor/major, the constant pool,
// access_flags/this_class/super_class, then an empty interfaces table.
func (c *classBuilder) build(thisClass, superClass uint16, interfaces []uint16) []byte {
	out := &bytes.Buffer{}
	binary.Write(out, binary.BigEndian, uint32(0xCAFEBABE))
	binary.Write(out, binary.BigEndian, uint16(0))  // minor
	binary.Write(out, binary.BigEndian, uint16(52)) // major (Java 8)

	binary.Write(out, binary.BigEndian, uint16(len(c.pool)+1)) // constant_pool_count
	for _, e := range c.pool {
		out.Write(e)
	}

	binary.Write(out, binary.BigEndian, uint16(0x0021)) // access_flags: ACC_PUBLIC|ACC_SUPER
	binary.Write(out, binary.BigEndian, thisClass)
	binary.Write(out, binary.BigEndian, superClass)

	binary.Write(out, binary.BigEndian, uint16(len(interfaces)))
	for _, idx := range interfaces {
		binary.Write(out, binary.BigEndian, idx)
	}
	return out.Bytes()
}

func TestHasSignature(t *testing.T) {
	c := &classBuilder{}
	thisName := c.addUTF8("com/example/Widget")
	thisClass := c.addClass(thisName)
	objName := c.addUTF8("java/lang/Object")
	superClass := c.addClass(objName)
	data := c.build(thisClass, superClass, nil)

	if !HasSignature(data) {
		t.Fatal("expected a recognizable class file signature")
	}
	if HasSignature([]byte{0, 1, 2}) {
		t.Fatal("too-short input must not look like a class file")
	}
}

func TestParseBasicClass(t *testing.T) {
	c := &classBuilder{}
	thisName := c.addUTF8("com/example/Widget")
	thisClass := c.addClass(thisName)
	objName := c.addUTF8("java/lang/Object")
	superClass := c.addClass(objName)
	ifaceName := c.addUTF8("java/io/Serializable")
	iface := c.addClass(ifaceName)
	data := c.build(thisClass, superClass, []uint16{iface})

	jc, err := Parse(data, "")
	if err != nil {
		t.Fatal(err)
	}
	if jc.ThisClass != "com/example/Widget" {
		t.Fatalf("this_class = %q", jc.ThisClass)
	}
	if jc.SuperClass != "java/lang/Object" {
		t.Fatalf("super_class = %q", jc.SuperClass)
	}
	if jc.AccessFlags != 0x0021 {
		t.Fatalf("access_flags = %#x", jc.AccessFlags)
	}
	if len(jc.Interfaces) != 1 || jc.Interfaces[0] != "java/io/Serializable" {
		t.Fatalf("interfaces = %v", jc.Interfaces)
	}
	want := []string{"com/example/Widget", "java/io/Serializable", "java/lang/Object"}
	if len(jc.References) != len(want) {
		t.Fatalf("references = %v, want %v", jc.References, want)
	}
	for i, w := range want {
		if jc.References[i] != w {
			t.Fatalf("references[%d] = %q, want %q", i, jc.References[i], w)
		}
	}
}

func TestParseZeroSuperClassIsRoot(t *testing.T) {
	c := &classBuilder{}
	thisName := c.addUTF8("java/lang/Object")
	thisClass := c.addClass(thisName)
	data := c.build(thisClass, 0, nil)

	jc, err := Parse(data, "")
	if err != nil {
		t.Fatal(err)
	}
	if jc.SuperClass != "" {
		t.Fatalf("super_class = %q, want empty for java.lang.Object itself", jc.SuperClass)
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	if _, err := Parse([]byte("\x00\x00\x00\x00\x00\x00\x00\x34garbage"), ""); err == nil {
		t.Fatal("expected an error for a bad magic number")
	}
}

func TestParseRejectsInvalidConstantTag(t *testing.T) {
	data := []byte{
		0xCA, 0xFE, 0xBA, 0xBE, // magic
		0, 0, // minor
		0, 52, // major
		0, 2, // constant_pool_count = 2 (one entry)
		0xFF, // invalid tag
	}
	if _, err := Parse(data, ""); err == nil {
		t.Fatal("expected an error for an invalid constant pool tag")
	}
}

func TestParseTracksLongDoubleTwoSlotEntries(t *testing.T) {
	c := &classBuilder{}
	// A CONSTANT_Long entry consumes index N and leaves N+1 dead, so the
	// class's own self-reference must land at the correct later index.
	longEntry := &bytes.Buffer{}
	longEntry.WriteByte(constantLong)
	binary.Write(longEntry, binary.BigEndian, uint64(0))
	c.pool = append(c.pool, longEntry.Bytes())
	c.pool = append(c.pool, nil) // dead second slot, accounted for by constant_pool_count below

	thisName := c.addUTF8("com/example/HasLong")
	thisClass := c.addClass(thisName)
	objName := c.addUTF8("java/lang/Object")
	superClass := c.addClass(objName)

	out := &bytes.Buffer{}
	binary.Write(out, binary.BigEndian, uint32(0xCAFEBABE))
	binary.Write(out, binary.BigEndian, uint16(0))
	binary.Write(out, binary.BigEndian, uint16(52))
	binary.Write(out, binary.BigEndian, uint16(len(c.pool)+1)) // count includes the dead long slot
	out.Write(c.pool[0])                                     // the long entry (slot 1, dead slot 2 implied)
	for _, e := range c.pool[2:] {
		out.Write(e)
	}
	binary.Write(out, binary.BigEndian, uint16(0x0021))
	binary.Write(out, binary.BigEndian, thisClass)
	binary.Write(out, binary.BigEndian, superClass)
	binary.Write(out, binary.BigEndian, uint16(0))

	jc, err := Parse(out.Bytes(), "")
	if err != nil {
		t.Fatal(err)
	}
	if jc.ThisClass != "com/example/HasLong" {
		t.Fatalf("this_class = %q", jc.ThisClass)
	}
}

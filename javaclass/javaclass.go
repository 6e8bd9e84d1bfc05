// Package javaclass implements the Java class file analyzer (C7b): constant
// pool parsing, this/super-class and interface resolution, and the sorted
// set of referenced class names.
package javaclass

import (
	"encoding/binary"
	"fmt"
	"sort"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/errs"
)

const classMagic = 0xCAFEBABE

// Constant pool tags, per the JVM class file format.
const (
	constantClass              = 7
	constantFieldref           = 9
	constantMethodref          = 10
	constantInterfaceMethodref = 11
	constantString             = 8
	constantInteger            = 3
	constantFloat              = 4
	constantLong               = 5
	constantDouble             = 6
	constantNameAndType        = 12
	constantUtf8               = 1
)

// HasSignature reports whether data opens with a Java class file's magic
// number and a plausible major version. Used by the jar analyzer (C7c) to
// decide whether a ZIP member is a class file.
func HasSignature(data []byte) bool {
	if len(data) < 10 {
		return false
	}
	return binary.BigEndian.Uint32(data[0:4]) == classMagic && binary.BigEndian.Uint16(data[6:8]) < 100
}

// Parse decodes a Java class file's constant pool and header into an
// [sdb.JavaClass]. member names the ZIP entry data came from, or is empty
// for a bare .class file.
func Parse(data []byte, member string) (*sdb.JavaClass, error) {
	if !HasSignature(data) {
		return nil, malformed("class file magic value not found")
	}

	c := &classFile{data: data}
	offset := 8 // past magic(4) + minor(2) + major(2)

	poolCount, offset, err := c.u16(offset)
	if err != nil {
		return nil, err
	}
	// Index 0 of the constant pool is reserved; the pool has poolCount-1
	// real entries. Long and Double entries occupy two slots, the second
	// left as a zero placeholder, per the class file format.
	c.poolOffsets = make([]int, 0, poolCount)
	for i := 1; i < int(poolCount); i++ {
		c.poolOffsets = append(c.poolOffsets, offset)
		var tag byte
		tag, offset, err = c.u8(offset)
		if err != nil {
			return nil, err
		}
		switch tag {
		case constantClass, constantString:
			offset += 2
		case constantFieldref, constantFloat, constantInteger, constantInterfaceMethodref, constantMethodref, constantNameAndType:
			offset += 4
		case constantLong, constantDouble:
			offset += 8
			c.poolOffsets = append(c.poolOffsets, 0)
			i++
		case constantUtf8:
			var length uint16
			length, offset, err = c.u16(offset)
			if err != nil {
				return nil, err
			}
			offset += int(length)
		default:
			return nil, malformed(fmt.Sprintf("invalid constant pool tag %d", tag))
		}
		if offset > len(data) {
			return nil, malformed(fmt.Sprintf("index out of range at %d", offset))
		}
	}

	accessFlags, offset, err := c.u16(offset)
	if err != nil {
		return nil, err
	}
	thisClassIdx, offset, err := c.u16(offset)
	if err != nil {
		return nil, err
	}
	superClassIdx, offset, err := c.u16(offset)
	if err != nil {
		return nil, err
	}

	interfaceCount, offset, err := c.u16(offset)
	if err != nil {
		return nil, err
	}
	interfaces := make([]string, 0, interfaceCount)
	for i := 0; i < int(interfaceCount); i++ {
		var idx uint16
		idx, offset, err = c.u16(offset)
		if err != nil {
			return nil, err
		}
		name, err := c.className(idx)
		if err != nil {
			return nil, err
		}
		interfaces = append(interfaces, name)
	}

	thisName, err := c.className(thisClassIdx)
	if err != nil {
		return nil, err
	}
	var superName string
	if superClassIdx != 0 {
		if superName, err = c.className(superClassIdx); err != nil {
			return nil, err
		}
	}

	refs, err := c.classReferences()
	if err != nil {
		return nil, err
	}

	return &sdb.JavaClass{
		Member:      member,
		AccessFlags: accessFlags,
		ThisClass:   thisName,
		SuperClass:  superName,
		Interfaces:  interfaces,
		References:  refs,
	}, nil
}

// classFile holds the raw bytes and the byte offset of each constant pool
// entry (index i-1 in the slice is constant pool index i). A zero offset
// marks the dead second slot of a Long/Double entry.
type classFile struct {
	data        []byte
	poolOffsets []int
}

func malformed(msg string) error {
	return &errs.Malformed{Of: errs.MalformedClass, Msg: msg}
}

func (c *classFile) u8(offset int) (byte, int, error) {
	if offset < 0 || offset >= len(c.data) {
		return 0, offset, malformed(fmt.Sprintf("index out of range at %d", offset))
	}
	return c.data[offset], offset + 1, nil
}

func (c *classFile) u16(offset int) (uint16, int, error) {
	if offset < 0 || offset+2 > len(c.data) {
		return 0, offset, malformed(fmt.Sprintf("index out of range at %d", offset))
	}
	return binary.BigEndian.Uint16(c.data[offset : offset+2]), offset + 2, nil
}

// poolOffset returns the byte offset of constant pool entry idx (1-based).
func (c *classFile) poolOffset(idx uint16) (int, error) {
	if idx == 0 {
		return 0, malformed("zero constant pool index")
	}
	i := int(idx) - 1
	if i < 0 || i >= len(c.poolOffsets) || c.poolOffsets[i] == 0 {
		return 0, malformed(fmt.Sprintf("constant pool index %d out of range", idx))
	}
	return c.poolOffsets[i], nil
}

// utf8String reads the CONSTANT_Utf8 entry at constant pool index idx.
func (c *classFile) utf8String(idx uint16) (string, error) {
	offset, err := c.poolOffset(idx)
	if err != nil {
		return "", err
	}
	tag, offset, err := c.u8(offset)
	if err != nil {
		return "", err
	}
	if tag != constantUtf8 {
		return "", malformed("UTF-8 tag expected")
	}
	length, offset, err := c.u16(offset)
	if err != nil {
		return "", err
	}
	if offset+int(length) > len(c.data) {
		return "", malformed(fmt.Sprintf("index out of range at %d", offset))
	}
	return string(c.data[offset : offset+int(length)]), nil
}

// className reads the CONSTANT_Class entry at constant pool index idx and
// resolves its name.
func (c *classFile) className(idx uint16) (string, error) {
	offset, err := c.poolOffset(idx)
	if err != nil {
		return "", err
	}
	tag, offset, err := c.u8(offset)
	if err != nil {
		return "", err
	}
	if tag != constantClass {
		return "", malformed("class tag expected")
	}
	nameIdx, _, err := c.u16(offset)
	if err != nil {
		return "", err
	}
	return c.utf8String(nameIdx)
}

// classReferences returns the sorted, deduplicated set of class names named
// anywhere in the constant pool.
func (c *classFile) classReferences() ([]string, error) {
	seen := map[string]struct{}{}
	for _, off := range c.poolOffsets {
		if off == 0 {
			continue
		}
		tag, nameOffset, err := c.u8(off)
		if err != nil {
			return nil, err
		}
		if tag != constantClass {
			continue
		}
		nameIdx, _, err := c.u16(nameOffset)
		if err != nil {
			return nil, err
		}
		name, err := c.utf8String(nameIdx)
		if err != nil {
			return nil, err
		}
		seen[name] = struct{}{}
	}
	refs := make([]string, 0, len(seen))
	for name := range seen {
		refs = append(refs, name)
	}
	sort.Strings(refs)
	return refs, nil
}

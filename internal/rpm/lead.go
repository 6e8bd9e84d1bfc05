package rpm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/symboldb/symboldb/errs"
)

const (
	leadSize  = 96
	leadMagic = 0xedabeedb

	leadTypeBinary = 0
	leadTypeSource = 1
)

// lead is the RPM v3 lead: a fixed 96-byte header preceding the signature
// and main headers. Only the fields this index cares about are kept; the
// rest (arch/os numbers, reserved bytes) are validated for shape and
// discarded.
type lead struct {
	Major, Minor uint8
	Type         uint16 // leadTypeBinary or leadTypeSource
	Name         string
}

// readLead consumes exactly leadSize bytes from r and validates the magic
// and package type.
func readLead(r io.Reader) (*lead, error) {
	var b [leadSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, &errs.Malformed{Of: errs.MalformedRPM, Msg: "short lead", Err: err}
	}
	if magic := binary.BigEndian.Uint32(b[0:4]); magic != leadMagic {
		return nil, &errs.Malformed{Of: errs.MalformedRPM, Msg: fmt.Sprintf("bad lead magic %#x", magic)}
	}
	l := &lead{
		Major: b[4],
		Minor: b[5],
		Type:  binary.BigEndian.Uint16(b[6:8]),
	}
	if l.Type != leadTypeBinary && l.Type != leadTypeSource {
		return nil, &errs.Malformed{Of: errs.MalformedRPM, Msg: fmt.Sprintf("bad lead package type %d", l.Type)}
	}
	// Name is a NUL-padded 66-byte field at offset 10; it is informational
	// only (the header's TagName/TagVersion/TagRelease are authoritative),
	// kept here only for error messages.
	name := b[10 : 10+66]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	l.Name = string(name)
	return l, nil
}

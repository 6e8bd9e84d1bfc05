package rpm

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/internal/rpm/rpmdb"
)

// signature is the subset of the RPM signature header this index reads.
// Nothing here is verified cryptographically.
type signature struct {
	SHA1Header string // Hex digest of the main header, used as Package.Hash.
	SHA256     string // Hex digest of header+payload, when present.
	PGP        []byte // Raw PGP signature packet, if any.
	MD5        []byte
}

// readSignature parses the signature header at the current position and
// returns it along with the number of bytes consumed, padded up to the
// 8-byte boundary the main header starts on.
func readSignature(ctx context.Context, r *offsetReaderAt) (*signature, int64, error) {
	h, err := rpmdb.ParseHeader(ctx, r)
	if err != nil {
		return nil, 0, fmt.Errorf("rpm: signature header: %w", &errs.Malformed{Of: errs.MalformedRPM, Msg: "signature header", Err: err})
	}
	sig := &signature{}
	if e, ok := h.Find(rpmdb.TagSHA1Header); ok {
		v, err := h.ReadData(ctx, e)
		if err != nil {
			return nil, 0, err
		}
		sig.SHA1Header = v.(string)
	}
	if e, ok := h.Find(rpmdb.TagSHA256Header); ok {
		v, err := h.ReadData(ctx, e)
		if err != nil {
			return nil, 0, err
		}
		sig.SHA256 = v.(string)
	}
	if e, ok := h.Find(rpmdb.TagSigPGP); ok {
		v, err := h.ReadData(ctx, e)
		if err != nil {
			return nil, 0, err
		}
		sig.PGP = v.([]byte)
	}
	if e, ok := h.Find(rpmdb.TagSigMD5); ok {
		v, err := h.ReadData(ctx, e)
		if err != nil {
			return nil, 0, err
		}
		sig.MD5 = v.([]byte)
	}

	size := h.Size()
	if pad := size % 8; pad != 0 {
		size += 8 - pad
	}
	return sig, size, nil
}

// sha1HeaderBytes decodes the hex SHA1Header digest into raw bytes, for use
// as Package.Hash. An absent or malformed digest is a structural error: every
// valid RPM signature header carries one.
func (s *signature) sha1HeaderBytes() ([]byte, error) {
	if s.SHA1Header == "" {
		return nil, &errs.Malformed{Of: errs.MalformedRPM, Msg: "signature header missing SHA1 header digest"}
	}
	b, err := hex.DecodeString(s.SHA1Header)
	if err != nil {
		return nil, &errs.Malformed{Of: errs.MalformedRPM, Msg: "signature header SHA1 digest is not hex", Err: err}
	}
	return b, nil
}

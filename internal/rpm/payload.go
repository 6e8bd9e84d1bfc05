package rpm

import (
	"compress/bzip2"
	"compress/gzip"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/internal/rpm/cpio"
	"github.com/symboldb/symboldb/internal/rpm/rpmdb"
)

// payloadCompressor opens the right decompressing reader over r for the
// PAYLOADCOMPRESSOR tag's value. Absent the tag, RPM defaults to gzip.
func payloadCompressor(ctx context.Context, h *rpmdb.Header, r io.Reader) (io.Reader, error) {
	name := "gzip"
	if e, ok := h.Find(rpmdb.TagPayloadCompressor); ok {
		v, err := h.ReadData(ctx, e)
		if err != nil {
			return nil, err
		}
		name = v.(string)
	}
	switch name {
	case "gzip", "":
		return gzip.NewReader(r)
	case "bzip2":
		return bzip2.NewReader(r), nil
	case "xz", "lzma":
		return xz.NewReader(r)
	case "zstd":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, &errs.Malformed{Of: errs.MalformedRPM, Msg: fmt.Sprintf("unsupported payload compressor %q", name)}
	}
}

// openPayload returns a CPIO reader over the package's payload, decompressed
// according to the header's declared compressor.
func openPayload(ctx context.Context, h *rpmdb.Header, r io.Reader) (*cpio.Reader, error) {
	dr, err := payloadCompressor(ctx, h, r)
	if err != nil {
		return nil, fmt.Errorf("rpm: opening payload: %w", err)
	}
	return cpio.NewReader(dr), nil
}

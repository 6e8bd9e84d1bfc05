package rpm

import "io"

// offsetReaderAt presents base as if it began at offset, with the given
// remaining size. It lets rpmdb.ParseHeader — which wants a zero-based
// ReaderAt for whichever section it's parsing — read out of one section of
// a larger file without copying.
type offsetReaderAt struct {
	base   io.ReaderAt
	offset int64
	size   int64
}

func (o *offsetReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return o.base.ReadAt(p, o.offset+off)
}

// Size reports the bytes remaining in base from offset onward, letting
// rpmdb's header-size sanity check work without a Seek.
func (o *offsetReaderAt) Size() int64 { return o.size }

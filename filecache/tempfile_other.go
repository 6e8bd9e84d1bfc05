//go:build !linux

package filecache

import "os"

// openTemp falls back to a plain named temp file on platforms without
// O_TMPFILE.
func openTemp(dir string) (f *os.File, anonymous bool, err error) {
	f, err = os.CreateTemp(dir, "add.*")
	return f, false, err
}

func linkTemp(f *os.File, dest string) error {
	panic("filecache: linkTemp called for a non-anonymous temp file")
}

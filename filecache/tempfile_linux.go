//go:build linux

package filecache

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// openTemp opens an anonymous temp file in dir via O_TMPFILE when the
// kernel and filesystem support it, falling back to a named temp file
// otherwise — the same fallback libindex's fetcher uses for its own
// temp-file-then-materialize sequence (tempfile_linux.go's openTemp).
// Anonymous files never need an unlink on the error path, since they were
// never linked into the directory in the first place.
func openTemp(dir string) (f *os.File, anonymous bool, err error) {
	f, err = os.OpenFile(dir, os.O_WRONLY|unix.O_TMPFILE, 0o600)
	if err == nil {
		return f, true, nil
	}
	f, err = os.CreateTemp(dir, "add.*")
	return f, false, err
}

// linkTemp materializes an anonymous O_TMPFILE-opened file at dest via its
// /proc/self/fd magic symlink, since such a file has no path a plain rename
// could use. f must still be open. dest already existing is not an error:
// the cache is content-addressed, so another writer finishing the same
// digest first means dest already holds identical bytes.
func linkTemp(f *os.File, dest string) error {
	src := fmt.Sprintf("/proc/self/fd/%d", int(f.Fd()))
	err := unix.Linkat(unix.AT_FDCWD, src, unix.AT_FDCWD, dest, unix.AT_SYMLINK_FOLLOW)
	if err != nil && !errors.Is(err, unix.EEXIST) {
		return fmt.Errorf("filecache: linkat: %w", err)
	}
	return nil
}

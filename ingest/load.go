package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/internal/hardlink"
	"github.com/symboldb/symboldb/internal/metrics"
	"github.com/symboldb/symboldb/internal/rpm"
	"github.com/symboldb/symboldb/internal/rpm/cpio"
	"github.com/symboldb/symboldb/store"
)

// POSIX mode-format bits relevant to classifying a [rpm.FileInfo] row,
// c.f. S_IFMT/S_IFDIR/S_IFLNK.
const (
	modeFmt = 0170000
	modeDir = 0040000
	modeLnk = 0120000
)

// loadOne parses the RPM at path, interning its package row and — only when
// that row is freshly inserted — its files, contents, and analyzer output,
// all inside one per-package transaction.
func (d *Driver) loadOne(ctx context.Context, path string) (id int64, err error) {
	start := time.Now()
	fresh := false
	defer func() {
		metrics.ObservePackageDuration(time.Since(start).Seconds(), fresh)
	}()

	f, err := os.Open(path)
	if err != nil {
		return 0, &errs.IO{Err: fmt.Errorf("ingest: opening %s: %w", path, err)}
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return 0, &errs.IO{Err: fmt.Errorf("ingest: statting %s: %w", path, err)}
	}

	pkg, cr, err := rpm.Open(ctx, f, stat.Size())
	if err != nil {
		return 0, err
	}

	tx, err := d.Store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback(ctx)
		}
	}()

	pkgID, fresh, err := tx.InternPackage(ctx, pkg.Package)
	if err != nil {
		return 0, err
	}
	if fresh {
		if err := d.loadFresh(ctx, tx, pkg, cr, pkgID); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	committed = true
	return pkgID, nil
}

// loadFresh persists everything derived from a newly interned package:
// dependencies, triggers, and the file table (with per-contents analyzer
// output).
func (d *Driver) loadFresh(ctx context.Context, tx store.Tx, pkg *rpm.Package, cr *cpio.Reader, pkgID int64) error {
	for _, dep := range pkg.Dependencies {
		if err := tx.AddDependency(ctx, pkgID, dep); err != nil {
			return err
		}
	}
	for _, trig := range pkg.Triggers {
		prog := ""
		if len(trig.Prog) > 0 {
			prog = trig.Prog[0]
		}
		conds := make([]store.TriggerCondition, len(trig.Conditions))
		for i, c := range trig.Conditions {
			conds[i] = store.TriggerCondition{
				Name:    c.Name,
				Op:      rpm.SenseOp(c.Flags),
				Version: c.Version,
				Flags:   c.Flags,
			}
		}
		if err := tx.AddPackageTrigger(ctx, pkgID, trig.Script, prog, conds); err != nil {
			return err
		}
	}

	entries, content, err := readCPIO(cr, pkg.Files)
	if err != nil {
		return err
	}

	analyzed := make(map[string]bool)
	for _, e := range entries {
		if err := d.storeEntry(ctx, tx, pkgID, e, content, analyzed); err != nil {
			return err
		}
	}
	return nil
}

// readCPIO drains the package's CPIO payload through the hard-link
// reconstructor (C8), capturing the full content bytes of whichever
// occurrence of each inode actually carries them — [hardlink.Entry] only
// carries a checksum and a 64-byte preview, but the format analyzers (C7)
// need the complete bytes, so each entry's content is teed into a buffer
// keyed by its checksum while it is fed to the reconstructor.
func readCPIO(cr *cpio.Reader, files []rpm.FileInfo) ([]hardlink.Entry, map[string][]byte, error) {
	recon := hardlink.New(files)
	content := make(map[string][]byte)
	var entries []hardlink.Entry

	for {
		h, err := cr.Next()
		if err != nil {
			return nil, nil, fmt.Errorf("ingest: reading cpio stream: %w", &errs.Malformed{Of: errs.MalformedCPIO, Msg: "payload", Err: err})
		}
		if h.Name == cpio.Trailer {
			break
		}

		var buf bytes.Buffer
		out, err := recon.Feed(h, io.TeeReader(cr, &buf))
		if err != nil {
			return nil, nil, err
		}
		if h.Size > 0 {
			sum := sha256.Sum256(buf.Bytes())
			content[hex.EncodeToString(sum[:])] = buf.Bytes()
		}
		entries = append(entries, out...)
	}
	entries = append(entries, recon.Ghosts()...)
	return entries, content, nil
}

// storeEntry writes one reconstructed file-table row and, when it closes
// out a freshly interned contents row, dispatches it to the format
// analyzers.
func (d *Driver) storeEntry(ctx context.Context, tx store.Tx, pkgID int64, e hardlink.Entry, content map[string][]byte, analyzed map[string]bool) error {
	fi := e.Info
	switch fi.Mode & modeFmt {
	case modeDir:
		_, err := tx.AddDirectory(ctx, pkgID, fi.Path, fi.Mode)
		return err
	case modeLnk:
		_, err := tx.AddSymlink(ctx, pkgID, fi.Path, fi.Mode, fi.LinkTo)
		return err
	default:
		info := store.FileInfo{
			Path:   fi.Path,
			Mode:   fi.Mode,
			User:   fi.User,
			Group:  fi.Group,
			MTime:  fi.MTime,
			Flags:  fi.Flags,
			Ino:    fi.Ino,
			NLinks: fi.NLinks,
		}
		_, contentsID, fresh, err := tx.AddFile(ctx, pkgID, info, e.Checksum, e.Preview)
		if err != nil {
			return err
		}
		if !fresh {
			return nil
		}
		key := hex.EncodeToString(e.Checksum.Digest)
		if analyzed[key] {
			return nil
		}
		data, ok := content[key]
		if !ok || len(data) == 0 {
			return nil
		}
		analyzed[key] = true
		return d.analyze(ctx, tx, contentsID, data)
	}
}

package rpm

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"golang.org/x/crypto/openpgp/packet"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/internal/rpm/cpio"
	"github.com/symboldb/symboldb/internal/rpm/rpmdb"
)

// Package bundles everything a single RPM file yields: the package record,
// its file table, and its dependency and script/trigger rows. The payload
// itself is not carried here; [Open] returns a CPIO reader over the
// decompressed payload, which the hardlink reconstructor (internal/hardlink)
// consumes.
type Package struct {
	Package      sdb.Package
	Files        []FileInfo
	FileDigest   sdb.HashKind
	Dependencies []sdb.Dependency
	Scripts      []Script
	Triggers     []Trigger

	// KeyID is the 16-hex-digit PGP key id that signed the header, when a
	// signature is present; empty otherwise. Not verified.
	KeyID string
}

// Open reads the lead, signature header, and main header out of r (which
// must expose exactly one RPM file of the given size) and returns the parsed
// Package plus a CPIO reader over its payload, decompressed according to the
// header's PAYLOADCOMPRESSOR tag.
//
// The returned reader is only valid for as long as r is; Open does not
// buffer the payload.
func Open(ctx context.Context, r io.ReaderAt, size int64) (*Package, *cpio.Reader, error) {
	if size < leadSize {
		return nil, nil, &errs.Malformed{Of: errs.MalformedRPM, Msg: "file shorter than the RPM lead"}
	}
	lr := io.NewSectionReader(r, 0, leadSize)
	l, err := readLead(lr)
	if err != nil {
		return nil, nil, err
	}

	sigAt := &offsetReaderAt{base: r, offset: leadSize, size: size - leadSize}
	sig, sigLen, err := readSignature(ctx, sigAt)
	if err != nil {
		return nil, nil, err
	}

	hdrOffset := leadSize + sigLen
	if hdrOffset >= size {
		return nil, nil, &errs.Malformed{Of: errs.MalformedRPM, Msg: "no room for main header after signature header"}
	}
	hdrAt := &offsetReaderAt{base: r, offset: hdrOffset, size: size - hdrOffset}
	h, err := rpmdb.ParseHeader(ctx, hdrAt)
	if err != nil {
		return nil, nil, fmt.Errorf("rpm: main header: %w", &errs.Malformed{Of: errs.MalformedRPM, Msg: "main header", Err: err})
	}

	pkg, err := packageFromHeader(ctx, h, l, sig)
	if err != nil {
		return nil, nil, err
	}

	deps, err := dependencies(ctx, h)
	if err != nil {
		return nil, nil, err
	}
	scr, err := scripts(ctx, h)
	if err != nil {
		return nil, nil, err
	}
	trg, err := triggers(ctx, h)
	if err != nil {
		return nil, nil, err
	}
	files, algo, err := readFiles(ctx, h)
	if err != nil {
		return nil, nil, err
	}

	payloadOffset := hdrOffset + h.Size()
	if pad := payloadOffset % 8; pad != 0 {
		payloadOffset += 8 - pad
	}
	if payloadOffset > size {
		return nil, nil, &errs.Malformed{Of: errs.MalformedRPM, Msg: "main header runs past end of file"}
	}
	payload := io.NewSectionReader(r, payloadOffset, size-payloadOffset)
	cr, err := openPayload(ctx, h, payload)
	if err != nil {
		return nil, nil, err
	}

	return &Package{
		Package:      pkg,
		Files:        files,
		FileDigest:   algo,
		Dependencies: deps,
		Scripts:      scr,
		Triggers:     trg,
		KeyID:        keyID(sig.PGP),
	}, cr, nil
}

func packageFromHeader(ctx context.Context, h *rpmdb.Header, l *lead, sig *signature) (sdb.Package, error) {
	var pkg sdb.Package
	switch l.Type {
	case leadTypeBinary:
		pkg.Kind = sdb.Binary
	case leadTypeSource:
		pkg.Kind = sdb.Source
	}

	str := func(tag rpmdb.Tag) (string, error) {
		e, ok := h.Find(tag)
		if !ok {
			return "", nil
		}
		v, err := h.ReadData(ctx, e)
		if err != nil {
			return "", err
		}
		return v.(string), nil
	}
	strs := func(tag rpmdb.Tag) ([]int32, error) {
		e, ok := h.Find(tag)
		if !ok {
			return nil, nil
		}
		v, err := h.ReadData(ctx, e)
		if err != nil {
			return nil, err
		}
		return v.([]int32), nil
	}

	var err error
	if pkg.Name, err = str(rpmdb.TagName); err != nil {
		return pkg, err
	}
	if pkg.Version, err = str(rpmdb.TagVersion); err != nil {
		return pkg, err
	}
	if pkg.Release, err = str(rpmdb.TagRelease); err != nil {
		return pkg, err
	}
	if pkg.Arch, err = str(rpmdb.TagArch); err != nil {
		return pkg, err
	}
	if pkg.SourceRPM, err = str(rpmdb.TagSourceRPM); err != nil {
		return pkg, err
	}
	if pkg.Summary, err = str(rpmdb.TagSummary); err != nil {
		return pkg, err
	}
	if pkg.Description, err = str(rpmdb.TagDescription); err != nil {
		return pkg, err
	}
	if pkg.Group, err = str(rpmdb.TagGroup); err != nil {
		return pkg, err
	}
	if pkg.Vendor, err = str(rpmdb.TagVendor); err != nil {
		return pkg, err
	}
	if pkg.Packager, err = str(rpmdb.TagPackager); err != nil {
		return pkg, err
	}
	if pkg.Module, err = str(rpmdb.TagModularityLabel); err != nil {
		return pkg, err
	}
	pkg.ModuleStream = moduleStream(pkg.Module)

	if lic, err := rawBytes(ctx, h, rpmdb.TagLicense); err != nil {
		return pkg, err
	} else if lic != nil {
		pkg.License = sdb.RepairUTF8(lic)
	}

	if e, ok := h.Find(rpmdb.TagEpoch); ok {
		v, err := h.ReadData(ctx, e)
		if err != nil {
			return pkg, err
		}
		epoch := v.([]int32)[0]
		pkg.Epoch = &epoch
	}
	if e, ok := h.Find(rpmdb.TagBuildTime); ok {
		v, err := h.ReadData(ctx, e)
		if err != nil {
			return pkg, err
		}
		pkg.BuildTime = int64(v.([]int32)[0])
	}
	if pkg.BuildHost, err = str(rpmdb.TagBuildHost); err != nil {
		return pkg, err
	}
	if pkg.NoSource, err = strs(rpmdb.TagNoSource); err != nil {
		return pkg, err
	}
	if pkg.NoPatch, err = strs(rpmdb.TagNoPatch); err != nil {
		return pkg, err
	}

	pkg.Hash, err = sig.sha1HeaderBytes()
	if err != nil {
		return pkg, err
	}

	return pkg, nil
}

// rawBytes returns a string tag's raw bytes so the caller can pass them to
// [sdb.RepairUTF8]; [rpmdb.Header.ReadData] does not validate UTF-8, and
// License routinely carries Latin-1 text in older packages.
func rawBytes(ctx context.Context, h *rpmdb.Header, tag rpmdb.Tag) ([]byte, error) {
	e, ok := h.Find(tag)
	if !ok {
		return nil, nil
	}
	v, err := h.ReadData(ctx, e)
	if err != nil {
		return nil, err
	}
	return []byte(v.(string)), nil
}

// moduleStream reports the stream component of a modularity label, following
// claircore's internal/rpm/info.go ModuleStream precedent: a label carries
// more than one ':'-separated field only when it names a stream.
func moduleStream(module string) string {
	count := bytes.Count([]byte(module), []byte(":"))
	if count <= 1 {
		return ""
	}
	first := true
	idx := bytes.IndexFunc([]byte(module), func(r rune) bool {
		if r != ':' {
			return false
		}
		if first {
			first = false
			return false
		}
		return true
	})
	if idx < 0 {
		return ""
	}
	return module[:idx]
}

// keyID extracts the issuing PGP key id from a raw signature packet, if any
// is present, for display purposes only; nothing here is verified.
func keyID(sigPacket []byte) string {
	if len(sigPacket) == 0 {
		return ""
	}
	prd := packet.NewReader(bytes.NewReader(sigPacket))
	for {
		p, err := prd.Next()
		if err != nil {
			return ""
		}
		switch p := p.(type) {
		case *packet.SignatureV3:
			if p.SigType == 0 {
				return fmt.Sprintf("%016x", p.IssuerKeyId)
			}
		case *packet.Signature:
			if p.SigType == 0 && p.IssuerKeyId != nil {
				return fmt.Sprintf("%016x", *p.IssuerKeyId)
			}
		}
	}
}

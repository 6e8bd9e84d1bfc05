// Package repomd implements the repository-metadata parser (C5):
// repomd.xml enumeration, primary.xml(.gz) selection and decompression with
// compressed-stream validation, and a streaming pull-parser yielding one
// package descriptor per <package> element.
package repomd

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	sdb "github.com/symboldb/symboldb"
	"github.com/symboldb/symboldb/byteio"
	"github.com/symboldb/symboldb/download"
	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/fetch"
)

// Entry is one <data> element of repomd.xml.
type Entry struct {
	Type         string
	Compressed   bool
	Checksum     sdb.Checksum
	OpenChecksum sdb.Checksum // Equal to Checksum when not Compressed.
	Href         string
}

// Repomd is the parsed contents of a repository's repomd.xml.
type Repomd struct {
	Revision string
	Entries  []Entry
	BaseURL  string // Always ends in "/".
}

type repomdXML struct {
	XMLName  xml.Name  `xml:"repomd"`
	Revision string    `xml:"revision"`
	Data     []dataXML `xml:"data"`
}

type dataXML struct {
	Type         string       `xml:"type,attr"`
	Checksum     checksumXML  `xml:"checksum"`
	OpenChecksum *checksumXML `xml:"open-checksum"`
	Size         string       `xml:"size"`
	OpenSize     string       `xml:"open-size"`
	Location     locationXML  `xml:"location"`
}

type checksumXML struct {
	Type string `xml:"type,attr"`
	Text string `xml:",chardata"`
}

type locationXML struct {
	Href    string `xml:"href,attr"`
	XMLBase string `xml:"http://www.w3.org/XML/1998/namespace base,attr"`
}

// Acquire fetches <baseURL>/repodata/repomd.xml through the download policy
// and parses it.
func Acquire(ctx context.Context, client *fetch.Client, cache download.URLCache, mode download.Mode, baseURL string) (*Repomd, error) {
	base := baseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	rc, err := download.Download(ctx, client, cache, mode, base+"repodata/repomd.xml")
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &errs.IO{Err: err}
	}
	if len(data) == 0 {
		return nil, &errs.Malformed{Of: errs.MalformedXML, Msg: "empty repomd.xml document"}
	}
	rp, err := Parse(data)
	if err != nil {
		return nil, err
	}
	rp.BaseURL = base
	return rp, nil
}

// Parse parses a repomd.xml document's bytes.
func Parse(data []byte) (*Repomd, error) {
	if err := rejectEntities(data); err != nil {
		return nil, err
	}
	var wire repomdXML
	if err := xml.Unmarshal(data, &wire); err != nil {
		return nil, &errs.Malformed{Of: errs.MalformedXML, Msg: "decoding repomd.xml", Err: err}
	}
	rp := &Repomd{Revision: strings.TrimSpace(wire.Revision)}
	for _, d := range wire.Data {
		if d.Type == "" {
			return nil, &errs.Malformed{Of: errs.MalformedXML, Msg: "type attribute missing from data element"}
		}
		if d.Location.Href == "" {
			return nil, &errs.Malformed{Of: errs.MalformedXML, Msg: "location element missing from data element"}
		}
		size := sdb.NoLength
		if s := strings.TrimSpace(d.Size); s != "" {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, &errs.Malformed{Of: errs.MalformedXML, Msg: "size element malformed", Err: err}
			}
			size = n
		}
		csum, err := checksumFrom(d.Checksum, size)
		if err != nil {
			return nil, err
		}
		entry := Entry{Type: d.Type, Href: d.Location.Href, Checksum: csum, OpenChecksum: csum}
		if d.OpenChecksum != nil {
			entry.Compressed = true
			openSize := sdb.NoLength
			if s := strings.TrimSpace(d.OpenSize); s != "" {
				n, err := strconv.ParseInt(s, 10, 64)
				if err != nil {
					return nil, &errs.Malformed{Of: errs.MalformedXML, Msg: "open-size element malformed", Err: err}
				}
				openSize = n
			}
			openCsum, err := checksumFrom(*d.OpenChecksum, openSize)
			if err != nil {
				return nil, err
			}
			entry.OpenChecksum = openCsum
		} else if strings.TrimSpace(d.OpenSize) != "" {
			return nil, &errs.Malformed{Of: errs.MalformedXML, Msg: "open-size element without open-checksum element"}
		}
		rp.Entries = append(rp.Entries, entry)
	}
	return rp, nil
}

func checksumFrom(c checksumXML, length int64) (sdb.Checksum, error) {
	kind, err := hashKind(c.Type)
	if err != nil {
		return sdb.Checksum{}, err
	}
	digest, err := hex.DecodeString(strings.TrimSpace(c.Text))
	if err != nil {
		return sdb.Checksum{}, &errs.Malformed{Of: errs.MalformedXML, Msg: "checksum element malformed", Err: err}
	}
	return sdb.Checksum{Kind: kind, Digest: digest, Length: length}, nil
}

func hashKind(name string) (sdb.HashKind, error) {
	switch strings.ToLower(name) {
	case "md5":
		return sdb.MD5, nil
	case "sha", "sha1":
		return sdb.SHA1, nil
	case "sha256":
		return sdb.SHA256, nil
	default:
		return "", &errs.UnsupportedHash{Algo: name}
	}
}

// PrimaryXML selects the "primary" .xml.gz entry from rp, downloads it
// (falling back to CheckCache instead of AlwaysCache when the href doesn't
// embed the digest, so a stale cached copy isn't trusted indefinitely), and
// returns a [Primary] pull-parser over its decompressed contents. The
// compressed stream's hash is validated against the entry's checksum as a
// side effect of draining the returned parser to completion.
func PrimaryXML(ctx context.Context, rp *Repomd, client *fetch.Client, cache download.URLCache, mode download.Mode) (*Primary, error) {
	for _, e := range rp.Entries {
		if e.Type != "primary" || !strings.HasSuffix(e.Href, ".xml.gz") {
			continue
		}
		effectiveMode := mode
		if mode == download.AlwaysCache && !strings.Contains(e.Href, hex.EncodeToString(e.Checksum.Digest)) {
			effectiveMode = download.CheckCache
		}
		entryURL := combineYum(rp.BaseURL, e.Href)
		rc, err := download.Download(ctx, client, cache, effectiveMode, entryURL)
		if err != nil {
			return nil, err
		}
		verified, err := newVerifyingReader(rc, e.Checksum)
		if err != nil {
			rc.Close()
			return nil, err
		}
		zr, err := gzip.NewReader(verified)
		if err != nil {
			rc.Close()
			return nil, &errs.IO{Err: fmt.Errorf("repomd: opening primary.xml.gz: %w", err)}
		}
		return &Primary{dec: xml.NewDecoder(zr), base: rp.BaseURL, closer: rc}, nil
	}
	return nil, &errs.Malformed{Of: errs.MalformedXML, Msg: fmt.Sprintf("%s: could not find primary.xml entry", rp.BaseURL)}
}

// verifyingReader hashes everything read from it and, on end-of-stream,
// compares the digest against an expected checksum before signaling EOF.
type verifyingReader struct {
	r      io.ReadCloser
	sink   *byteio.HashingSink
	expect sdb.Checksum
	done   bool
}

func newVerifyingReader(r io.ReadCloser, expect sdb.Checksum) (*verifyingReader, error) {
	sink, err := byteio.NewHashingSink(expect.Kind)
	if err != nil {
		return nil, err
	}
	return &verifyingReader{r: r, sink: sink, expect: expect}, nil
}

func (v *verifyingReader) Read(p []byte) (int, error) {
	n, err := v.r.Read(p)
	if n > 0 {
		v.sink.Write(p[:n])
	}
	if err == io.EOF && !v.done {
		v.done = true
		got := v.sink.Checksum()
		if got.String() != v.expect.String() {
			return n, &errs.ChecksumMismatch{Want: v.expect.String(), Got: got.String()}
		}
	}
	return n, err
}

// Primary is a streaming pull-parser over a decompressed primary.xml body,
// yielding one Descriptor per <package> element.
type Primary struct {
	dec    *xml.Decoder
	base   string
	closer io.Closer
}

// Close releases the underlying download body.
func (p *Primary) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// Descriptor is one <package> entry: the package metadata (without a
// full-file hash — Checksum supplies that), its absolute download location,
// and its expected content checksum.
type Descriptor struct {
	Info     sdb.Package
	Location string
	Checksum sdb.Checksum
}

// Next returns the next package descriptor, or (nil, io.EOF) once the
// document is exhausted.
func (p *Primary) Next(ctx context.Context) (*Descriptor, error) {
	for {
		tok, err := p.dec.Token()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, &errs.Malformed{Of: errs.MalformedXML, Msg: "tokenizing primary.xml", Err: err}
		}
		switch t := tok.(type) {
		case xml.Directive:
			return nil, &errs.Malformed{Of: errs.MalformedXML, Msg: "entity declarations are refused"}
		case xml.StartElement:
			if t.Name.Local == "package" {
				var pkg packageXML
				if err := p.dec.DecodeElement(&pkg, &t); err != nil {
					return nil, &errs.Malformed{Of: errs.MalformedXML, Msg: "decoding package element", Err: err}
				}
				return descriptorFrom(pkg, p.base)
			}
		}
	}
}

type packageXML struct {
	Name        string      `xml:"name"`
	Arch        string      `xml:"arch"`
	Version     versionXML  `xml:"version"`
	Checksum    checksumXML `xml:"checksum"`
	Summary     string      `xml:"summary"`
	Description string      `xml:"description"`
	Packager    string      `xml:"packager"`
	Time        timeXML     `xml:"time"`
	Size        sizeXML     `xml:"size"`
	Location    locationXML `xml:"location"`
	Format      formatXML   `xml:"format"`
}

type versionXML struct {
	Epoch string `xml:"epoch,attr"`
	Ver   string `xml:"ver,attr"`
	Rel   string `xml:"rel,attr"`
}

type timeXML struct {
	Build string `xml:"build,attr"`
}

type sizeXML struct {
	Package string `xml:"package,attr"`
}

type formatXML struct {
	License   string `xml:"license"`
	Vendor    string `xml:"vendor"`
	Group     string `xml:"group"`
	BuildHost string `xml:"buildhost"`
	SourceRPM string `xml:"sourcerpm"`
}

func descriptorFrom(pkg packageXML, base string) (*Descriptor, error) {
	var epoch *int32
	if pkg.Version.Epoch != "" {
		n, err := strconv.ParseInt(pkg.Version.Epoch, 10, 32)
		if err != nil {
			return nil, &errs.Malformed{Of: errs.MalformedXML, Msg: "epoch attribute malformed", Err: err}
		}
		e := int32(n)
		epoch = &e
	}

	var buildTime int64
	if pkg.Time.Build != "" {
		if n, err := strconv.ParseInt(pkg.Time.Build, 10, 64); err == nil {
			buildTime = n
		}
	}

	kind := sdb.Binary
	if pkg.Arch == "src" || pkg.Arch == "nosrc" {
		kind = sdb.Source
	}

	if pkg.Location.Href == "" {
		return nil, &errs.Malformed{Of: errs.MalformedXML, Msg: "package element missing location href"}
	}
	locBase := base
	if pkg.Location.XMLBase != "" {
		locBase = pkg.Location.XMLBase
	}

	size := sdb.NoLength
	if s := strings.TrimSpace(pkg.Size.Package); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			size = n
		}
	}
	csum, err := checksumFrom(pkg.Checksum, size)
	if err != nil {
		return nil, err
	}

	info := sdb.Package{
		Name:        pkg.Name,
		Epoch:       epoch,
		Version:     pkg.Version.Ver,
		Release:     pkg.Version.Rel,
		Arch:        pkg.Arch,
		SourceRPM:   pkg.Format.SourceRPM,
		BuildTime:   buildTime,
		BuildHost:   pkg.Format.BuildHost,
		Summary:     strings.TrimSpace(pkg.Summary),
		Description: strings.TrimSpace(pkg.Description),
		License:     pkg.Format.License,
		Group:       pkg.Format.Group,
		Vendor:      pkg.Format.Vendor,
		Packager:    strings.TrimSpace(pkg.Packager),
		Kind:        kind,
	}
	return &Descriptor{
		Info:     info,
		Location: combineYum(locBase, pkg.Location.Href),
		Checksum: csum,
	}, nil
}

// combineYum resolves href against base following yum's rule: an absolute
// href is used as-is, otherwise it's joined onto base (which always ends in
// "/"), stripping a leading "./".
func combineYum(base, href string) string {
	if u, err := url.Parse(href); err == nil && u.IsAbs() {
		return href
	}
	b := base
	if !strings.HasSuffix(b, "/") {
		b += "/"
	}
	return b + strings.TrimPrefix(href, "./")
}

// rejectEntities refuses any XML document containing a DOCTYPE/ENTITY
// declaration, closing off the classic XXE billion-laughs/external-entity
// attack surface in untrusted repository metadata.
func rejectEntities(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &errs.Malformed{Of: errs.MalformedXML, Msg: "tokenizing", Err: err}
		}
		if _, ok := tok.(xml.Directive); ok {
			return &errs.Malformed{Of: errs.MalformedXML, Msg: "entity declarations are refused"}
		}
	}
}

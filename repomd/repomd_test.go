package repomd

import (
	"context"
	"encoding/xml"
	"io"
	"strings"
	"testing"

	sdb "github.com/symboldb/symboldb"
)

const sampleRepomd = `<?xml version="1.0" encoding="UTF-8"?>
<repomd xmlns="http://linux.duke.edu/metadata/repo">
  <revision>1700000000</revision>
  <data type="primary">
    <checksum type="sha256">aabbccdd</checksum>
    <open-checksum type="sha256">eeff0011</open-checksum>
    <location href="repodata/abcd-primary.xml.gz"/>
    <size>123</size>
    <open-size>456</open-size>
  </data>
  <data type="filelists">
    <checksum type="sha256">11223344</checksum>
    <location href="repodata/filelists.xml.gz"/>
  </data>
</repomd>
`

func TestParseRepomd(t *testing.T) {
	rp, err := Parse([]byte(sampleRepomd))
	if err != nil {
		t.Fatal(err)
	}
	if rp.Revision != "1700000000" {
		t.Fatalf("revision = %q", rp.Revision)
	}
	if len(rp.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(rp.Entries))
	}
	primary := rp.Entries[0]
	if primary.Type != "primary" || !primary.Compressed {
		t.Fatalf("got %+v", primary)
	}
	if primary.Checksum.Digest == nil || primary.OpenChecksum.Digest == nil {
		t.Fatalf("checksums not parsed: %+v", primary)
	}
}

func TestParseRepomdMissingLocationErrors(t *testing.T) {
	const bad = `<repomd><data type="primary"><checksum type="sha256">aa</checksum></data></repomd>`
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatal("expected an error for a missing location element")
	}
}

func TestParseRejectsEntityDeclarations(t *testing.T) {
	const evil = `<?xml version="1.0"?>
<!DOCTYPE repomd [<!ENTITY xxe SYSTEM "file:///etc/passwd">]>
<repomd><revision>1</revision></repomd>`
	if _, err := Parse([]byte(evil)); err == nil {
		t.Fatal("expected entity declarations to be refused")
	}
}

const samplePrimaryPackage = `<package type="rpm">
  <name>foo</name>
  <arch>x86_64</arch>
  <version epoch="0" ver="1.2" rel="3"/>
  <checksum type="sha256" pkgid="YES">deadbeef</checksum>
  <summary>  A sample package  </summary>
  <description>desc</description>
  <packager>Someone</packager>
  <time file="1" build="1600000000"/>
  <size package="9999"/>
  <location href="Packages/foo-1.2-3.x86_64.rpm"/>
  <format>
    <rpm:license xmlns:rpm="http://linux.duke.edu/metadata/rpm">GPL</rpm:license>
    <rpm:sourcerpm xmlns:rpm="http://linux.duke.edu/metadata/rpm">foo-1.2-3.src.rpm</rpm:sourcerpm>
    <rpm:buildhost xmlns:rpm="http://linux.duke.edu/metadata/rpm">builder.example</rpm:buildhost>
  </format>
</package>`

func newTestPrimary(t *testing.T, body, base string) *Primary {
	t.Helper()
	doc := "<metadata>" + body + "</metadata>"
	return &Primary{dec: xml.NewDecoder(strings.NewReader(doc)), base: base}
}

func TestPrimaryNextYieldsDescriptor(t *testing.T) {
	p := newTestPrimary(t, samplePrimaryPackage, "https://example.test/repo/")
	d, err := p.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if d.Info.Name != "foo" || d.Info.Version != "1.2" || d.Info.Release != "3" {
		t.Fatalf("got %+v", d.Info)
	}
	if d.Info.Epoch == nil || *d.Info.Epoch != 0 {
		t.Fatalf("epoch = %v, want 0", d.Info.Epoch)
	}
	if d.Info.Summary != "A sample package" {
		t.Fatalf("summary = %q", d.Info.Summary)
	}
	if d.Info.SourceRPM != "foo-1.2-3.src.rpm" {
		t.Fatalf("source rpm = %q", d.Info.SourceRPM)
	}
	if d.Location != "https://example.test/repo/Packages/foo-1.2-3.x86_64.rpm" {
		t.Fatalf("location = %q", d.Location)
	}
	if d.Checksum.Kind != sdb.SHA256 {
		t.Fatalf("checksum kind = %q", d.Checksum.Kind)
	}
	if d.Checksum.Length != 9999 {
		t.Fatalf("checksum length = %d", d.Checksum.Length)
	}

	if _, err := p.Next(context.Background()); err != io.EOF {
		t.Fatalf("expected io.EOF after the only package, got %v", err)
	}
}

func TestPrimaryNextRejectsEntityDeclarations(t *testing.T) {
	const evil = `<!DOCTYPE metadata [<!ENTITY xxe "x">]><metadata></metadata>`
	p := &Primary{dec: xml.NewDecoder(strings.NewReader(evil)), base: "https://example.test/"}
	if _, err := p.Next(context.Background()); err == nil {
		t.Fatal("expected entity declarations to be refused")
	}
}

func TestCombineYumAbsoluteHrefPassesThrough(t *testing.T) {
	got := combineYum("https://example.test/repo/", "https://mirror.example/foo.rpm")
	if got != "https://mirror.example/foo.rpm" {
		t.Fatalf("got %q", got)
	}
}

func TestCombineYumRelativeHrefJoinsBase(t *testing.T) {
	got := combineYum("https://example.test/repo/", "./Packages/foo.rpm")
	if got != "https://example.test/repo/Packages/foo.rpm" {
		t.Fatalf("got %q", got)
	}
}

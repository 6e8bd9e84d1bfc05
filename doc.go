// Package symboldb defines the relational data model for a package-universe
// index: packages, their files, and the ABI-level facts (ELF symbols, Java
// classes, Python imports) recorded about those files' content.
//
// Sub-packages implement the ingestion pipeline that populates this model:
// repository-metadata fetching ([github.com/symboldb/symboldb/repomd]),
// download caching ([github.com/symboldb/symboldb/filecache] and
// [github.com/symboldb/symboldb/download]), RPM parsing
// ([github.com/symboldb/symboldb/internal/rpm]), per-file format analysis
// ([github.com/symboldb/symboldb/elf], [github.com/symboldb/symboldb/javaclass],
// [github.com/symboldb/symboldb/jar], [github.com/symboldb/symboldb/pyimport]),
// and the relational writer and link-closure resolver
// ([github.com/symboldb/symboldb/store], [github.com/symboldb/symboldb/closure]).
package symboldb

package postgres

import _ "embed"

// SchemaDDL is the fixed external DDL blob "--create-schema" emits,
// grounded on libindex/migrations's embedded-SQL-asset pattern, adapted
// here to a single emitted blob rather than a migration chain since the
// schema is treated as an opaque, externally-supplied artifact rather than
// something this package versions over time.
//
//go:embed schema.sql
var SchemaDDL string

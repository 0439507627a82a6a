package migrations

import "embed"

// Files contains SQL migrations embedded into the binary.
//
// Migrations use a flat naming convention (e.g., 001_init.sql) so callers
// can list and read them directly via the returned embed.FS.
//
//go:embed *.sql
var Files embed.FS

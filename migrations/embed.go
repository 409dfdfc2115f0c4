// Package migrations embeds the schema so the binary can migrate without a
// checkout. MIGRATIONS_DIR overrides it with files on disk.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

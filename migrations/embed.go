// Package migrations embeds the schema so the migrate tool ships it in the binary.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

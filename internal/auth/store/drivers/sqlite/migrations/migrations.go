// Package migrations embeds the SQL schema migrations so the binary can
// migrate its database without external files.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS

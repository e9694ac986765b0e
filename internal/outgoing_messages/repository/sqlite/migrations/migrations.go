// Package migrations embeds the SQLite schema of the outgoing messages service.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

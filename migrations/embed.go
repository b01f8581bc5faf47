// Package migrations embeds the Postgres schema migrations applied at startup.
package migrations

import "embed"

// FS holds the goose-annotated SQL files.
//
//go:embed *.sql
var FS embed.FS

// Package migrations embeds the SQL schema and applies it on startup.
package migrations

import "embed"

//go:embed postgres/*.sql
var postgresFS embed.FS

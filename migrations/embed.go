// Package migrations embeds the SQL migration files for the main lifelog
// database. They are applied with goose at startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

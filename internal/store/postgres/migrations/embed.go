// Package migrations embeds the SQL migrations for the trips table.
package migrations

import "embed"

// FS holds all *.sql migration files.
//
//go:embed *.sql
var FS embed.FS

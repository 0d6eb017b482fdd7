// Package migrations embeds the database schema scripts.
package migrations

import "embed"

// Files holds every *.sql script in this directory.
//
//go:embed *.sql
var Files embed.FS

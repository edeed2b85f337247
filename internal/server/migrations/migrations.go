// Package migrations embeds the goose SQL migrations for PostgreSQL storage.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS

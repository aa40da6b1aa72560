// Package db embeds the SQL migrations for the Postgres document store.
package db

import "embed"

// Migrations holds the *.up.sql / *.down.sql files, applied in lexical order.
//
//go:embed migrations/*.sql
var Migrations embed.FS

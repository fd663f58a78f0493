// Package migrations embeds the goose migration set for the local store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS

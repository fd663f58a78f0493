// Package migrations embeds the goose migration set for the server database.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS

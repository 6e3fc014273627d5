// Package migrations embeds the SQL schema migrations for the ratings
// command service.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Package migrations embeds the schema of the snapshot store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

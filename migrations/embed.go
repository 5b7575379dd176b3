// Package migrations holds the goose migrations of the ClickHouse backend
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

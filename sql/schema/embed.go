package schema

import "embed"

// FS holds the goose migrations applied by config.LoadDatabase.
//
//go:embed *.sql
var FS embed.FS

package migrations

import "embed"

// FS exposes the versioned migration sources so goose can match them against
// the registered Go migrations.
//
//go:embed 0*.go
var FS embed.FS

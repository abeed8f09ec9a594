package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var MigrationFiles embed.FS

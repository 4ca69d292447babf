package appfs

import "embed"

// FS holds the SQL migrations and email templates shipped within the binaries.
// The templates directory is embedded with all: so the _base layouts are kept.
//go:embed migrations all:templates
var FS embed.FS

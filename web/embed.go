package web

import "embed"

// FS holds the page templates and static assets.
//
//go:embed templates static
var FS embed.FS

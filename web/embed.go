// Package web embeds the templates, static assets and site copy so the
// server binary runs from any working directory.
package web

import "embed"

//go:embed templates/*.html static content/site.yaml
var FS embed.FS

// ContentPath is the site copy inside FS.
const ContentPath = "content/site.yaml"

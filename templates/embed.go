// Package templates embeds the HTML pages served by pkg/server.
package templates

import (
	"embed"
	"html/template"
)

//go:embed *.html
var FS embed.FS

// LoadTemplates parses every embedded page.
func LoadTemplates() (*template.Template, error) {
	return template.ParseFS(FS, "*.html")
}

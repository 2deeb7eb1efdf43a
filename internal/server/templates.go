package server

import (
	"embed"
	"html/template"
)

//go:embed templates
var templateFS embed.FS

// pageTemplates holds the parsed HTML templates for the web and index pages.
var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html.tmpl"))

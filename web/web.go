// Package web holds the HTML templates, embedded into the binary.
package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var files embed.FS

// Templates parses every page and partial into one set
func Templates() (*template.Template, error) {
	return template.New("").ParseFS(files, "templates/*.html")
}

package gemtext

import (
	"path/filepath"
	"strings"
)

const (
	// Extension is the file extension of Gemtext documents
	Extension = ".gmi"
	// HTMLExtension replaces Extension on converted output files
	HTMLExtension = ".html"
)

// IsGemtext returns true if the file has the Gemtext extension.
// A dotfile named ".gmi" has no extension and is not Gemtext.
func IsGemtext(path string) bool {
	base := filepath.Base(path)
	return base != Extension && filepath.Ext(base) == Extension
}

// HTMLPath converts a Gemtext path to the path of its HTML rendition.
// For example: notes/index.gmi -> notes/index.html
func HTMLPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + HTMLExtension
}

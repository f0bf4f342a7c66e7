package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-tracker/constants"
)

// documentExt returns the normalized extension of path and whether it names an invoice format
// the pipeline accepts.
func documentExt(path string) (string, bool) {
	ext := constants.NormalizeExt(filepath.Ext(path))
	if ext == "" {
		return "", false
	}
	_, ok := constants.AllowedExtensions[ext]
	return ext, ok
}

// hiddenEntry reports dot-files and dot-directories below root. root itself is never hidden so
// a walk can start inside a dot-directory.
func hiddenEntry(root, path string) bool {
	return path != root && strings.HasPrefix(filepath.Base(path), ".")
}

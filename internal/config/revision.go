package config

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"

	"github.com/julianknutsen/shellpipe/internal/fsys"
)

// Revision returns a content hash of the config file at path, or "" if it
// cannot be read. Two loads with the same revision saw the same bytes.
func Revision(fs fsys.FS, path string) string {
	data, err := fs.ReadFile(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))[:12]
}

// dirOf returns the parent directory of path, or "" for a bare file name.
func dirOf(path string) string {
	dir := filepath.Dir(path)
	if dir == "." {
		return ""
	}
	return dir
}

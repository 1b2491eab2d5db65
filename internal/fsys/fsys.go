// Package fsys defines the small filesystem surface shellpipe's config
// layer needs, so it can be tested without touching disk.
//
// Production code uses [OSFS] which delegates to the os package. Tests
// use [Fake], an in-memory filesystem with a call log and error
// injection.
package fsys

import (
	"os"
)

// FS abstracts the filesystem operations used to load and write
// shellpipe.toml.
type FS interface {
	// MkdirAll creates a directory path and all parents that do not exist.
	MkdirAll(path string, perm os.FileMode) error

	// ReadFile returns the contents of the named file.
	ReadFile(name string) ([]byte, error)

	// WriteFile writes data to the named file, creating it if necessary.
	WriteFile(name string, data []byte, perm os.FileMode) error

	// Stat returns file info for the named file.
	Stat(name string) (os.FileInfo, error)
}

// OSFS implements [FS] by delegating to the os package.
type OSFS struct{}

// MkdirAll delegates to [os.MkdirAll].
func (OSFS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// ReadFile delegates to [os.ReadFile].
func (OSFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// WriteFile delegates to [os.WriteFile].
func (OSFS) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

// Stat delegates to [os.Stat].
func (OSFS) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

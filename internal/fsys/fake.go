package fsys

import (
	"os"
	"path/filepath"
	"time"
)

// Fake is an in-memory [FS] for testing. It records all calls (spy) and
// simulates filesystem state (fake). Pre-populate Dirs, Files, and Errors
// before calling methods. Not safe for concurrent use.
type Fake struct {
	Dirs   map[string]bool   // existing directories
	Files  map[string][]byte // existing files
	Errors map[string]error  // path → injected error (checked first)
	Calls  []Call            // spy log
}

// Call records a single method invocation on [Fake].
type Call struct {
	Method string // "MkdirAll", "ReadFile", "WriteFile", or "Stat"
	Path   string
}

// NewFake returns a ready-to-use [Fake] with empty maps.
func NewFake() *Fake {
	return &Fake{
		Dirs:   make(map[string]bool),
		Files:  make(map[string][]byte),
		Errors: make(map[string]error),
	}
}

// call logs the invocation and returns any injected error for path.
func (f *Fake) call(method, path string) error {
	f.Calls = append(f.Calls, Call{Method: method, Path: path})
	return f.Errors[path]
}

// MkdirAll adds the directory and its parents to Dirs.
func (f *Fake) MkdirAll(path string, _ os.FileMode) error {
	if err := f.call("MkdirAll", path); err != nil {
		return err
	}
	for p := filepath.Clean(path); p != "." && p != string(filepath.Separator); p = filepath.Dir(p) {
		f.Dirs[p] = true
	}
	return nil
}

// ReadFile returns a copy of the file contents from Files.
func (f *Fake) ReadFile(name string) ([]byte, error) {
	if err := f.call("ReadFile", name); err != nil {
		return nil, err
	}
	data, ok := f.Files[name]
	if !ok {
		return nil, &os.PathError{Op: "read", Path: name, Err: os.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

// WriteFile stores a copy of data in Files. The parent directory must
// exist unless it is "." or the root.
func (f *Fake) WriteFile(name string, data []byte, _ os.FileMode) error {
	if err := f.call("WriteFile", name); err != nil {
		return err
	}
	if dir := filepath.Dir(name); dir != "." && dir != string(filepath.Separator) && !f.Dirs[dir] {
		return &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	f.Files[name] = append([]byte(nil), data...)
	return nil
}

// Stat reports on Dirs and Files.
func (f *Fake) Stat(name string) (os.FileInfo, error) {
	if err := f.call("Stat", name); err != nil {
		return nil, err
	}
	if f.Dirs[name] {
		return fakeFileInfo{name: filepath.Base(name), dir: true}, nil
	}
	if data, ok := f.Files[name]; ok {
		return fakeFileInfo{name: filepath.Base(name), size: int64(len(data))}, nil
	}
	return nil, &os.PathError{Op: "stat", Path: name, Err: os.ErrNotExist}
}

type fakeFileInfo struct {
	name string
	size int64
	dir  bool
}

func (fi fakeFileInfo) Name() string { return fi.name }
func (fi fakeFileInfo) Size() int64  { return fi.size }
func (fi fakeFileInfo) Mode() os.FileMode {
	if fi.dir {
		return os.ModeDir | 0o755
	}
	return 0o644
}
func (fi fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (fi fakeFileInfo) IsDir() bool        { return fi.dir }
func (fi fakeFileInfo) Sys() any           { return nil }

var (
	_ FS          = (*Fake)(nil)
	_ FS          = OSFS{}
	_ os.FileInfo = fakeFileInfo{}
)

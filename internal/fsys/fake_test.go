package fsys

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFakeStat(t *testing.T) {
	f := NewFake()
	f.Dirs["/work/.shellpipe"] = true
	f.Files["/work/shellpipe.toml"] = []byte("hello")

	fi, err := f.Stat("/work/.shellpipe")
	if err != nil || !fi.IsDir() || fi.Name() != ".shellpipe" {
		t.Errorf("Stat dir = (%v, %v)", fi, err)
	}
	fi, err = f.Stat("/work/shellpipe.toml")
	if err != nil || fi.IsDir() || fi.Size() != 5 {
		t.Errorf("Stat file = (%v, %v)", fi, err)
	}
	if _, err := f.Stat("/nope"); !os.IsNotExist(err) {
		t.Errorf("Stat missing = %v, want not-exist", err)
	}
}

func TestFakeErrorInjection(t *testing.T) {
	f := NewFake()
	injected := errors.New("disk on fire")
	f.Errors["/work/shellpipe.toml"] = injected
	f.Files["/work/shellpipe.toml"] = []byte("x")

	if _, err := f.ReadFile("/work/shellpipe.toml"); !errors.Is(err, injected) {
		t.Errorf("ReadFile = %v, want injected error", err)
	}
	if err := f.WriteFile("/work/shellpipe.toml", nil, 0o644); !errors.Is(err, injected) {
		t.Errorf("WriteFile = %v, want injected error", err)
	}
	if len(f.Calls) != 2 || f.Calls[0].Method != "ReadFile" || f.Calls[1].Method != "WriteFile" {
		t.Errorf("Calls = %+v", f.Calls)
	}
}

func TestFakeWriteNeedsParent(t *testing.T) {
	f := NewFake()
	path := filepath.Join("/work", "conf", "shellpipe.toml")
	if err := f.WriteFile(path, []byte("a"), 0o644); !os.IsNotExist(err) {
		t.Fatalf("WriteFile without parent = %v, want not-exist", err)
	}
	if err := f.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if !f.Dirs["/work"] || !f.Dirs["/work/conf"] {
		t.Errorf("MkdirAll should record parents: %v", f.Dirs)
	}
	if err := f.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := f.ReadFile(path)
	if err != nil || string(data) != "a" {
		t.Errorf("ReadFile = (%q, %v)", data, err)
	}
}

func TestFakeReadFileCopies(t *testing.T) {
	f := NewFake()
	f.Files["a"] = []byte("abc")
	data, _ := f.ReadFile("a")
	data[0] = 'X'
	if string(f.Files["a"]) != "abc" {
		t.Error("ReadFile must return a copy")
	}
}

func TestOSFSRoundTrip(t *testing.T) {
	var fs OSFS
	dir := filepath.Join(t.TempDir(), "nested")
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "f")
	if err := fs.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := fs.ReadFile(path)
	if err != nil || string(got) != "data" {
		t.Errorf("ReadFile = (%q, %v)", got, err)
	}
	if fi, err := fs.Stat(path); err != nil || fi.Size() != 4 {
		t.Errorf("Stat = (%v, %v)", fi, err)
	}
}

// Package docgen generates the JSON Schema and markdown references for
// shellpipe.toml and the shellpipe command tree.
package docgen

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"
	"github.com/julianknutsen/shellpipe/internal/config"
)

const modulePath = "github.com/julianknutsen/shellpipe"

// ModuleRoot finds the repo root by walking up from the current directory
// looking for go.mod. Returns the absolute path.
func ModuleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent of %s", dir)
		}
		dir = parent
	}
}

// newReflector returns a Reflector that names fields by their toml tag and
// takes descriptions from Go doc comments.
//
// AddGoComments resolves packages relative to the working directory, so
// it runs with the working directory temporarily set to the module root.
func newReflector() (*jsonschema.Reflector, error) {
	root, err := ModuleRoot()
	if err != nil {
		return nil, err
	}
	orig, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	if err := os.Chdir(root); err != nil {
		return nil, fmt.Errorf("chdir to module root: %w", err)
	}
	defer func() { _ = os.Chdir(orig) }()

	r := &jsonschema.Reflector{FieldNameTag: "toml"}
	if err := r.AddGoComments(modulePath, "./internal/config"); err != nil {
		return nil, fmt.Errorf("extracting Go comments: %w", err)
	}
	return r, nil
}

// GenerateConfigSchema produces a JSON Schema for shellpipe.toml.
func GenerateConfigSchema() (*jsonschema.Schema, error) {
	r, err := newReflector()
	if err != nil {
		return nil, err
	}
	s := r.Reflect(&config.Config{})
	s.Title = "shellpipe Configuration"
	s.Description = "Schema for shellpipe.toml, which configures the interpreter sessions shellpipe starts."
	return s, nil
}

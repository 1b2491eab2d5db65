// Command genschema generates the JSON Schema and markdown reference docs
// for shellpipe.toml, plus the CLI reference. Run from the repository root:
//
//	go run ./cmd/genschema
//
// Output:
//
//	docs/schema/shellpipe-schema.json
//	docs/reference/config.md
//	docs/reference/cli.md
package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/julianknutsen/shellpipe/internal/docgen"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "genschema: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if _, err := os.Stat("go.mod"); err != nil {
		return fmt.Errorf("must run from repository root (go.mod not found)")
	}
	for _, dir := range []string{"docs/schema", "docs/reference"} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	s, err := docgen.GenerateConfigSchema()
	if err != nil {
		return fmt.Errorf("generating config schema: %w", err)
	}
	if err := docgen.WriteSchema("docs/schema/shellpipe-schema.json", s); err != nil {
		return err
	}
	if err := docgen.WriteMarkdown("docs/reference/config.md", s); err != nil {
		return fmt.Errorf("writing config.md: %w", err)
	}

	// The CLI reference needs the real command tree, which lives in main.
	genDoc := exec.Command("go", "run", "./cmd/shellpipe", "gen-doc")
	genDoc.Stdout = os.Stdout
	genDoc.Stderr = os.Stderr
	if err := genDoc.Run(); err != nil {
		return fmt.Errorf("generating CLI docs: %w", err)
	}

	fmt.Println("Generated:")
	for _, f := range []string{
		"docs/schema/shellpipe-schema.json",
		"docs/reference/config.md",
		"docs/reference/cli.md",
	} {
		fmt.Printf("  %s\n", f)
	}
	return nil
}

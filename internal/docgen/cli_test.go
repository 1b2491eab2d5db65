package docgen

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// testTree builds a small command tree shaped like shellpipe's.
func testTree() *cobra.Command {
	root := &cobra.Command{Use: "pipe", Short: "Test tool"}
	root.PersistentFlags().String("config", "", "path to config | file")

	run := &cobra.Command{
		Use:     "run [CMD...]",
		Short:   "Run commands",
		Long:    "Run commands in one session.\n\nOutput is streamed.",
		Example: "  pipe run 'echo hi'",
	}
	run.Flags().BoolP("privileged", "p", false, "use the privileged session")
	run.Flags().Int("retries", 3, "spawn retries")
	run.Flags().Duration("timeout", 0, "startup timeout")
	run.Flags().String("secret", "", "hidden flag")
	_ = run.Flags().MarkHidden("secret")

	cfg := &cobra.Command{Use: "config", Short: "Inspect configuration"}
	cfg.AddCommand(&cobra.Command{Use: "show", Short: "Print effective config"})

	root.AddCommand(run, cfg, &cobra.Command{Use: "gen-doc", Hidden: true})
	return root
}

func renderTree(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := RenderCLIMarkdown(&buf, testTree()); err != nil {
		t.Fatalf("RenderCLIMarkdown: %v", err)
	}
	return buf.String()
}

func TestRenderCLIMarkdownSections(t *testing.T) {
	md := renderTree(t)
	for _, want := range []string{
		"# CLI Reference",
		"## Global Flags",
		"## pipe run",
		"## pipe config show",
		"Run commands in one session.",
		"**Example:**",
		"pipe run [CMD...] [flags]",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("missing %q", want)
		}
	}
	if strings.Contains(md, "gen-doc") {
		t.Error("hidden command rendered")
	}
	if strings.Contains(md, "--secret") {
		t.Error("hidden flag rendered")
	}
}

func TestRenderCLIMarkdownFlags(t *testing.T) {
	md := renderTree(t)
	if !strings.Contains(md, "| `-p`, `--privileged` | bool |  | use the privileged session |") {
		t.Error("shorthand flag row wrong")
	}
	if !strings.Contains(md, "| `--retries` | int | `3` | spawn retries |") {
		t.Error("non-zero default not shown")
	}
	if !strings.Contains(md, "| `--timeout` | duration |  | startup timeout |") {
		t.Error("zero duration default should be omitted")
	}
	if !strings.Contains(md, "path to config \\| file") {
		t.Error("pipe in usage not escaped")
	}
	// Persistent flags appear only in the global table.
	if strings.Count(md, "`--config`") != 1 {
		t.Error("inherited flag repeated in a command table")
	}
}

func TestRenderCLIMarkdownSubcommands(t *testing.T) {
	md := renderTree(t)
	if !strings.Contains(md, "| [pipe config show](#pipe-config-show) | Print effective config |") {
		t.Error("subcommand table row missing")
	}
}

func TestIsZeroDefault(t *testing.T) {
	for _, tt := range []struct {
		val, typ string
		want     bool
	}{
		{"false", "bool", true},
		{"true", "bool", false},
		{"0", "int", true},
		{"0s", "duration", true},
		{time.Second.String(), "duration", false},
		{"[]", "stringSlice", true},
		{"", "string", true},
	} {
		if got := isZeroDefault(tt.val, tt.typ); got != tt.want {
			t.Errorf("isZeroDefault(%q, %q) = %v, want %v", tt.val, tt.typ, got, tt.want)
		}
	}
}

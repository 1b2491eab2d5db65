package docgen

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RenderCLIMarkdown writes a CLI reference by walking a cobra command
// tree. Hidden commands are skipped.
func RenderCLIMarkdown(w io.Writer, root *cobra.Command) error {
	ew := &errWriter{w: w}
	ew.printf("# CLI Reference\n\n")
	ew.printf(generatedNote)

	if global := flagRows(root.PersistentFlags()); len(global) > 0 {
		ew.printf("## Global Flags\n\n")
		writeFlagTable(ew, global)
	}
	walkCommands(ew, root)
	return ew.err
}

// WriteCLIMarkdown writes the CLI reference for root to path.
func WriteCLIMarkdown(path string, root *cobra.Command) error {
	return writeAtomic(path, func(w io.Writer) error { return RenderCLIMarkdown(w, root) })
}

func walkCommands(ew *errWriter, cmd *cobra.Command) {
	renderCommand(ew, cmd)
	for _, child := range visibleChildren(cmd) {
		walkCommands(ew, child)
	}
}

func renderCommand(ew *errWriter, cmd *cobra.Command) {
	ew.printf("## %s\n\n", cmd.CommandPath())
	desc := cmd.Long
	if desc == "" {
		desc = cmd.Short
	}
	if desc != "" {
		ew.printf("%s\n\n", strings.TrimSpace(desc))
	}
	ew.printf("```\n%s\n```\n\n", cmd.UseLine())
	if cmd.Example != "" {
		ew.printf("**Example:**\n\n```\n%s\n```\n\n", strings.TrimSpace(cmd.Example))
	}
	if rows := flagRows(cmd.LocalNonPersistentFlags()); len(rows) > 0 {
		writeFlagTable(ew, rows)
	}
	if children := visibleChildren(cmd); len(children) > 0 {
		ew.printf("| Subcommand | Description |\n")
		ew.printf("|------------|-------------|\n")
		for _, c := range children {
			anchor := strings.ToLower(strings.ReplaceAll(c.CommandPath(), " ", "-"))
			ew.printf("| [%s](#%s) | %s |\n", c.CommandPath(), anchor, c.Short)
		}
		ew.printf("\n")
	}
}

func visibleChildren(cmd *cobra.Command) []*cobra.Command {
	var out []*cobra.Command
	for _, c := range cmd.Commands() {
		if !c.Hidden {
			out = append(out, c)
		}
	}
	return out
}

// flagRow holds one rendered flag.
type flagRow struct {
	name, typ, def, desc string
}

func flagRows(fs *pflag.FlagSet) []flagRow {
	var rows []flagRow
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		name := "`--" + f.Name + "`"
		if f.Shorthand != "" {
			name = "`-" + f.Shorthand + "`, " + name
		}
		def := ""
		if !isZeroDefault(f.DefValue, f.Value.Type()) {
			def = "`" + f.DefValue + "`"
		}
		rows = append(rows, flagRow{
			name: name,
			typ:  f.Value.Type(),
			def:  def,
			desc: strings.ReplaceAll(f.Usage, "|", "\\|"),
		})
	})
	return rows
}

// isZeroDefault reports whether val is the zero value for a flag type.
func isZeroDefault(val, typ string) bool {
	switch typ {
	case "bool":
		return val == "false"
	case "int", "int32", "int64", "uint", "uint32", "uint64", "float32", "float64":
		return val == "0"
	case "duration":
		return val == "0s"
	case "stringSlice", "stringArray":
		return val == "[]"
	default:
		return val == ""
	}
}

func writeFlagTable(ew *errWriter, rows []flagRow) {
	ew.printf("| Flag | Type | Default | Description |\n")
	ew.printf("|------|------|---------|-------------|\n")
	for _, r := range rows {
		ew.printf("| %s | %s | %s | %s |\n", r.name, r.typ, r.def, r.desc)
	}
	ew.printf("\n")
}

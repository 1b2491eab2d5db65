package docgen

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/invopop/jsonschema"
)

const generatedNote = "> Generated by `go run ./cmd/genschema`. Do not edit.\n\n"

// RenderMarkdown writes a reference document for s: one section per
// definition, root type first, each with a field table.
func RenderMarkdown(w io.Writer, s *jsonschema.Schema) error {
	ew := &errWriter{w: w}
	title := s.Title
	if title == "" {
		title = "Configuration Reference"
	}
	ew.printf("# %s\n\n", title)
	if s.Description != "" {
		ew.printf("%s\n\n", s.Description)
	}
	ew.printf(generatedNote)

	root := refName(s.Ref)
	names := make([]string, 0, len(s.Definitions))
	for name := range s.Definitions {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		switch {
		case a == root:
			return -1
		case b == root:
			return 1
		}
		return strings.Compare(a, b)
	})

	for _, name := range names {
		def := s.Definitions[name]
		if def == nil || def.Properties == nil {
			continue
		}
		ew.printf("## %s\n\n", name)
		if def.Description != "" {
			ew.printf("%s\n\n", def.Description)
		}
		ew.printf("| Field | Type | Required | Default | Description |\n")
		ew.printf("|-------|------|----------|---------|-------------|\n")
		for pair := def.Properties.Oldest(); pair != nil; pair = pair.Next() {
			req := ""
			if slices.Contains(def.Required, pair.Key) {
				req = "**yes**"
			}
			ew.printf("| `%s` | %s | %s | %s | %s |\n",
				pair.Key, schemaTypeString(pair.Value), req,
				formatDefault(pair.Value), formatDescription(pair.Value))
		}
		ew.printf("\n")
	}
	return ew.err
}

// schemaTypeString returns a human-readable type for a property.
func schemaTypeString(prop *jsonschema.Schema) string {
	if prop.Ref != "" {
		return refName(prop.Ref)
	}
	switch prop.Type {
	case "array":
		if prop.Items == nil {
			return "array"
		}
		return "[]" + schemaTypeString(prop.Items)
	case "object":
		if prop.AdditionalProperties == nil {
			return "object"
		}
		return "map[string]" + schemaTypeString(prop.AdditionalProperties)
	case "":
		return "any"
	default:
		return prop.Type
	}
}

// refName extracts the type name from a $ref such as "#/$defs/Session".
func refName(ref string) string {
	if ref == "" {
		return ""
	}
	return ref[strings.LastIndex(ref, "/")+1:]
}

func formatDefault(prop *jsonschema.Schema) string {
	if prop.Default == nil {
		return ""
	}
	return fmt.Sprintf("`%v`", prop.Default)
}

// formatDescription flattens the description into one table cell and
// appends enum values.
func formatDescription(prop *jsonschema.Schema) string {
	desc := prop.Description
	if len(prop.Enum) > 0 {
		vals := make([]string, len(prop.Enum))
		for i, v := range prop.Enum {
			vals[i] = fmt.Sprintf("`%v`", v)
		}
		desc = strings.TrimSpace(desc + " Enum: " + strings.Join(vals, ", "))
	}
	desc = strings.ReplaceAll(desc, "\n", " ")
	return strings.ReplaceAll(desc, "|", "\\|")
}

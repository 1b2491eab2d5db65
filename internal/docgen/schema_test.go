package docgen

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// defProperties extracts the properties map for a named $defs entry.
func defProperties(t *testing.T, raw map[string]any, defName string) map[string]any {
	t.Helper()
	defs, ok := raw["$defs"].(map[string]any)
	if !ok {
		t.Fatal("no $defs")
	}
	def, ok := defs[defName].(map[string]any)
	if !ok {
		t.Fatalf("no %s definition in $defs", defName)
	}
	props, ok := def["properties"].(map[string]any)
	if !ok {
		t.Fatalf("%s has no properties", defName)
	}
	return props
}

func generatedRaw(t *testing.T) map[string]any {
	t.Helper()
	s, err := GenerateConfigSchema()
	if err != nil {
		t.Fatalf("GenerateConfigSchema: %v", err)
	}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return raw
}

func TestGenerateConfigSchemaUsesTOMLNames(t *testing.T) {
	raw := generatedRaw(t)

	props := defProperties(t, raw, "Config")
	for _, want := range []string{"session", "shell", "privileged", "custom", "events"} {
		if _, ok := props[want]; !ok {
			t.Errorf("missing Config property %q", want)
		}
	}
	if _, ok := props["Session"]; ok {
		t.Error("found Go-style property name")
	}

	session := defProperties(t, raw, "Session")
	for _, want := range []string{"startup_timeout", "retries", "capacity", "marker", "oom_adjust", "lock_dir"} {
		if _, ok := session[want]; !ok {
			t.Errorf("missing Session property %q", want)
		}
	}
}

func TestConfigSchemaDescriptions(t *testing.T) {
	raw := generatedRaw(t)
	session := defProperties(t, raw, "Session")
	capacity, _ := session["capacity"].(map[string]any)
	if desc, _ := capacity["description"].(string); desc == "" {
		t.Error("capacity has no description from its doc comment")
	}
	if def, _ := capacity["default"].(float64); def != 5000 {
		t.Errorf("capacity default = %v, want 5000", capacity["default"])
	}
}

func TestWriteSchema(t *testing.T) {
	s, err := GenerateConfigSchema()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "schema.json")
	if err := WriteSchema(path, s); err != nil {
		t.Fatalf("WriteSchema: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(data) {
		t.Error("written schema is not valid JSON")
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

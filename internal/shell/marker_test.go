package shell

import "testing"

func TestCompletionLine(t *testing.T) {
	got := completionLine("MK", 7)
	want := "\necho 'MK' 7 $?\n"
	if got != want {
		t.Errorf("completionLine = %q, want %q", got, want)
	}
}

func TestSplitMarker(t *testing.T) {
	tests := []struct {
		line   string
		prefix string
		record string
		found  bool
	}{
		{"hello", "", "", false},
		{DefaultMarker + " 0 0", "", DefaultMarker + " 0 0", true},
		{"abc" + DefaultMarker + " 3 1", "abc", DefaultMarker + " 3 1", true},
		{"F*D^W@# 0 0", "", "", false},
	}
	for _, tt := range tests {
		prefix, record, found := splitMarker(tt.line, DefaultMarker)
		if prefix != tt.prefix || record != tt.record || found != tt.found {
			t.Errorf("splitMarker(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.line, prefix, record, found, tt.prefix, tt.record, tt.found)
		}
	}
}

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name   string
		record string
		seq    int
		exit   int
		ok     bool
	}{
		{"normal", "MK 4 0", 4, 0, true},
		{"nonzero", "MK 12 127", 12, 127, true},
		{"missing exit", "MK 5", 5, -1, true},
		{"bad exit", "MK 5 x", 5, -1, true},
		{"bad seq", "MK x 2", 0, 2, true},
		{"extra fields", "MK 1 2 3", 1, 2, true},
		{"marker only", "MK", 0, -1, false},
		{"empty", "", 0, -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, exit, ok := parseRecord(tt.record)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if seq != tt.seq || exit != tt.exit {
				t.Errorf("parseRecord(%q) = (%d, %d), want (%d, %d)", tt.record, seq, exit, tt.seq, tt.exit)
			}
		})
	}
}

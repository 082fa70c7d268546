package cli

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestMatchCmd_TextOutput(t *testing.T) {
	res := runCLI(t, testDeps(fileConfig(t)), nil, "match", "NaCl", "MgCl2 6-hydrate")
	if res.err != nil {
		t.Fatalf("execution failed: %v", res.err)
	}
	for _, want := range []string{"CHEBI:26710", "CHEBI:6636", "exact_formula", "very_high"} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("output missing %q:\n%s", want, res.stdout)
		}
	}
}

func TestMatchCmd_JSONOutput(t *testing.T) {
	res := runCLI(t, testDeps(fileConfig(t)), nil, "match", "-o", "json", "dextrose", "totally-unknown-xyz")
	if res.err != nil {
		t.Fatalf("execution failed: %v", res.err)
	}

	var records []map[string]interface{}
	if err := json.Unmarshal([]byte(res.stdout), &records); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, res.stdout)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0]["matched_id"] != "CHEBI:17234" {
		t.Errorf("dextrose: expected CHEBI:17234, got %v", records[0]["matched_id"])
	}
	if records[1]["method"] != "unmapped" || records[1]["tier"] != "none" {
		t.Errorf("unknown name: expected unmapped/none, got %v/%v", records[1]["method"], records[1]["tier"])
	}
}

func TestMatchCmd_ReadsStdin(t *testing.T) {
	res := runCLI(t, testDeps(fileConfig(t)), strings.NewReader("NaCl\n\n  dextrose  \n"), "match", "-o", "json")
	if res.err != nil {
		t.Fatalf("execution failed: %v", res.err)
	}
	var records []map[string]interface{}
	if err := json.Unmarshal([]byte(res.stdout), &records); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("blank lines should be skipped, got %d records", len(records))
	}
	if records[1]["original"] != "dextrose" {
		t.Errorf("expected trimmed name, got %v", records[1]["original"])
	}
}

func TestMatchCmd_MinScoreOverridesConfig(t *testing.T) {
	cfg := fileConfig(t)
	res := runCLI(t, testDeps(cfg), nil, "match", "--min-score", "97", "NaCl")
	if res.err != nil {
		t.Fatalf("execution failed: %v", res.err)
	}
	if cfg.Matching.MinScore != 97 {
		t.Errorf("expected min score 97, got %d", cfg.Matching.MinScore)
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"magnesium chloride hexahydrate", 12, "magnesium..."},
		{"α-D-glucose", 11, "α-D-glucose"},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

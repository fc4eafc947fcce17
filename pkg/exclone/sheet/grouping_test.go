package sheet

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ukaji3/exclone-go/pkg/exclone/models"
)

func entry(label, group string, highlighted bool) models.WorksheetEntry {
	return models.WorksheetEntry{Value: label, StructureValue: group, IsHighlighted: highlighted}
}

func TestGroupEntriesExact(t *testing.T) {
	entries := []models.WorksheetEntry{
		entry("PU1-101", "Pump  Control", false),
		entry("PU2-101", "Pump Control", false),
		entry("PU3-101", "Pump Control", true),
	}

	mappings, diag := GroupEntries(entries)

	want := []models.TemplateMapping{{
		StructureKey: "Function=Pump Control",
		Source:       "PU1-101",
		Targets:      []string{"PU3-101"},
	}}
	if diff := cmp.Diff(want, mappings); diff != "" {
		t.Errorf("mappings mismatch (-want +got):\n%s", diff)
	}
	if diag.Strategy != StrategyExact {
		t.Errorf("Expected exact strategy, got %s", diag.Strategy)
	}
}

func TestGroupEntriesSelfTargetDropped(t *testing.T) {
	entries := []models.WorksheetEntry{
		entry("PU1-101", "Pump", false),
		entry("PU1-101", "Pump", true),
	}

	mappings, diag := GroupEntries(entries)
	if len(mappings) != 0 {
		t.Errorf("Expected no mappings, got %+v", mappings)
	}
	if diag.DroppedSelf != 1 || diag.NoTargets != 1 {
		t.Errorf("unexpected diagnostics: %+v", diag)
	}
}

func TestGroupEntriesPatternFallback(t *testing.T) {
	entries := []models.WorksheetEntry{
		entry("PU1-101", "PU1 Pump", false),
		entry("PU3-101", "PU3 Pump", true),
		entry("XV9", "Valve-10", true),
	}

	mappings, diag := GroupEntries(entries)

	if diag.Strategy != StrategyPattern {
		t.Fatalf("Expected pattern strategy, got %s", diag.Strategy)
	}
	want := []models.TemplateMapping{{
		StructureKey: "Pattern=AA9 AAAA",
		Source:       "PU1-101",
		Targets:      []string{"PU3-101"},
	}}
	if diff := cmp.Diff(want, mappings); diff != "" {
		t.Errorf("mappings mismatch (-want +got):\n%s", diff)
	}
	if diag.NoSource != 1 {
		t.Errorf("Expected 1 group without source, got %d", diag.NoSource)
	}
}

func TestGroupEntriesDeterministic(t *testing.T) {
	entries := []models.WorksheetEntry{
		entry("A1", "G1", false),
		entry("B1", "G2", false),
		entry("A2", "G1", true),
		entry("B2", "G2", true),
		entry("B3", "G2", true),
	}

	first, _ := GroupEntries(entries)
	for i := 0; i < 5; i++ {
		again, _ := GroupEntries(entries)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("grouping not deterministic:\n%s", diff)
		}
	}
	if len(first) != 2 || first[0].Source != "A1" || len(first[1].Targets) != 2 {
		t.Errorf("unexpected mappings: %+v", first)
	}
}

func TestPatternKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"PU1-101", "Pattern=AA9-999"},
		{"  Tank  T2 ", "Pattern=AAAA A9"},
		{"a_b.1", "Pattern=A_A.9"},
	}

	for _, tt := range tests {
		if got := PatternKey(tt.input); got != tt.expected {
			t.Errorf("PatternKey(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

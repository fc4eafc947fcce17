// Package models defines data structures shared by the exclone pipeline.
package models

// WorksheetEntry represents one candidate data row of the annotated sheet.
type WorksheetEntry struct {
	// Value is the label cell text (trimmed).
	Value string `json:"value"`
	// StructureValue is the grouping cell text (trimmed).
	StructureValue string `json:"structure_value"`
	// IsHighlighted reports whether the label cell carries the highlight marker.
	IsHighlighted bool `json:"is_highlighted"`
	// CellAddress is the label cell reference (e.g., "B12").
	CellAddress string `json:"cell_address"`
}

// TemplateMapping associates one clone source with the labels that need a clone.
type TemplateMapping struct {
	// StructureKey is the grouping signature ("Function=..." or "Pattern=...").
	StructureKey string `json:"structure_key"`
	// Source is the non-highlighted label chosen as clone source.
	Source string `json:"source"`
	// Targets are the highlighted labels requiring a clone.
	Targets []string `json:"targets"`
}

// MemberEntry is a record member to inject into an existing data record.
type MemberEntry struct {
	// Record is the target record name.
	Record string `json:"record"`
	// Name is the member name.
	Name string `json:"name"`
	// Source is the label the entry was read from.
	Source string `json:"source"`
	// DataType is the declared member data type (e.g., "Bool", "Int").
	DataType string `json:"data_type"`
	// Comment is the member comment text.
	Comment string `json:"comment,omitempty"`
}

// Key returns the uniqueness key of the entry.
func (e MemberEntry) Key() string {
	return e.Record + "\x00" + e.Name
}

package models

// BuildResult summarizes one build invocation.
type BuildResult struct {
	// MatchedStructures is the number of mappings inferred from the sheet.
	MatchedStructures int `json:"matched_structures"`
	// HighlightedEntries is the number of highlighted candidate rows.
	HighlightedEntries int `json:"highlighted_entries"`
	// FoldersCreated is the number of groups created.
	FoldersCreated int `json:"folders_created"`
	// BlocksCreated is the number of blocks created.
	BlocksCreated int `json:"blocks_created"`
	// MembersAdded is the number of record members added or migrated.
	MembersAdded int `json:"members_added"`
	// Skipped is the number of skipped items (all reasons).
	Skipped int `json:"skipped"`
	// Errors is the number of hard failures.
	Errors int `json:"errors"`
	// ReportPath is the written report file.
	ReportPath string `json:"report_path"`
}

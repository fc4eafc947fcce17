package sheet

import (
	"strings"

	"github.com/ukaji3/exclone-go/pkg/exclone/models"
	"github.com/xuri/excelize/v2"
)

// Route assigns member rows with a connection-type prefix to a record and data type.
type Route struct {
	Prefix   string `yaml:"prefix"`
	Record   string `yaml:"record"`
	DataType string `yaml:"data_type"`
}

// MemberConfig configures the member-row pass.
type MemberConfig struct {
	SystemColumn         string   `yaml:"system_column"`
	ConnectionTypeColumn string   `yaml:"connection_type_column"`
	LabelColumn          string   `yaml:"label_column"`
	DescriptionColumns   []string `yaml:"description_columns"`
	// System is the sentinel value a row's system column must equal.
	System string  `yaml:"system"`
	Routes []Route `yaml:"routes"`
}

// DefaultMemberConfig returns the member-row defaults.
func DefaultMemberConfig() MemberConfig {
	return MemberConfig{
		SystemColumn:         "System",
		ConnectionTypeColumn: "Connection Type",
		LabelColumn:          "Tag",
		DescriptionColumns:   []string{"Description 1", "Description 2", "Description 3"},
		System:               "HMI",
		Routes: []Route{
			{Prefix: "DI", Record: "IO_Inputs", DataType: "Bool"},
			{Prefix: "AI", Record: "IO_Inputs", DataType: "Int"},
			{Prefix: "DO", Record: "IO_Outputs", DataType: "Bool"},
			{Prefix: "AO", Record: "IO_Outputs", DataType: "Int"},
		},
	}
}

// MemberDiagnostics counts rows seen by the member pass.
type MemberDiagnostics struct {
	SystemRows     int
	NotHighlighted int
	InvalidType    int
	BlankLabel     int
	Duplicates     int
}

// Route resolves a connection type by its two-letter prefix.
func (c MemberConfig) Route(connectionType string) (Route, bool) {
	ct := strings.ToUpper(strings.TrimSpace(connectionType))
	if len(ct) < 2 {
		return Route{}, false
	}
	prefix := ct[:2]
	for _, r := range c.Routes {
		if strings.EqualFold(r.Prefix, prefix) {
			return r, true
		}
	}
	return Route{}, false
}

// ReadMembers extracts highlighted member rows for the configured system.
func ReadMembers(f *excelize.File, sheetName string, cfg MemberConfig) ([]models.MemberEntry, MemberDiagnostics, error) {
	var diag MemberDiagnostics

	sheetName, err := ResolveSheet(f, sheetName)
	if err != nil {
		return nil, diag, err
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, diag, err
	}

	wanted := append([]string{cfg.SystemColumn, cfg.ConnectionTypeColumn, cfg.LabelColumn}, cfg.DescriptionColumns...)
	idx, err := locateHeaders(sheetName, rows, wanted...)
	if err != nil {
		return nil, diag, err
	}
	systemCol, typeCol, labelCol := idx[0], idx[1], idx[2]
	descCols := idx[3:]

	var entries []models.MemberEntry
	seen := make(map[string]bool)
	for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
		row := rows[rowIdx]
		if !strings.EqualFold(cellAt(row, systemCol), cfg.System) {
			continue
		}
		diag.SystemRows++

		label := cellAt(row, labelCol)
		if label == "" {
			diag.BlankLabel++
			continue
		}
		cellName, _ := excelize.CoordinatesToCellName(labelCol+1, rowIdx+1)
		if ok, _ := IsHighlighted(f, sheetName, cellName); !ok {
			diag.NotHighlighted++
			continue
		}
		route, ok := cfg.Route(cellAt(row, typeCol))
		if !ok {
			diag.InvalidType++
			continue
		}

		var parts []string
		for _, col := range descCols {
			if text := cellAt(row, col); text != "" {
				parts = append(parts, text)
			}
		}

		entry := models.MemberEntry{
			Record:   route.Record,
			Name:     label,
			Source:   cellName,
			DataType: route.DataType,
			Comment:  strings.Join(parts, " "),
		}
		if seen[entry.Key()] {
			diag.Duplicates++
			continue
		}
		seen[entry.Key()] = true
		entries = append(entries, entry)
	}

	return entries, diag, nil
}

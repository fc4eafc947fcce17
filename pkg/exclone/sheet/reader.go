// Package sheet reads annotated worksheets into typed entries and groups them
// into template mappings.
package sheet

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/ukaji3/exclone-go/pkg/exclone/models"
	"github.com/xuri/excelize/v2"
)

// ErrSheetNotFound indicates the requested sheet does not exist in the workbook.
var ErrSheetNotFound = errors.New("sheet not found")

// ErrHeaderMissing indicates a required column header is absent.
var ErrHeaderMissing = errors.New("required header missing")

// HeaderError lists the required headers that were not found on a sheet.
type HeaderError struct {
	Sheet   string
	Missing []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("sheet %q: missing required header(s): %s", e.Sheet, strings.Join(e.Missing, ", "))
}

func (e *HeaderError) Unwrap() error {
	return ErrHeaderMissing
}

// Columns names the header texts of the primary pass.
type Columns struct {
	Label string `yaml:"label"`
	Group string `yaml:"group"`
}

// DefaultColumns returns the header texts used when none are configured.
func DefaultColumns() Columns {
	return Columns{
		Label: "Tag",
		Group: "Function",
	}
}

// Diagnostics carries pass-through counts for the report.
type Diagnostics struct {
	Rows          int
	Candidates    int
	BlankLabel    int
	BlankGroup    int
	Highlighted   int
	SampledColors []string
}

// Result is the output of ReadEntries.
type Result struct {
	Sheet       string
	Entries     []models.WorksheetEntry
	Diagnostics Diagnostics
}

const maxSampledColors = 10

// ResolveSheet returns sheetName if present, or the first sheet when sheetName is blank.
func ResolveSheet(f *excelize.File, sheetName string) (string, error) {
	if strings.TrimSpace(sheetName) == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return "", ErrSheetNotFound
		}
		return list[0], nil
	}
	if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
		return "", fmt.Errorf("%w: %q", ErrSheetNotFound, sheetName)
	}
	return sheetName, nil
}

// ReadEntries extracts candidate rows from a sheet.
// A row is a candidate only if both its label and grouping cells are non-blank.
func ReadEntries(f *excelize.File, sheetName string, cols Columns) (*Result, error) {
	sheetName, err := ResolveSheet(f, sheetName)
	if err != nil {
		return nil, err
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, err
	}

	idx, err := locateHeaders(sheetName, rows, cols.Label, cols.Group)
	if err != nil {
		return nil, err
	}
	labelCol, groupCol := idx[0], idx[1]

	res := &Result{Sheet: sheetName}
	seenColors := make(map[string]bool)
	for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
		row := rows[rowIdx]
		label := cellAt(row, labelCol)
		group := cellAt(row, groupCol)
		if label == "" && group == "" {
			continue
		}
		res.Diagnostics.Rows++
		if label == "" {
			res.Diagnostics.BlankLabel++
			continue
		}
		if group == "" {
			res.Diagnostics.BlankGroup++
			continue
		}

		cellName, _ := excelize.CoordinatesToCellName(labelCol+1, rowIdx+1)
		highlighted, color := IsHighlighted(f, sheetName, cellName)
		if color != "" && !seenColors[color] && len(res.Diagnostics.SampledColors) < maxSampledColors {
			seenColors[color] = true
			res.Diagnostics.SampledColors = append(res.Diagnostics.SampledColors, color)
		}
		if highlighted {
			res.Diagnostics.Highlighted++
		}
		res.Entries = append(res.Entries, models.WorksheetEntry{
			Value:          label,
			StructureValue: group,
			IsHighlighted:  highlighted,
			CellAddress:    cellName,
		})
	}
	res.Diagnostics.Candidates = len(res.Entries)

	return res, nil
}

// locateHeaders finds the zero-based column index of each wanted header in the first row.
func locateHeaders(sheetName string, rows [][]string, wanted ...string) ([]int, error) {
	var header []string
	if len(rows) > 0 {
		header = rows[0]
	}
	positions := make(map[string]int, len(header))
	for colIdx, text := range header {
		key := NormalizeHeader(text)
		if _, dup := positions[key]; !dup && key != "" {
			positions[key] = colIdx
		}
	}

	result := make([]int, len(wanted))
	var missing []string
	for i, name := range wanted {
		pos, ok := positions[NormalizeHeader(name)]
		if !ok {
			missing = append(missing, name)
			continue
		}
		result[i] = pos
	}
	if len(missing) > 0 {
		return nil, &HeaderError{Sheet: sheetName, Missing: missing}
	}
	return result, nil
}

// NormalizeHeader strips all whitespace and lowercases header text.
func NormalizeHeader(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

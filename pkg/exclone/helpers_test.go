package exclone

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ukaji3/exclone-go/pkg/exclone/models"
	"github.com/ukaji3/exclone-go/pkg/exclone/repository"
	"github.com/ukaji3/exclone-go/pkg/exclone/repository/fsrepo"
	"github.com/xuri/excelize/v2"
)

var fullHeader = []string{"Tag", "Function", "System", "Connection Type", "Description 1", "Description 2", "Description 3"}

// writeWorkbook saves a one-sheet workbook; rows listed in red get a red fill
// on their first column.
func writeWorkbook(t *testing.T, header []string, rows [][]string, red map[int]bool) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))
	style, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FF0000"}, Pattern: 1},
	})
	require.NoError(t, err)
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
		if red[i] {
			require.NoError(t, f.SetCellStyle("Sheet1", cell, cell, style))
		}
	}

	path := filepath.Join(t.TempDir(), "plant.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func pumpWorkbook(t *testing.T) string {
	return writeWorkbook(t, fullHeader,
		[][]string{
			{"PU1-101", "Pump", "PLC", "", "", "", ""},
			{"PU3-101", "Pump", "PLC", "", "", "", ""},
			{"PU3_Run", "", "HMI", "DI-12", "Pump 3", "", "running"},
		},
		map[int]bool{1: true, 2: true},
	)
}

func seedBlock(t *testing.T, r *fsrepo.Repo, root models.Group, path string, b models.Block) {
	t.Helper()
	g, _, err := repository.EnsureGroup(r, root, path)
	require.NoError(t, err)
	_, err = r.Put(g, fsrepo.NewBlockDocument(b), repository.ImportFailOnConflict)
	require.NoError(t, err)
}

func newPlant(t *testing.T) (*fsrepo.Repo, models.Group) {
	t.Helper()
	r, err := fsrepo.Open(t.TempDir(), nil)
	require.NoError(t, err)
	root, err := r.Root()
	require.NoError(t, err)

	seedBlock(t, r, root, "Pumps/PU1", models.Block{Name: "PU1-101", Kind: models.KindRoutine, Number: 10})
	seedBlock(t, r, root, "IO", models.Block{Name: "IO_Inputs", Kind: models.KindDataRecord, Number: 20})
	return r, root
}

func testOptions(t *testing.T) Options {
	opts := DefaultOptions()
	opts.ReportDir = t.TempDir()
	opts.TempDir = t.TempDir()
	return opts
}

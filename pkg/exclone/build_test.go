package exclone

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukaji3/exclone-go/pkg/exclone/report"
	"github.com/ukaji3/exclone-go/pkg/exclone/repository"
	"github.com/ukaji3/exclone-go/pkg/exclone/sheet"
)

func readReport(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestBuild(t *testing.T) {
	r, root := newPlant(t)
	workbook := pumpWorkbook(t)

	res, err := Build(workbook, r, testOptions(t))
	require.NoError(t, err)

	assert.Equal(t, 1, res.MatchedStructures)
	assert.Equal(t, 1, res.HighlightedEntries, "member-only rows carry no grouping value")
	assert.Equal(t, 1, res.FoldersCreated)
	assert.Equal(t, 1, res.BlocksCreated)
	assert.Equal(t, 1, res.MembersAdded)
	assert.Zero(t, res.Errors)

	clone, found, err := repository.FindBlock(r, root, "PU3-101")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Pumps/PU3", clone.Path)

	text := readReport(t, res.ReportPath)
	assert.True(t, strings.HasPrefix(text, report.HeaderTitle))
	assert.Contains(t, text, "PU1→PU3")
	assert.Contains(t, text, "Grouping strategy: Function")
}

func TestBuildIsIdempotent(t *testing.T) {
	r, _ := newPlant(t)
	workbook := pumpWorkbook(t)

	_, err := Build(workbook, r, testOptions(t))
	require.NoError(t, err)

	res, err := Build(workbook, r, testOptions(t))
	require.NoError(t, err)
	assert.Zero(t, res.BlocksCreated)
	assert.Zero(t, res.FoldersCreated)
	assert.Zero(t, res.MembersAdded)
	assert.Zero(t, res.Errors)
	assert.Equal(t, 2, res.Skipped, "existing clone and existing member")
}

func TestBuildTargetGroup(t *testing.T) {
	r, _ := newPlant(t)
	workbook := pumpWorkbook(t)

	opts := testOptions(t)
	opts.TargetGroup = "Pumps"
	res, err := Build(workbook, r, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, res.BlocksCreated)
	assert.Equal(t, 1, res.Skipped, "IO_Inputs is outside the working root")

	opts.TargetGroup = "Nowhere"
	res, err = Build(workbook, r, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTargetNotFound))

	var abort *AbortError
	require.True(t, errors.As(err, &abort))
	assert.Equal(t, res.ReportPath, abort.ReportPath)
	assert.Contains(t, readReport(t, abort.ReportPath), "aborted")
}

func TestBuildMemberModes(t *testing.T) {
	workbook := writeWorkbook(t, []string{"Tag", "Function"},
		[][]string{{"PU1-101", "Pump"}, {"PU3-101", "Pump"}},
		map[int]bool{1: true},
	)

	t.Run("auto skips the pass", func(t *testing.T) {
		r, _ := newPlant(t)
		res, err := Build(workbook, r, testOptions(t))
		require.NoError(t, err)
		assert.Equal(t, 1, res.BlocksCreated)
		assert.Contains(t, readReport(t, res.ReportPath), "Member pass: skipped")
	})

	t.Run("on requires the columns", func(t *testing.T) {
		r, _ := newPlant(t)
		opts := testOptions(t)
		opts.MemberMode = MembersOn
		_, err := Build(workbook, r, opts)
		require.Error(t, err)
		assert.True(t, errors.Is(err, sheet.ErrHeaderMissing))
		assert.Equal(t, CategoryFailure, CategoryOf(err))
	})

	t.Run("off never reads members", func(t *testing.T) {
		r, _ := newPlant(t)
		opts := testOptions(t)
		opts.MemberMode = MembersOff
		res, err := Build(pumpWorkbook(t), r, opts)
		require.NoError(t, err)
		assert.Zero(t, res.MembersAdded)
	})
}

func TestBuildConnectionLost(t *testing.T) {
	r, _ := newPlant(t)
	workbook := pumpWorkbook(t)
	require.NoError(t, os.RemoveAll(r.Dir()))

	res, err := Build(workbook, r, testOptions(t))
	require.Error(t, err)
	assert.Equal(t, CategoryConnectionLost, CategoryOf(err))
	assert.FileExists(t, res.ReportPath)
}

func TestBuildMissingWorkbook(t *testing.T) {
	r, _ := newPlant(t)
	res, err := Build(filepath.Join(t.TempDir(), "missing.xlsx"), r, testOptions(t))
	require.Error(t, err)
	assert.Equal(t, CategoryFailure, CategoryOf(err))
	assert.FileExists(t, res.ReportPath)
}

func TestBuildOpen(t *testing.T) {
	r, _ := newPlant(t)
	res, err := BuildOpen(pumpWorkbook(t), func() (repository.Repository, error) { return r, nil }, testOptions(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.BlocksCreated)
}

func TestBuildOpenFailureWritesReport(t *testing.T) {
	opts := testOptions(t)
	lost := repository.NewError(repository.KindConnectionLost, "open", "plant", errors.New("no host"))

	res, err := BuildOpen(pumpWorkbook(t), func() (repository.Repository, error) { return nil, lost }, opts)
	require.Error(t, err)
	assert.Equal(t, CategoryConnectionLost, CategoryOf(err))

	var abort *AbortError
	require.True(t, errors.As(err, &abort))
	assert.Equal(t, res.ReportPath, abort.ReportPath)
	assert.Contains(t, readReport(t, abort.ReportPath), "Status: aborted")
}

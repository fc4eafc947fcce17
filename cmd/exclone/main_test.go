package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/ukaji3/exclone-go/pkg/exclone"
	"github.com/ukaji3/exclone-go/pkg/exclone/repository"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"failure", errors.New("boom"), 1},
		{"connection lost", repository.NewError(repository.KindConnectionLost, "root", "", errors.New("gone")), 2},
		{"object invalid", repository.NewError(repository.KindObjectInvalid, "blocks", "PU1", errors.New("stale")), 3},
		{"bad timeout", fmt.Errorf("%w: 0s", exclone.ErrBadTimeout), 4},
		{"timed out", &exclone.AbortError{Err: exclone.ErrTimedOut}, 5},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("%s: exitCode() = %d; expected %d", tt.name, got, tt.want)
		}
	}
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.Execute()
}

func reportsIn(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "exclone_report_*.txt"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	return matches
}

func TestBuildMissingWorkbookWritesReport(t *testing.T) {
	reportDir := t.TempDir()
	err := execute(t, "build", filepath.Join(t.TempDir(), "missing.xlsx"),
		"--repo", t.TempDir(), "--report-dir", reportDir)
	if err == nil {
		t.Fatal("expected an error for a missing workbook")
	}
	if got := exitCode(err); got != 1 {
		t.Errorf("exitCode() = %d; expected 1", got)
	}
	if got := len(reportsIn(t, reportDir)); got != 1 {
		t.Errorf("reports written = %d; expected 1", got)
	}
}

func TestBuildMissingRepositoryWritesReport(t *testing.T) {
	reportDir := t.TempDir()
	err := execute(t, "build", filepath.Join(t.TempDir(), "plant.xlsx"),
		"--repo", filepath.Join(t.TempDir(), "missing"), "--report-dir", reportDir)

	var abort *exclone.AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("expected *AbortError, got %v", err)
	}
	if got := exitCode(err); got != 2 {
		t.Errorf("exitCode() = %d; expected 2", got)
	}
	reports := reportsIn(t, reportDir)
	if len(reports) != 1 || reports[0] != abort.ReportPath {
		t.Errorf("reports = %v; expected exactly %s", reports, abort.ReportPath)
	}
}

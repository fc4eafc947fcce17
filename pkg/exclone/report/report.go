package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ukaji3/exclone-go/pkg/exclone/models"
)

// DefaultCap is the maximum entry count of each detail section.
const DefaultCap = 50

// Section headers scraped by downstream tooling.
const (
	HeaderTitle       = "exclone build report"
	HeaderStatistics  = "== Statistics =="
	HeaderMappings    = "== Mappings =="
	HeaderPlans       = "== Replacement plans =="
	HeaderDiagnostics = "== Diagnostics =="
	HeaderCreated     = "== Created =="
	HeaderSkipped     = "== Skipped =="
	HeaderWhitelist   = "== Not in input whitelist =="
	HeaderTemplates   = "== Template errors by key =="
	HeaderErrors      = "== Errors =="
	HeaderMembers     = "== Members =="
)

// Report is everything rendered into one build report.
type Report struct {
	Workbook    string
	Sheet       string
	Status      string
	Mappings    []models.TemplateMapping
	Plans       []models.ReplacementPlan
	Diagnostics []string
	Stats       *Stats
	// Cap limits each detail section; zero means DefaultCap.
	Cap int
}

// Render produces the report lines.
func Render(r Report) []string {
	stats := r.Stats
	if stats == nil {
		stats = NewStats()
	}
	limit := r.Cap
	if limit <= 0 {
		limit = DefaultCap
	}
	status := r.Status
	if status == "" {
		status = "completed"
	}

	lines := []string{
		HeaderTitle,
		"Workbook: " + r.Workbook,
		"Sheet: " + r.Sheet,
		"Status: " + status,
		"",
		HeaderStatistics,
		"Structure pairs processed: " + strconv.Itoa(stats.Pairs),
		"Folders created: " + strconv.Itoa(stats.Folders),
		"Blocks created: " + strconv.Itoa(stats.Blocks),
		"Skipped: " + strconv.Itoa(stats.Skipped),
		"Skipped (not in input whitelist): " + strconv.Itoa(stats.WhitelistSkips),
		"Template errors (declared acceptable): " + strconv.Itoa(stats.TemplateErrors),
		"Errors: " + strconv.Itoa(stats.Errors),
		"Members added: " + strconv.Itoa(stats.MembersAdded),
		"Members migrated: " + strconv.Itoa(stats.MembersMigrated),
		"",
		HeaderMappings,
	}
	if len(r.Mappings) == 0 {
		lines = append(lines, "(none)")
	}
	for _, m := range r.Mappings {
		lines = append(lines, fmt.Sprintf("%s | %s -> %s", m.StructureKey, m.Source, strings.Join(m.Targets, ", ")))
	}

	lines = append(lines, "", HeaderPlans)
	if len(r.Plans) == 0 {
		lines = append(lines, "(none)")
	}
	for _, p := range r.Plans {
		lines = append(lines, fmt.Sprintf("%s [%s] allowed: %s", p.Key, p.MappingKey, strings.Join(p.AllowedLabels(), ", ")))
	}

	lines = appendSection(lines, HeaderDiagnostics, r.Diagnostics, limit)
	lines = appendSection(lines, HeaderCreated, stats.created, limit)
	lines = appendSection(lines, HeaderSkipped, stats.skips, limit)
	lines = appendSection(lines, HeaderWhitelist, stats.whitelist, limit)

	lines = append(lines, "", HeaderTemplates)
	if len(stats.templateKeys) == 0 {
		lines = append(lines, "(none)")
	}
	for _, key := range stats.templateKeys {
		items := stats.templates[key]
		lines = append(lines, fmt.Sprintf("[%s] (%d)", key, len(items)))
		lines = appendCapped(lines, items, limit, "  ")
	}

	lines = appendSection(lines, HeaderErrors, stats.errors, limit)
	lines = appendSection(lines, HeaderMembers, stats.members, limit)
	return lines
}

func appendSection(lines []string, header string, items []string, limit int) []string {
	lines = append(lines, "", header)
	if len(items) == 0 {
		return append(lines, "(none)")
	}
	return appendCapped(lines, items, limit, "")
}

func appendCapped(lines, items []string, limit int, indent string) []string {
	for i, item := range items {
		if i == limit {
			return append(lines, fmt.Sprintf("%s+%d more", indent, len(items)-limit))
		}
		lines = append(lines, indent+item)
	}
	return lines
}

// ResolvePath picks the report location: an explicit path wins, then dir,
// then the workbook's directory.
func ResolvePath(explicit, dir, workbook string, now time.Time) string {
	if explicit != "" {
		return explicit
	}
	name := "exclone_report_" + now.Format("20060102_150405") + ".txt"
	if dir != "" {
		return filepath.Join(dir, name)
	}
	if workbook != "" {
		return filepath.Join(filepath.Dir(workbook), name)
	}
	return filepath.Join(os.TempDir(), name)
}

// Write writes lines to path, falling back to the temp directory when that
// fails. The fallback report starts with the failure. It returns the path
// written and the error of the preferred location, if any.
func Write(path string, lines []string) (string, error) {
	err := writeLines(path, lines)
	if err == nil {
		return path, nil
	}
	fallback := filepath.Join(os.TempDir(), "exclone_fallback_"+filepath.Base(path))
	withCause := append([]string{fmt.Sprintf("report write failed for %s: %v", path, err)}, lines...)
	if ferr := writeLines(fallback, withCause); ferr != nil {
		return "", fmt.Errorf("write report: %w (fallback: %v)", err, ferr)
	}
	return fallback, err
}

func writeLines(path string, lines []string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}

// Failure is one failed item of the export-only workflow.
type Failure struct {
	Item    string
	Message string
}

// ErrorLogHeader is the first line of the export error log.
const ErrorLogHeader = "exclone export errors"

// NoErrorsLine is written when an export had no failures.
const NoErrorsLine = "no errors"

// WriteErrorLog writes the plain export error log.
func WriteErrorLog(path string, failures []Failure) (string, error) {
	lines := []string{ErrorLogHeader}
	if len(failures) == 0 {
		lines = append(lines, NoErrorsLine)
	}
	for _, f := range failures {
		lines = append(lines, f.Item+": "+f.Message)
	}
	return Write(path, lines)
}

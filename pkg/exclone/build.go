package exclone

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ukaji3/exclone-go/pkg/exclone/models"
	"github.com/ukaji3/exclone-go/pkg/exclone/patch"
	"github.com/ukaji3/exclone-go/pkg/exclone/replicate"
	"github.com/ukaji3/exclone-go/pkg/exclone/report"
	"github.com/ukaji3/exclone-go/pkg/exclone/repository"
	"github.com/ukaji3/exclone-go/pkg/exclone/sheet"
	"github.com/ukaji3/exclone-go/pkg/exclone/token"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Build runs the whole pipeline for one workbook against repo. A report is
// always written; a build that stops early returns an *AbortError carrying
// the report path.
func Build(workbook string, repo repository.Repository, opts Options) (*models.BuildResult, error) {
	return execute(workbook, repo, opts).finish(workbook, opts)
}

// Opener connects to the structure repository.
type Opener func() (repository.Repository, error)

// BuildOpen connects through open and runs Build. A connection failure is a
// build abort like any other: the report is written before it is returned.
func BuildOpen(workbook string, open Opener, opts Options) (*models.BuildResult, error) {
	return openAndExecute(workbook, open, opts).finish(workbook, opts)
}

func openAndExecute(workbook string, open Opener, opts Options) run {
	repo, err := open()
	if err != nil {
		return aborted(workbook, opts, fmt.Errorf("open repository: %w", err))
	}
	return execute(workbook, repo, opts)
}

// run is a finished pipeline whose report has not been written yet.
type run struct {
	result *models.BuildResult
	report report.Report
	err    error
}

func execute(workbook string, repo repository.Repository, opts Options) run {
	logger := opts.logger().With(zap.String("workbook", filepath.Base(workbook)))
	stats := report.NewStats()
	rep := report.Report{
		Workbook: filepath.Base(workbook),
		Stats:    stats,
		Cap:      opts.ReportCap,
	}
	result := &models.BuildResult{}

	err := runPipeline(workbook, repo, opts, logger, &rep, result)
	if err != nil {
		rep.Status = "aborted: " + report.Compact(err)
		logger.Error("build.aborted", zap.Error(err))
	}

	result.FoldersCreated = stats.Folders
	result.BlocksCreated = stats.Blocks
	result.MembersAdded = stats.MembersAdded + stats.MembersMigrated
	result.Skipped = stats.Skipped
	result.Errors = stats.Errors
	return run{result: result, report: rep, err: err}
}

// aborted is a run that failed before the pipeline started.
func aborted(workbook string, opts Options, err error) run {
	return run{
		result: &models.BuildResult{},
		report: report.Report{
			Workbook: filepath.Base(workbook),
			Status:   "aborted: " + report.Compact(err),
			Stats:    report.NewStats(),
			Cap:      opts.ReportCap,
		},
		err: err,
	}
}

// finish writes the report and returns the caller-facing result.
func (r run) finish(workbook string, opts Options) (*models.BuildResult, error) {
	logger := opts.logger()
	path := report.ResolvePath(opts.ReportPath, opts.ReportDir, workbook, time.Now())
	written, werr := report.Write(path, report.Render(r.report))
	if werr != nil {
		logger.Warn("build.report_fallback", zap.String("path", written), zap.Error(werr))
	}
	r.result.ReportPath = written

	if r.err != nil {
		return r.result, &AbortError{ReportPath: written, Err: r.err}
	}
	logger.Info("build.completed",
		zap.Int("blocks", r.result.BlocksCreated),
		zap.Int("folders", r.result.FoldersCreated),
		zap.Int("skipped", r.result.Skipped),
		zap.Int("errors", r.result.Errors),
		zap.String("report", written))
	return r.result, nil
}

func runPipeline(workbook string, repo repository.Repository, opts Options, logger *zap.Logger, rep *report.Report, result *models.BuildResult) error {
	f, err := excelize.OpenFile(workbook)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	read, err := sheet.ReadEntries(f, opts.Sheet, opts.Columns)
	if err != nil {
		return fmt.Errorf("read annotations: %w", err)
	}
	rep.Sheet = read.Sheet
	result.HighlightedEntries = read.Diagnostics.Highlighted

	mappings, grouping := sheet.GroupEntries(read.Entries)
	plans, unresolved := token.Plans(mappings)
	rep.Mappings = mappings
	rep.Plans = plans
	result.MatchedStructures = len(mappings)
	rep.Diagnostics = append(rep.Diagnostics, readDiagnostics(read.Diagnostics, grouping)...)
	for _, u := range unresolved {
		rep.Stats.Skip(report.SkipUnresolved, fmt.Sprintf("%s: %s -> %s", u.MappingKey, u.Source, u.Target))
	}
	logger.Info("build.mappings", zap.Int("mappings", len(mappings)), zap.Int("plans", len(plans)), zap.String("strategy", string(grouping.Strategy)))

	root, err := workingRoot(repo, opts.TargetGroup)
	if err != nil {
		return err
	}

	replicator := replicate.New(repo, replicate.Options{
		Whitelist:      opts.Whitelist,
		FallbackNumber: opts.FallbackNumber,
		TempDir:        opts.TempDir,
		Logger:         logger,
	})
	for _, plan := range plans {
		if err := replicator.Run(root, plan, rep.Stats); err != nil {
			return fmt.Errorf("replicate %s: %w", plan.Key, err)
		}
	}

	if err := injectMembers(f, read.Sheet, repo, root, opts, logger, rep); err != nil {
		return err
	}

	if err := repo.Save(); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

func workingRoot(repo repository.Repository, target string) (models.Group, error) {
	root, err := repo.Root()
	if err != nil {
		return models.Group{}, err
	}
	if strings.TrimSpace(target) == "" {
		return root, nil
	}
	g, ok, err := repository.ResolveGroup(repo, root, target)
	if err != nil {
		return models.Group{}, err
	}
	if !ok {
		return models.Group{}, fmt.Errorf("%w: %s", ErrTargetNotFound, target)
	}
	return g, nil
}

func injectMembers(f *excelize.File, sheetName string, repo repository.Repository, root models.Group, opts Options, logger *zap.Logger, rep *report.Report) error {
	mode := opts.MemberMode
	if mode == "" {
		mode = MembersAuto
	}
	if mode == MembersOff {
		return nil
	}

	entries, diag, err := sheet.ReadMembers(f, sheetName, opts.Members)
	if err != nil {
		if mode == MembersAuto && errors.Is(err, sheet.ErrHeaderMissing) {
			rep.Diagnostics = append(rep.Diagnostics, "Member pass: skipped ("+err.Error()+")")
			return nil
		}
		return fmt.Errorf("read member rows: %w", err)
	}
	rep.Diagnostics = append(rep.Diagnostics,
		fmt.Sprintf("Member rows (%s): %d", opts.Members.System, diag.SystemRows),
		fmt.Sprintf("Member rows not highlighted: %d", diag.NotHighlighted),
		fmt.Sprintf("Member rows with invalid connection type: %d", diag.InvalidType),
		fmt.Sprintf("Member rows with blank label: %d", diag.BlankLabel),
		fmt.Sprintf("Member rows duplicated: %d", diag.Duplicates),
	)

	var order []string
	batches := make(map[string][]models.MemberEntry)
	for _, e := range entries {
		if _, ok := batches[e.Record]; !ok {
			order = append(order, e.Record)
		}
		batches[e.Record] = append(batches[e.Record], e)
	}

	patcher := patch.New(repo, opts.Patch, opts.TempDir, logger)
	for _, record := range order {
		if err := patcher.Apply(root, record, batches[record], rep.Stats); err != nil {
			return fmt.Errorf("patch %s: %w", record, err)
		}
	}
	return nil
}

func readDiagnostics(d sheet.Diagnostics, g sheet.GroupDiagnostics) []string {
	lines := []string{
		fmt.Sprintf("Data rows: %d", d.Rows),
		fmt.Sprintf("Candidate rows: %d", d.Candidates),
		fmt.Sprintf("Dropped (blank label): %d", d.BlankLabel),
		fmt.Sprintf("Dropped (blank grouping): %d", d.BlankGroup),
		fmt.Sprintf("Highlighted rows: %d", d.Highlighted),
		fmt.Sprintf("Grouping strategy: %s", g.Strategy),
		fmt.Sprintf("Exact groups: %d", g.ExactGroups),
		fmt.Sprintf("Pattern groups: %d", g.PatternGroups),
		fmt.Sprintf("Groups without source: %d", g.NoSource),
		fmt.Sprintf("Groups without targets: %d", g.NoTargets),
		fmt.Sprintf("Targets equal to source: %d", g.DroppedSelf),
	}
	if len(d.SampledColors) > 0 {
		lines = append(lines, "Sampled colors: "+strings.Join(d.SampledColors, ", "))
	}
	return lines
}

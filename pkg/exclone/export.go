package exclone

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ukaji3/exclone-go/pkg/exclone/models"
	"github.com/ukaji3/exclone-go/pkg/exclone/report"
	"github.com/ukaji3/exclone-go/pkg/exclone/repository"
	"go.uber.org/zap"
)

// DefaultErrorLog is the export error log name inside the export directory.
const DefaultErrorLog = "export_errors.txt"

// ExportResult summarizes an export-only run.
type ExportResult struct {
	// Exported is the number of blocks written.
	Exported int
	// Failures lists blocks that could not be exported.
	Failures []report.Failure
	// LogPath is where the error log was written.
	LogPath string
}

// Export writes every block below the working root (opts.TargetGroup, if
// set) to dir, mirroring group paths as directories. Per-block failures are
// collected into the error log; losing the host stops the run after the log
// is written.
func Export(repo repository.Repository, dir string, opts Options) (*ExportResult, error) {
	logger := opts.logger()
	res := &ExportResult{}

	blocks, err := exportable(repo, opts.TargetGroup)
	if err != nil {
		return res, err
	}

	var abort error
	for _, bi := range blocks {
		item := repository.JoinPath(bi.Path, bi.Block.Name)
		target := filepath.Join(dir, filepath.FromSlash(item)+".xml")
		err := os.MkdirAll(filepath.Dir(target), 0o755)
		if err == nil {
			err = repo.Export(bi.Block, target)
		}
		if err != nil {
			res.Failures = append(res.Failures, report.Failure{Item: item, Message: report.Compact(err)})
			logger.Warn("export.failed", zap.String("block", item), zap.Error(err))
			if repository.IsHostUnavailable(err) {
				abort = err
				break
			}
			continue
		}
		res.Exported++
		logger.Debug("export.written", zap.String("block", item), zap.String("path", target))
	}

	logPath := opts.ReportPath
	if logPath == "" {
		logPath = filepath.Join(dir, DefaultErrorLog)
	}
	written, werr := report.WriteErrorLog(logPath, res.Failures)
	if werr != nil {
		logger.Warn("export.log_fallback", zap.String("path", written), zap.Error(werr))
	}
	res.LogPath = written

	if abort != nil {
		return res, &AbortError{ReportPath: written, Err: fmt.Errorf("export: %w", abort)}
	}
	logger.Info("export.completed", zap.Int("exported", res.Exported), zap.Int("failed", len(res.Failures)), zap.String("log", written))
	return res, nil
}

func exportable(repo repository.Repository, target string) ([]models.BlockInfo, error) {
	root, err := workingRoot(repo, target)
	if err != nil {
		return nil, err
	}
	_, blocks, err := repository.Walk(repo, root)
	return blocks, err
}

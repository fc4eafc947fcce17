package exclone

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/ukaji3/exclone-go/pkg/exclone/models"
	"github.com/ukaji3/exclone-go/pkg/exclone/procwatch"
	"github.com/ukaji3/exclone-go/pkg/exclone/report"
	"go.uber.org/zap"
)

// BuildWithDeadline runs Build on a background worker bounded by
// opts.Timeout. When the deadline passes first, a timeout report is written,
// host processes started during the attempt are terminated, and an
// *AbortError wrapping ErrTimedOut is returned. The worker is abandoned, not
// cancelled; changes it already saved are kept. Only the supervisor writes
// reports, so a late worker never overwrites the timeout report.
//
// open runs on the worker, so a host that hangs while attaching is covered by
// the deadline. A nil watcher falls back to a procwatch.HostWatcher for opts.HostProcess.
func BuildWithDeadline(workbook string, open Opener, opts Options, watcher procwatch.Watcher) (*models.BuildResult, error) {
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrBadTimeout, opts.Timeout)
	}
	logger := opts.logger()
	if watcher == nil {
		watcher = procwatch.HostWatcher{Name: opts.HostProcess}
	}

	before, err := watcher.Snapshot()
	if err != nil {
		logger.Warn("supervise.snapshot_failed", zap.Error(err))
		before = nil
	}

	done := make(chan run, 1)
	go func() {
		done <- openAndExecute(workbook, open, opts)
	}()

	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.finish(workbook, opts)
	case <-timer.C:
	}

	logger.Error("supervise.timed_out", zap.Duration("timeout", opts.Timeout))
	path := writeTimeoutReport(workbook, opts, logger)

	// Without a baseline every matching process would look new.
	if before != nil {
		if _, err := procwatch.TerminateNew(watcher, before, opts.KillWait, logger); err != nil {
			logger.Warn("supervise.sweep_failed", zap.Error(err))
		}
	}
	return &models.BuildResult{Errors: 1, ReportPath: path},
		&AbortError{ReportPath: path, Err: fmt.Errorf("%w after %s", ErrTimedOut, opts.Timeout)}
}

func writeTimeoutReport(workbook string, opts Options, logger *zap.Logger) string {
	stats := report.NewStats()
	stats.Error(fmt.Sprintf("timeout: build did not finish within %s", opts.Timeout))
	rep := report.Report{
		Workbook: filepath.Base(workbook),
		Status:   "timed out",
		Stats:    stats,
		Cap:      opts.ReportCap,
	}
	path := report.ResolvePath(opts.ReportPath, opts.ReportDir, workbook, time.Now())
	written, err := report.Write(path, report.Render(rep))
	if err != nil {
		logger.Warn("supervise.report_fallback", zap.String("path", written), zap.Error(err))
	}
	return written
}

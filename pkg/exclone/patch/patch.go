package patch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/ukaji3/exclone-go/pkg/exclone/models"
	"github.com/ukaji3/exclone-go/pkg/exclone/report"
	"github.com/ukaji3/exclone-go/pkg/exclone/repository"
	"go.uber.org/zap"
)

// ErrRecordLost indicates a record no longer resolves after re-import.
var ErrRecordLost = errors.New("record not found after re-import")

// Patcher applies member batches to records through a repository.
type Patcher struct {
	repo    repository.Repository
	cfg     Config
	tempDir string
	logger  *zap.Logger
}

// New creates a Patcher. An empty tempDir means os.TempDir().
func New(repo repository.Repository, cfg Config, tempDir string, logger *zap.Logger) *Patcher {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Patcher{repo: repo, cfg: cfg, tempDir: tempDir, logger: logger}
}

// Apply injects entries into the record named record below root. Per-record
// failures are recorded in stats; only host-unavailable failures are returned.
func (p *Patcher) Apply(root models.Group, record string, entries []models.MemberEntry, stats *report.Stats) error {
	log := p.logger.With(zap.String("record", record))
	key := "Record=" + record

	bi, found, err := repository.FindBlock(p.repo, root, record)
	if err != nil {
		return p.fail(key, record, err, stats)
	}
	if !found {
		stats.Skip(report.SkipRecordMissing, fmt.Sprintf("%s (%d members): not found", record, len(entries)))
		log.Info("patch.record_missing", zap.Int("members", len(entries)))
		return nil
	}

	exported := p.tempFile()
	defer os.Remove(exported)
	if err := p.repo.Export(bi.Block, exported); err != nil {
		if repository.IsHostUnavailable(err) {
			return err
		}
		stats.Skip(report.SkipRecordMissing, fmt.Sprintf("%s (%d members): %s", record, len(entries), report.Compact(err)))
		log.Info("patch.record_not_exportable", zap.Error(err))
		return nil
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromFile(exported); err != nil {
		return p.fail(key, record, fmt.Errorf("parse export of %s: %w", record, err), stats)
	}
	out, err := PatchDocument(doc, entries, p.cfg)
	if err != nil {
		return p.fail(key, record, fmt.Errorf("patch %s: %w", record, err), stats)
	}
	for _, e := range out.Skipped {
		stats.Skip(report.SkipMemberPresent, record+"."+e.Name)
	}
	if !out.Changed() {
		log.Debug("patch.no_changes")
		return nil
	}

	patched := p.tempFile()
	defer os.Remove(patched)
	doc.Indent(2)
	if err := doc.WriteToFile(patched); err != nil {
		return p.fail(key, record, fmt.Errorf("write patched %s: %w", record, err), stats)
	}
	if _, err := p.repo.Import(bi.Owner, patched, repository.ImportOverride); err != nil {
		return p.fail(key, record, fmt.Errorf("re-import %s: %w", record, err), stats)
	}
	if _, found, err := repository.FindBlock(p.repo, root, record); err != nil || !found {
		if err == nil {
			err = ErrRecordLost
		}
		return p.fail(key, record, fmt.Errorf("verify %s: %w", record, err), stats)
	}

	for _, e := range out.Added {
		stats.MemberAdded(fmt.Sprintf("%s.%s (%s)", record, e.Name, e.DataType))
	}
	for _, m := range out.Migrated {
		stats.MemberMigrated(fmt.Sprintf("%s.%s -> %s", record, m.From, m.To))
	}
	log.Info("patch.record_updated", zap.Int("added", len(out.Added)), zap.Int("migrated", len(out.Migrated)))
	return nil
}

func (p *Patcher) tempFile() string {
	return filepath.Join(p.tempDir, "exclone-"+uuid.NewString()+".xml")
}

func (p *Patcher) fail(key, record string, err error, stats *report.Stats) error {
	switch {
	case repository.IsHostUnavailable(err):
		p.logger.Error("patch.host_unavailable", zap.String("record", record), zap.Error(err))
		return err
	case repository.KindOf(err) == repository.KindInconsistent:
		stats.TemplateError(key, record+": "+report.Compact(err))
		p.logger.Info("patch.record_inconsistent", zap.String("record", record), zap.Error(err))
	default:
		stats.Error(record + ": " + report.Compact(err))
		p.logger.Warn("patch.record_failed", zap.String("record", record), zap.Error(err))
	}
	return nil
}

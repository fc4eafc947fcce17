// Package replicate clones the groups and blocks matching a replacement plan
// under the plan's target token.
package replicate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/ukaji3/exclone-go/pkg/exclone/models"
	"github.com/ukaji3/exclone-go/pkg/exclone/report"
	"github.com/ukaji3/exclone-go/pkg/exclone/repository"
	"github.com/ukaji3/exclone-go/pkg/exclone/token"
	"go.uber.org/zap"
)

// Options configures a Replicator.
type Options struct {
	// Whitelist decides which target names may be created. Nil means DefaultWhitelist.
	Whitelist Whitelist
	// FallbackNumber is used for instance records when no number can be derived.
	FallbackNumber int
	// TempDir holds transient export files. Empty means os.TempDir().
	TempDir string
	Logger  *zap.Logger
}

// Replicator clones structure through a repository, one call at a time.
type Replicator struct {
	repo      repository.Repository
	whitelist Whitelist
	fallback  int
	tempDir   string
	logger    *zap.Logger
}

// New creates a Replicator.
func New(repo repository.Repository, opts Options) *Replicator {
	r := &Replicator{
		repo:      repo,
		whitelist: opts.Whitelist,
		fallback:  opts.FallbackNumber,
		tempDir:   opts.TempDir,
		logger:    opts.Logger,
	}
	if r.whitelist == nil {
		r.whitelist = DefaultWhitelist()
	}
	if r.fallback <= 0 {
		r.fallback = 1
	}
	if r.tempDir == "" {
		r.tempDir = os.TempDir()
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

var dbNumberPattern = regexp.MustCompile(`(?i)DB(\d+)$`)

// Run applies one plan below root. Per-item failures are recorded in stats;
// only host-unavailable failures are returned.
func (r *Replicator) Run(root models.Group, plan models.ReplacementPlan, stats *report.Stats) error {
	stats.PairProcessed()
	log := r.logger.With(zap.String("plan", plan.Key))

	groups, blocks, err := repository.Walk(r.repo, root)
	if err != nil {
		return r.fail(plan, "walk "+root.Name, err, stats)
	}

	for _, g := range sourceGroups(groups, plan.SourceToken) {
		target := token.Replace(g.Path, plan.SourceToken, plan.TargetToken)
		if target == g.Path {
			continue
		}
		_, n, err := repository.EnsureGroup(r.repo, root, target)
		stats.FoldersCreated(n)
		if err != nil {
			if ferr := r.fail(plan, "group "+target, err, stats); ferr != nil {
				return ferr
			}
			continue
		}
		if n > 0 {
			log.Debug("replicate.group_created", zap.String("path", target), zap.Int("created", n))
		}
	}

	// Block names are unique across the repository, not only below root.
	existing, err := r.existingNames(root, blocks)
	if err != nil {
		return r.fail(plan, "walk repository", err, stats)
	}

	for _, bi := range cloneCandidates(blocks, plan.SourceToken) {
		if err := r.cloneOne(root, plan, bi, existing, stats); err != nil {
			return err
		}
	}
	return nil
}

func (r *Replicator) existingNames(root models.Group, blocks []models.BlockInfo) (map[string]bool, error) {
	top, err := r.repo.Root()
	if err != nil {
		return nil, err
	}
	if top.Ref != root.Ref {
		if _, blocks, err = repository.Walk(r.repo, top); err != nil {
			return nil, err
		}
	}
	existing := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		existing[strings.ToLower(b.Block.Name)] = true
	}
	return existing, nil
}

// sourceGroups keeps groups whose path contains the source token; Walk
// already orders them by depth.
func sourceGroups(groups []models.GroupInfo, src string) []models.GroupInfo {
	var out []models.GroupInfo
	for _, g := range groups {
		if token.Contains(g.Path, src) {
			out = append(out, g)
		}
	}
	return out
}

// cloneCandidates selects cloneable blocks related to src. Plain blocks come
// before instance records so a renamed type exists before its instances;
// names are alphabetical within each tier.
func cloneCandidates(blocks []models.BlockInfo, src string) []models.BlockInfo {
	var out []models.BlockInfo
	for _, b := range blocks {
		if b.Block.Kind != models.KindRoutine && b.Block.Kind != models.KindDataRecord {
			continue
		}
		if token.Contains(b.Block.Name, src) || token.Contains(b.Path, src) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ii, ji := out[i].Block.IsInstance(), out[j].Block.IsInstance()
		if ii != ji {
			return !ii
		}
		return strings.ToLower(out[i].Block.Name) < strings.ToLower(out[j].Block.Name)
	})
	return out
}

func (r *Replicator) cloneOne(root models.Group, plan models.ReplacementPlan, bi models.BlockInfo, existing map[string]bool, stats *report.Stats) error {
	b := bi.Block
	targetName := token.Replace(b.Name, plan.SourceToken, plan.TargetToken)
	targetPath := token.Replace(bi.Path, plan.SourceToken, plan.TargetToken)
	line := fmt.Sprintf("%s -> %s", repository.JoinPath(bi.Path, b.Name), repository.JoinPath(targetPath, targetName))

	if strings.EqualFold(targetName, b.Name) {
		return r.skip(stats, report.SkipNoOpRename, line)
	}
	if !r.whitelist.Allowed(targetName, b.Kind, plan) {
		return r.skip(stats, report.SkipNotWhitelisted, line)
	}
	if existing[strings.ToLower(targetName)] {
		return r.skip(stats, report.SkipAlreadyExists, line)
	}
	var typeName string
	if b.IsInstance() {
		typeName = token.Replace(b.InstanceOf, plan.SourceToken, plan.TargetToken)
		if !existing[strings.ToLower(typeName)] {
			return r.skip(stats, report.SkipMissingType, line+" (type "+typeName+")")
		}
	}

	group, n, err := repository.EnsureGroup(r.repo, root, targetPath)
	stats.FoldersCreated(n)
	if err != nil {
		return r.fail(plan, line, err, stats)
	}

	var created models.Block
	if b.IsInstance() {
		created, err = r.createInstance(group, b, targetName, typeName)
	} else {
		created, err = r.cloneByExport(group, b, plan, targetName)
	}
	if repository.KindOf(err) == repository.KindConflict {
		existing[strings.ToLower(targetName)] = true
		return r.skip(stats, report.SkipAlreadyExists, line)
	}
	if err != nil {
		return r.fail(plan, line, err, stats)
	}

	existing[strings.ToLower(created.Name)] = true
	stats.BlockCreated(line)
	r.logger.Debug("replicate.block_created", zap.String("plan", plan.Key), zap.String("block", created.Name))
	return nil
}

// cloneByExport round-trips the source block through a transient file with the
// token substituted across the whole document.
func (r *Replicator) cloneByExport(group models.Group, b models.Block, plan models.ReplacementPlan, targetName string) (models.Block, error) {
	tmp := filepath.Join(r.tempDir, "exclone-"+uuid.NewString()+".xml")
	defer os.Remove(tmp)

	if err := r.repo.Export(b, tmp); err != nil {
		return models.Block{}, fmt.Errorf("export %s: %w", b.Name, err)
	}
	data, err := os.ReadFile(tmp)
	if err != nil {
		return models.Block{}, fmt.Errorf("read export of %s: %w", b.Name, err)
	}
	content := token.Replace(string(data), plan.SourceToken, plan.TargetToken)
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return models.Block{}, fmt.Errorf("rewrite export of %s: %w", b.Name, err)
	}

	imported, err := r.repo.Import(group, tmp, repository.ImportFailOnConflict)
	if err != nil {
		return models.Block{}, fmt.Errorf("import %s: %w", targetName, err)
	}
	if len(imported) == 0 {
		return models.Block{}, fmt.Errorf("import %s: %w", targetName, errors.New("no block imported"))
	}
	created := imported[0]
	if !strings.EqualFold(created.Name, targetName) {
		created, err = r.repo.Rename(created, targetName)
		if err != nil {
			return models.Block{}, fmt.Errorf("rename %s to %s: %w", imported[0].Name, targetName, err)
		}
	}
	return created, nil
}

func (r *Replicator) createInstance(group models.Group, b models.Block, targetName, typeName string) (models.Block, error) {
	spec := repository.InstanceSpec{
		Name:     targetName,
		Mode:     repository.NumberManual,
		Number:   r.instanceNumber(b, targetName),
		TypeName: typeName,
	}
	created, err := r.repo.CreateInstance(group, spec)
	if repository.KindOf(err) == repository.KindRejected {
		r.logger.Debug("replicate.number_rejected", zap.String("block", targetName), zap.Int("number", spec.Number))
		spec.Mode = repository.NumberAutomatic
		spec.Number = 0
		created, err = r.repo.CreateInstance(group, spec)
	}
	if err != nil {
		return models.Block{}, fmt.Errorf("create instance %s of %s: %w", targetName, typeName, err)
	}
	return created, nil
}

func (r *Replicator) instanceNumber(b models.Block, targetName string) int {
	if b.Number > 0 {
		return b.Number
	}
	if m := dbNumberPattern.FindStringSubmatch(targetName); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	return r.fallback
}

func (r *Replicator) skip(stats *report.Stats, reason report.SkipReason, line string) error {
	stats.Skip(reason, line)
	r.logger.Debug("replicate.skip", zap.String("reason", string(reason)), zap.String("item", line))
	return nil
}

// fail classifies err: host loss aborts, declared-acceptable inconsistencies
// become template errors, everything else is a counted hard failure.
func (r *Replicator) fail(plan models.ReplacementPlan, line string, err error, stats *report.Stats) error {
	switch {
	case repository.IsHostUnavailable(err):
		r.logger.Error("replicate.host_unavailable", zap.String("item", line), zap.Error(err))
		return err
	case repository.KindOf(err) == repository.KindInconsistent:
		stats.TemplateError(plan.MappingKey, line+": "+report.Compact(err))
		r.logger.Info("replicate.template_inconsistent", zap.String("item", line), zap.Error(err))
	default:
		stats.Error(line + ": " + report.Compact(err))
		r.logger.Warn("replicate.clone_failed", zap.String("item", line), zap.Error(err))
	}
	return nil
}

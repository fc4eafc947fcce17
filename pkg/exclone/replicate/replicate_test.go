package replicate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukaji3/exclone-go/pkg/exclone/models"
	"github.com/ukaji3/exclone-go/pkg/exclone/report"
	"github.com/ukaji3/exclone-go/pkg/exclone/repository"
	"github.com/ukaji3/exclone-go/pkg/exclone/repository/fsrepo"
)

func plan(src, dst string, allowed ...string) models.ReplacementPlan {
	p := models.ReplacementPlan{
		Key:         models.PlanKey(src, dst),
		SourceToken: src,
		TargetToken: dst,
		MappingKey:  "Function=Pump",
		Allowed:     make(map[string]struct{}),
	}
	for _, a := range allowed {
		p.Allowed[a] = struct{}{}
	}
	return p
}

func seed(t *testing.T, r *fsrepo.Repo, root models.Group, path string, b models.Block, memberTypes ...string) {
	t.Helper()
	g, _, err := repository.EnsureGroup(r, root, path)
	require.NoError(t, err)
	doc := fsrepo.NewBlockDocument(b)
	section := fsrepo.BlockElement(doc).FindElement(".//Section")
	for i, dt := range memberTypes {
		m := section.CreateElement("Member")
		m.CreateAttr("Name", "m"+string(rune('a'+i)))
		m.CreateAttr("Datatype", dt)
	}
	_, err = r.Put(g, doc, repository.ImportFailOnConflict)
	require.NoError(t, err)
}

func newPlant(t *testing.T) (*fsrepo.Repo, models.Group) {
	t.Helper()
	r, err := fsrepo.Open(t.TempDir(), nil)
	require.NoError(t, err)
	root, err := r.Root()
	require.NoError(t, err)

	seed(t, r, root, "Pumps/PU1", models.Block{Name: "PU1-101", Kind: models.KindRoutine, Number: 10})
	seed(t, r, root, "Pumps/PU1", models.Block{Name: "PU1-101_DB", Kind: models.KindDataRecord, Number: 11, InstanceOf: "PU1-101"})
	seed(t, r, root, "Pumps/PU1", models.Block{Name: "PU1-101-AUX", Kind: models.KindDataRecord, Number: 12})
	seed(t, r, root, "Pumps/PU1", models.Block{Name: "PU1_Motor", Kind: models.KindRoutine, Number: 13})
	seed(t, r, root, "Valves", models.Block{Name: "XV1", Kind: models.KindRoutine, Number: 14})
	return r, root
}

func TestRunClonesAndIsIdempotent(t *testing.T) {
	r, root := newPlant(t)
	rep := New(r, Options{TempDir: t.TempDir()})
	p := plan("PU1", "PU3", "PU3-101")

	first := report.NewStats()
	require.NoError(t, rep.Run(root, p, first))
	assert.Equal(t, 1, first.Folders)
	assert.Equal(t, 3, first.Blocks)
	assert.Equal(t, 1, first.Skipped)
	assert.Equal(t, 1, first.WhitelistSkips)
	assert.Zero(t, first.Errors)

	inst, found, err := repository.FindBlock(r, root, "PU3-101_DB")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "PU3-101", inst.Block.InstanceOf)
	assert.Equal(t, "Pumps/PU3", inst.Path)
	assert.NotEqual(t, 11, inst.Block.Number, "manual number was taken, automatic numbering expected")

	second := report.NewStats()
	require.NoError(t, rep.Run(root, p, second))
	assert.Zero(t, second.Folders)
	assert.Zero(t, second.Blocks)
	assert.Zero(t, second.Errors)
	assert.Equal(t, 4, second.Skipped)
	for _, line := range second.SkipLines() {
		assert.Contains(t, line, string(report.SkipAlreadyExists))
	}
}

type instancesOnly struct{}

func (instancesOnly) Allowed(name string, kind models.BlockKind, _ models.ReplacementPlan) bool {
	return kind == models.KindDataRecord
}

func TestRunSkipsInstanceWithoutType(t *testing.T) {
	r, root := newPlant(t)
	rep := New(r, Options{Whitelist: instancesOnly{}, TempDir: t.TempDir()})

	stats := report.NewStats()
	require.NoError(t, rep.Run(root, plan("PU1", "PU3"), stats))

	_, found, err := repository.FindBlock(r, root, "PU3-101_DB")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, stats.Blocks, "only the plain record is cloned")
	var missing int
	for _, line := range stats.SkipLines() {
		if strings.HasPrefix(line, string(report.SkipMissingType)) {
			missing++
		}
	}
	assert.Equal(t, 1, missing)
}

func TestRunDowngradesInconsistentRecord(t *testing.T) {
	r, err := fsrepo.Open(t.TempDir(), nil)
	require.NoError(t, err)
	root, err := r.Root()
	require.NoError(t, err)
	seed(t, r, root, "", models.Block{Name: "PU1_UDT", Kind: models.KindOther})
	seed(t, r, root, "", models.Block{Name: "PU1-101", Kind: models.KindDataRecord}, `"PU1_UDT"`)

	stats := report.NewStats()
	require.NoError(t, New(r, Options{TempDir: t.TempDir()}).Run(root, plan("PU1", "PU3", "PU3-101"), stats))

	assert.Equal(t, 1, stats.TemplateErrors)
	assert.Zero(t, stats.Errors)
	assert.Zero(t, stats.Blocks)
}

type lostRepo struct {
	*fsrepo.Repo
}

func (lostRepo) Import(models.Group, string, repository.ImportMode) ([]models.Block, error) {
	return nil, repository.NewError(repository.KindConnectionLost, "import", "", assert.AnError)
}

type brokenRepo struct {
	*fsrepo.Repo
}

func (brokenRepo) Import(models.Group, string, repository.ImportMode) ([]models.Block, error) {
	return nil, repository.Classify("import", "", assert.AnError)
}

func TestRunFailureClassification(t *testing.T) {
	r, root := newPlant(t)

	err := New(lostRepo{r}, Options{TempDir: t.TempDir()}).Run(root, plan("PU1", "PU3", "PU3-101"), report.NewStats())
	assert.True(t, repository.IsHostUnavailable(err))

	stats := report.NewStats()
	require.NoError(t, New(brokenRepo{r}, Options{TempDir: t.TempDir()}).Run(root, plan("PU1", "PU3", "PU3-101"), stats))
	assert.Equal(t, 2, stats.Errors, "both plain clones fail")
	require.NotEmpty(t, stats.ErrorLines())
	assert.Contains(t, stats.ErrorLines()[0], "*repository.Error")
}

type conflictRepo struct {
	*fsrepo.Repo
}

func (conflictRepo) Import(models.Group, string, repository.ImportMode) ([]models.Block, error) {
	return nil, repository.NewError(repository.KindConflict, "import", "", assert.AnError)
}

func countSkips(stats *report.Stats, reason report.SkipReason) int {
	n := 0
	for _, line := range stats.SkipLines() {
		if strings.HasPrefix(line, string(reason)+":") {
			n++
		}
	}
	return n
}

func TestRunBelowTargetSeesWholeRepository(t *testing.T) {
	r, root := newPlant(t)
	seed(t, r, root, "Valves", models.Block{Name: "PU3-101", Kind: models.KindRoutine, Number: 30})
	pumps, ok, err := repository.ResolveGroup(r, root, "Pumps")
	require.NoError(t, err)
	require.True(t, ok)

	stats := report.NewStats()
	require.NoError(t, New(r, Options{TempDir: t.TempDir()}).Run(pumps, plan("PU1", "PU3", "PU3-101"), stats))

	assert.Zero(t, stats.Errors)
	assert.Equal(t, 1, countSkips(stats, report.SkipAlreadyExists))
	assert.Zero(t, countSkips(stats, report.SkipMissingType), "the type outside the working root still counts")
}

func TestRunTreatsImportConflictAsExisting(t *testing.T) {
	r, root := newPlant(t)

	stats := report.NewStats()
	require.NoError(t, New(conflictRepo{r}, Options{TempDir: t.TempDir()}).Run(root, plan("PU1", "PU3", "PU3-101"), stats))

	assert.Equal(t, 2, countSkips(stats, report.SkipAlreadyExists))
	for _, line := range stats.ErrorLines() {
		assert.NotContains(t, line, "import")
	}
}

func TestInstanceNumber(t *testing.T) {
	rep := New(nil, Options{FallbackNumber: 7})
	tests := []struct {
		block    models.Block
		target   string
		expected int
	}{
		{models.Block{Number: 11}, "PU3_DB42", 11},
		{models.Block{}, "PU3_db42", 42},
		{models.Block{}, "PU3_Data", 7},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, rep.instanceNumber(tt.block, tt.target), tt.target)
	}
}

func TestSuffixWhitelist(t *testing.T) {
	w := DefaultWhitelist()
	p := plan("PU1", "PU3", "PU3-101")
	tests := []struct {
		name     string
		kind     models.BlockKind
		expected bool
	}{
		{"PU3-101", models.KindRoutine, true},
		{"pu3-101", models.KindRoutine, true},
		{"PU3-101-AUX", models.KindDataRecord, true},
		{"PU3-102", models.KindRoutine, true},
		{"PU3", models.KindRoutine, true},
		{"PU3-101_DB", models.KindDataRecord, true},
		{"PU3_DB", models.KindDataRecord, true},
		{"PU3_DB", models.KindRoutine, false},
		{"PU4-101", models.KindRoutine, false},
		{"PU3_Motor", models.KindRoutine, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, w.Allowed(tt.name, tt.kind, p), tt.name)
	}
}

func TestSuffixWhitelistExactBase(t *testing.T) {
	w := DefaultWhitelist()
	w.ExactBase = true
	p := plan("PU1", "PU3", "PU3-101")
	tests := []struct {
		name     string
		kind     models.BlockKind
		expected bool
	}{
		{"PU3-101", models.KindRoutine, true},
		{"PU3", models.KindRoutine, true},
		{"PU3-101_DB", models.KindDataRecord, true},
		{"PU3_DB", models.KindDataRecord, true},
		{"PU3-102", models.KindRoutine, false},
		{"PU3-101-AUX", models.KindDataRecord, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, w.Allowed(tt.name, tt.kind, p), tt.name)
	}
}

func TestRunExactBaseSkipsSiblings(t *testing.T) {
	r, root := newPlant(t)
	seed(t, r, root, "Pumps/PU1", models.Block{Name: "PU1-102", Kind: models.KindRoutine, Number: 15})

	w := DefaultWhitelist()
	w.ExactBase = true
	rep := New(r, Options{Whitelist: w, TempDir: t.TempDir()})

	stats := report.NewStats()
	require.NoError(t, rep.Run(root, plan("PU1", "PU3", "PU3-101"), stats))

	_, found, err := repository.FindBlock(r, root, "PU3-102")
	require.NoError(t, err)
	assert.False(t, found, "PU3-102 was not highlighted")
	_, found, err = repository.FindBlock(r, root, "PU3-101")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, stats.WhitelistSkips, "PU3-102, PU3-101-AUX and PU3_Motor")
}

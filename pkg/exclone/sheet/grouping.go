package sheet

import (
	"strings"
	"unicode"

	"github.com/ukaji3/exclone-go/pkg/exclone/models"
)

// Strategy names the grouping key used to build mappings.
type Strategy string

const (
	StrategyExact   Strategy = "Function"
	StrategyPattern Strategy = "Pattern"
)

const (
	letterSentinel = 'A'
	digitSentinel  = '9'
)

// GroupDiagnostics counts per-stage drops while grouping.
type GroupDiagnostics struct {
	Strategy      Strategy
	ExactGroups   int
	PatternGroups int
	NoSource      int
	NoTargets     int
	DroppedSelf   int
}

// ExactKey builds the whitespace-normalized grouping key.
func ExactKey(value string) string {
	return string(StrategyExact) + "=" + strings.Join(strings.Fields(value), " ")
}

// PatternKey replaces letters and digits with fixed sentinels, keeping punctuation.
func PatternKey(value string) string {
	fields := strings.Fields(value)
	for i, field := range fields {
		fields[i] = strings.Map(func(r rune) rune {
			switch {
			case unicode.IsLetter(r):
				return letterSentinel
			case unicode.IsDigit(r):
				return digitSentinel
			}
			return r
		}, field)
	}
	return string(StrategyPattern) + "=" + strings.Join(fields, " ")
}

// GroupEntries clusters entries into template mappings.
// Exact keys are tried first; pattern keys are used only if exact grouping yields nothing.
func GroupEntries(entries []models.WorksheetEntry) ([]models.TemplateMapping, GroupDiagnostics) {
	var diag GroupDiagnostics

	mappings, exact := buildMappings(entries, ExactKey)
	diag.ExactGroups = exact.groups
	if len(mappings) > 0 {
		diag.Strategy = StrategyExact
		diag.NoSource, diag.NoTargets, diag.DroppedSelf = exact.noSource, exact.noTargets, exact.droppedSelf
		return mappings, diag
	}

	mappings, pattern := buildMappings(entries, PatternKey)
	diag.Strategy = StrategyPattern
	diag.PatternGroups = pattern.groups
	diag.NoSource, diag.NoTargets, diag.DroppedSelf = pattern.noSource, pattern.noTargets, pattern.droppedSelf
	return mappings, diag
}

type groupCounts struct {
	groups      int
	noSource    int
	noTargets   int
	droppedSelf int
}

func buildMappings(entries []models.WorksheetEntry, keyFn func(string) string) ([]models.TemplateMapping, groupCounts) {
	var order []string
	groups := make(map[string][]models.WorksheetEntry)
	for _, e := range entries {
		key := keyFn(e.StructureValue)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], e)
	}

	counts := groupCounts{groups: len(order)}
	var result []models.TemplateMapping
	for _, key := range order {
		var source string
		var highlighted []string
		for _, e := range groups[key] {
			if e.IsHighlighted {
				highlighted = append(highlighted, e.Value)
			} else if source == "" {
				source = e.Value
			}
		}
		if source == "" {
			counts.noSource++
			continue
		}

		var targets []string
		seen := make(map[string]bool)
		for _, label := range highlighted {
			if strings.EqualFold(label, source) {
				counts.droppedSelf++
				continue
			}
			if seen[strings.ToLower(label)] {
				continue
			}
			seen[strings.ToLower(label)] = true
			targets = append(targets, label)
		}
		if len(targets) == 0 {
			counts.noTargets++
			continue
		}

		result = append(result, models.TemplateMapping{
			StructureKey: key,
			Source:       source,
			Targets:      targets,
		})
	}
	return result, counts
}

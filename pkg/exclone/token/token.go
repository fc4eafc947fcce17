// Package token derives structural token substitutions between labels.
package token

import (
	"regexp"
	"strings"

	"github.com/ukaji3/exclone-go/pkg/exclone/models"
)

var tokenPattern = regexp.MustCompile(`[A-Za-z]+[0-9]+`)

// Tokenize returns the letters-then-digits runs of a label, deduplicated
// case-insensitively, in order of first appearance.
func Tokenize(label string) []models.StructureToken {
	var tokens []models.StructureToken
	seen := make(map[string]bool)
	for _, raw := range tokenPattern.FindAllString(label, -1) {
		key := strings.ToLower(raw)
		if seen[key] {
			continue
		}
		seen[key] = true
		split := strings.IndexAny(raw, "0123456789")
		tokens = append(tokens, models.StructureToken{
			Raw:    raw,
			Prefix: raw[:split],
			Digits: raw[split:],
		})
	}
	return tokens
}

// Substitutable reports whether src may be replaced by dst: same prefix
// (case-insensitive), same digit width, different value ignoring case.
func Substitutable(src, dst models.StructureToken) bool {
	return strings.EqualFold(src.Prefix, dst.Prefix) &&
		len(src.Digits) == len(dst.Digits) &&
		!strings.EqualFold(src.Raw, dst.Raw)
}

// Resolve finds the first substitutable token pair between source and target labels.
func Resolve(source, target string) (src, dst models.StructureToken, ok bool) {
	targets := Tokenize(target)
	for _, s := range Tokenize(source) {
		for _, t := range targets {
			if Substitutable(s, t) {
				return s, t, true
			}
		}
	}
	return models.StructureToken{}, models.StructureToken{}, false
}

// Unresolved records a label pair for which no substitution exists.
type Unresolved struct {
	MappingKey string
	Source     string
	Target     string
}

// Plans resolves every mapping target into replacement plans, deduplicated by
// token pair with their allowed label sets unioned. Plans keep first-seen order.
func Plans(mappings []models.TemplateMapping) ([]models.ReplacementPlan, []Unresolved) {
	var plans []models.ReplacementPlan
	index := make(map[string]int)
	var unresolved []Unresolved

	for _, m := range mappings {
		for _, target := range m.Targets {
			s, d, ok := Resolve(m.Source, target)
			if !ok {
				unresolved = append(unresolved, Unresolved{MappingKey: m.StructureKey, Source: m.Source, Target: target})
				continue
			}
			key := models.PlanKey(s.Raw, d.Raw)
			if i, ok := index[key]; ok {
				plans[i].Allowed[target] = struct{}{}
				continue
			}
			index[key] = len(plans)
			plans = append(plans, models.ReplacementPlan{
				Key:         key,
				SourceToken: s.Raw,
				TargetToken: d.Raw,
				MappingKey:  m.StructureKey,
				Allowed:     map[string]struct{}{target: {}},
			})
		}
	}
	return plans, unresolved
}

// Replace substitutes every case-insensitive occurrence of from with to.
func Replace(s, from, to string) string {
	if from == "" {
		return s
	}
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(from))
	return re.ReplaceAllLiteralString(s, to)
}

// Contains reports whether s contains sub, ignoring case.
func Contains(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

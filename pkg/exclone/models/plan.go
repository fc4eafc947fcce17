package models

import "sort"

// StructureToken is a letters-then-digits run inside a label (e.g., "PU1").
type StructureToken struct {
	// Raw is the token as it appears in the label.
	Raw string `json:"raw"`
	// Prefix is the alphabetic part.
	Prefix string `json:"prefix"`
	// Digits is the numeric suffix, zero padding preserved.
	Digits string `json:"digits"`
}

// ReplacementPlan is one deduplicated source-to-target token substitution.
type ReplacementPlan struct {
	// Key is "source→target".
	Key string `json:"key"`
	// SourceToken is replaced in names and paths.
	SourceToken string `json:"source_token"`
	// TargetToken replaces SourceToken.
	TargetToken string `json:"target_token"`
	// MappingKey is the structure key of the first mapping that produced the plan.
	MappingKey string `json:"mapping_key"`
	// Allowed is the set of target labels that may be created under this plan.
	Allowed map[string]struct{} `json:"-"`
}

// AllowedLabels returns the allowed labels in sorted order.
func (p ReplacementPlan) AllowedLabels() []string {
	out := make([]string, 0, len(p.Allowed))
	for label := range p.Allowed {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// PlanKey builds the replacement key for a token pair.
func PlanKey(source, target string) string {
	return source + "→" + target
}

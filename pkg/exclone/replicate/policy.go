package replicate

import (
	"strings"

	"github.com/ukaji3/exclone-go/pkg/exclone/models"
)

// Whitelist decides whether a computed target name may be created under a plan.
type Whitelist interface {
	Allowed(name string, kind models.BlockKind, plan models.ReplacementPlan) bool
}

// SuffixWhitelist accepts a name that equals an allowed label or its base, or
// whose own base equals an allowed label or an allowed label's base. A base is
// the text before the last Separator. Data records ending in RecordSuffix are
// checked with the suffix removed.
//
// With ExactBase set only the first two forms are accepted, so siblings of a
// highlighted label (PU3-102 next to PU3-101) are not created.
type SuffixWhitelist struct {
	Separator    string `yaml:"separator"`
	RecordSuffix string `yaml:"record_suffix"`
	ExactBase    bool   `yaml:"exact_base"`
}

// DefaultWhitelist returns the hyphen-base policy with the "_DB" record suffix.
func DefaultWhitelist() SuffixWhitelist {
	return SuffixWhitelist{Separator: "-", RecordSuffix: "_DB"}
}

func (w SuffixWhitelist) Allowed(name string, kind models.BlockKind, plan models.ReplacementPlan) bool {
	if w.matches(name, plan) {
		return true
	}
	if kind == models.KindDataRecord && w.RecordSuffix != "" &&
		len(name) > len(w.RecordSuffix) &&
		strings.EqualFold(name[len(name)-len(w.RecordSuffix):], w.RecordSuffix) {
		return w.matches(name[:len(name)-len(w.RecordSuffix)], plan)
	}
	return false
}

func (w SuffixWhitelist) matches(name string, plan models.ReplacementPlan) bool {
	nameBase, hasBase := w.base(name)
	if w.ExactBase {
		hasBase = false
	}
	for label := range plan.Allowed {
		if strings.EqualFold(name, label) || (hasBase && strings.EqualFold(nameBase, label)) {
			return true
		}
		labelBase, ok := w.base(label)
		if !ok {
			continue
		}
		if strings.EqualFold(name, labelBase) || (hasBase && strings.EqualFold(nameBase, labelBase)) {
			return true
		}
	}
	return false
}

func (w SuffixWhitelist) base(s string) (string, bool) {
	if w.Separator == "" {
		return "", false
	}
	i := strings.LastIndex(s, w.Separator)
	if i <= 0 {
		return "", false
	}
	return s[:i], true
}

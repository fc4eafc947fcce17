// Package patch injects members into exported data-record documents and
// re-imports them over the original record.
package patch

import (
	"errors"
	"strings"
	"unicode"

	"github.com/beevik/etree"
	"github.com/ukaji3/exclone-go/pkg/exclone/models"
)

// ErrNoSection indicates the document has no member-list section.
var ErrNoSection = errors.New("no member section in document")

const (
	tagSection = "Section"
	tagMember  = "Member"
	tagComment = "Comment"
	tagText    = "MultiLanguageText"
	attrName   = "Name"
	attrType   = "Datatype"
	structType = "Struct"
)

// identityAttrs are stripped from cloned template members.
var identityAttrs = []string{"ID", "Id", "UId", "Uid", "Guid"}

// Bucket names the struct member that collects members of one data type.
type Bucket struct {
	DataType string `yaml:"data_type"`
	Name     string `yaml:"name"`
}

// Config controls document edits.
type Config struct {
	// Section is the preferred member section name; the first section is used otherwise.
	Section string   `yaml:"section"`
	Buckets []Bucket `yaml:"buckets"`
	// Legacy maps a member name to the legacy spelling to migrate from.
	// Nil means LegacyName.
	Legacy func(string) string `yaml:"-"`
}

// DefaultConfig returns the static-section, Digital/Analog bucket layout.
func DefaultConfig() Config {
	return Config{
		Section: "Static",
		Buckets: []Bucket{
			{DataType: "Bool", Name: "Digital"},
			{DataType: "Int", Name: "Analog"},
		},
	}
}

// Migration is a legacy member renamed in place.
type Migration struct {
	From string
	To   string
}

// Outcome reports what PatchDocument did.
type Outcome struct {
	Added    []models.MemberEntry
	Migrated []Migration
	Skipped  []models.MemberEntry
}

// Changed reports whether the document needs to be written back.
func (o Outcome) Changed() bool {
	return len(o.Added) > 0 || len(o.Migrated) > 0
}

// LegacyName collapses non-alphanumeric runs to '_' and guards a leading digit.
func LegacyName(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := b.String()
	if out != "" && unicode.IsDigit(rune(out[0])) {
		out = "_" + out
	}
	return out
}

// PatchDocument adds or migrates members of one record document in place.
func PatchDocument(doc *etree.Document, entries []models.MemberEntry, cfg Config) (Outcome, error) {
	var out Outcome
	section := findSection(doc, cfg.Section)
	if section == nil {
		return out, ErrNoSection
	}
	legacy := cfg.Legacy
	if legacy == nil {
		legacy = LegacyName
	}

	buckets := make(map[string]*etree.Element)
	for _, b := range cfg.Buckets {
		for _, m := range section.SelectElements(tagMember) {
			if strings.EqualFold(m.SelectAttrValue(attrName, ""), b.Name) {
				buckets[strings.ToLower(b.DataType)] = m
				break
			}
		}
	}

	names := make(map[string]*etree.Element)
	for _, m := range section.FindElements(".//" + tagMember) {
		key := strings.ToLower(m.SelectAttrValue(attrName, ""))
		if _, dup := names[key]; !dup {
			names[key] = m
		}
	}

	for _, e := range entries {
		exact := names[strings.ToLower(e.Name)]
		old := legacy(e.Name)
		if exact == nil && !strings.EqualFold(old, e.Name) {
			if prev := names[strings.ToLower(old)]; prev != nil {
				prev.CreateAttr(attrName, e.Name)
				delete(names, strings.ToLower(old))
				names[strings.ToLower(e.Name)] = prev
				out.Migrated = append(out.Migrated, Migration{From: old, To: e.Name})
				continue
			}
		}
		if exact != nil {
			out.Skipped = append(out.Skipped, e)
			continue
		}

		bucket := buckets[strings.ToLower(e.DataType)]
		member := newMember(template(section, bucket, e.DataType), e)
		if bucket != nil {
			bucket.AddChild(member)
		} else {
			section.AddChild(member)
		}
		names[strings.ToLower(e.Name)] = member
		out.Added = append(out.Added, e)
	}
	return out, nil
}

func findSection(doc *etree.Document, name string) *etree.Element {
	sections := doc.FindElements("//" + tagSection)
	if len(sections) == 0 {
		return nil
	}
	for _, s := range sections {
		if strings.EqualFold(s.SelectAttrValue(attrName, ""), name) {
			return s
		}
	}
	return sections[0]
}

func isScalar(m *etree.Element) bool {
	return len(m.SelectElements(tagMember)) == 0 &&
		!strings.EqualFold(m.SelectAttrValue(attrType, ""), structType)
}

// template picks the member to clone: a scalar inside the bucket, then a
// same-type scalar anywhere, then any scalar.
func template(section, bucket *etree.Element, dataType string) *etree.Element {
	if bucket != nil {
		for _, m := range bucket.FindElements(".//" + tagMember) {
			if isScalar(m) {
				return m
			}
		}
	}
	var first *etree.Element
	for _, m := range section.FindElements(".//" + tagMember) {
		if !isScalar(m) {
			continue
		}
		if strings.EqualFold(m.SelectAttrValue(attrType, ""), dataType) {
			return m
		}
		if first == nil {
			first = m
		}
	}
	return first
}

// newMember clones tmpl (or builds a bare member) and applies e.
func newMember(tmpl *etree.Element, e models.MemberEntry) *etree.Element {
	var m *etree.Element
	if tmpl != nil {
		m = tmpl.Copy()
	} else {
		m = etree.NewElement(tagMember)
	}
	for _, a := range identityAttrs {
		m.RemoveAttr(a)
	}
	for _, child := range m.SelectElements(tagMember) {
		m.RemoveChild(child)
	}

	m.CreateAttr(attrName, e.Name)
	m.CreateAttr(attrType, e.DataType)
	setComment(m, e.Comment)
	return m
}

func setComment(m *etree.Element, text string) {
	comment := m.SelectElement(tagComment)
	if text == "" {
		if comment != nil {
			m.RemoveChild(comment)
		}
		return
	}
	if comment == nil {
		comment = m.CreateElement(tagComment)
	}
	if texts := comment.SelectElements(tagText); len(texts) > 0 {
		texts[0].SetText(text)
		for _, extra := range texts[1:] {
			comment.RemoveChild(extra)
		}
		return
	}
	comment.SetText(text)
}

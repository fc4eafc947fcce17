// Package report accumulates build events and renders the line-oriented
// build report and export error log.
package report

// SkipReason names a precondition skip.
type SkipReason string

const (
	SkipNoOpRename     SkipReason = "no-op rename"
	SkipNotWhitelisted SkipReason = "not in input whitelist"
	SkipAlreadyExists  SkipReason = "already exists"
	SkipMissingType    SkipReason = "dependent type missing"
	SkipMemberPresent  SkipReason = "member already present"
	SkipUnresolved     SkipReason = "no token substitution"
	SkipRecordMissing  SkipReason = "record not exportable"
)

// Stats is the build-wide event accumulator. It is not safe for concurrent use;
// the pipeline is sequential.
type Stats struct {
	Pairs           int
	Folders         int
	Blocks          int
	Skipped         int
	WhitelistSkips  int
	TemplateErrors  int
	Errors          int
	MembersAdded    int
	MembersMigrated int

	created   []string
	skips     []string
	whitelist []string
	members   []string
	errors    []string

	templateKeys []string
	templates    map[string][]string
}

// NewStats returns an empty accumulator.
func NewStats() *Stats {
	return &Stats{templates: make(map[string][]string)}
}

// PairProcessed counts one replacement plan run.
func (s *Stats) PairProcessed() {
	s.Pairs++
}

// FoldersCreated counts created groups.
func (s *Stats) FoldersCreated(n int) {
	s.Folders += n
}

// BlockCreated records a created block.
func (s *Stats) BlockCreated(line string) {
	s.Blocks++
	s.created = append(s.created, line)
}

// Skip records a precondition skip.
func (s *Stats) Skip(reason SkipReason, line string) {
	s.Skipped++
	entry := string(reason) + ": " + line
	if reason == SkipNotWhitelisted {
		s.WhitelistSkips++
		s.whitelist = append(s.whitelist, line)
		return
	}
	s.skips = append(s.skips, entry)
}

// TemplateError records a declared-acceptable failure under its grouping key.
func (s *Stats) TemplateError(key, line string) {
	s.TemplateErrors++
	if s.templates == nil {
		s.templates = make(map[string][]string)
	}
	if _, ok := s.templates[key]; !ok {
		s.templateKeys = append(s.templateKeys, key)
	}
	s.templates[key] = append(s.templates[key], line)
}

// Error records a hard failure.
func (s *Stats) Error(line string) {
	s.Errors++
	s.errors = append(s.errors, line)
}

// MemberAdded records an injected member.
func (s *Stats) MemberAdded(line string) {
	s.MembersAdded++
	s.members = append(s.members, "added: "+line)
}

// MemberMigrated records a legacy member renamed in place.
func (s *Stats) MemberMigrated(line string) {
	s.MembersMigrated++
	s.members = append(s.members, "migrated: "+line)
}

// ErrorLines returns the recorded hard failures.
func (s *Stats) ErrorLines() []string {
	return append([]string(nil), s.errors...)
}

// SkipLines returns the recorded non-whitelist skips.
func (s *Stats) SkipLines() []string {
	return append([]string(nil), s.skips...)
}

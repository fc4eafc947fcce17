// Package repository defines the Structure Repository contract the build
// pipeline calls into. Every operation is synchronous and edits whole objects
// through export/import; there are no partial edits.
package repository

import "github.com/ukaji3/exclone-go/pkg/exclone/models"

// ImportMode selects conflict handling on import.
type ImportMode int

const (
	// ImportFailOnConflict fails if a block with the same name already exists.
	ImportFailOnConflict ImportMode = iota
	// ImportOverride replaces an existing block with the same name.
	ImportOverride
)

func (m ImportMode) String() string {
	if m == ImportOverride {
		return "override"
	}
	return "fail-on-conflict"
}

// NumberMode selects how an instance record gets its number.
type NumberMode int

const (
	NumberManual NumberMode = iota
	NumberAutomatic
)

func (m NumberMode) String() string {
	if m == NumberAutomatic {
		return "automatic"
	}
	return "manual"
}

// InstanceSpec describes a type-bound instance record to create.
type InstanceSpec struct {
	Name     string
	Mode     NumberMode
	Number   int
	TypeName string
}

// Repository is the host-side structure store.
type Repository interface {
	// Root returns the top group of the program structure.
	Root() (models.Group, error)
	// Groups lists the direct child groups of parent.
	Groups(parent models.Group) ([]models.Group, error)
	// Blocks lists the blocks held directly by parent.
	Blocks(parent models.Group) ([]models.Block, error)
	// FindGroup looks up a direct child group by name.
	FindGroup(parent models.Group, name string) (models.Group, bool, error)
	// CreateGroup creates a direct child group.
	CreateGroup(parent models.Group, name string) (models.Group, error)
	// Export writes the structured representation of b to path.
	Export(b models.Block, path string) error
	// Import loads the structured representation at path into parent.
	Import(parent models.Group, path string, mode ImportMode) ([]models.Block, error)
	// CreateInstance creates an instance record bound to spec.TypeName.
	CreateInstance(parent models.Group, spec InstanceSpec) (models.Block, error)
	// Rename renames b and returns the updated block.
	Rename(b models.Block, name string) (models.Block, error)
	// Save persists accumulated changes.
	Save() error
}

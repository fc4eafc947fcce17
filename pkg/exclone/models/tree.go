package models

// BlockKind classifies a block in the structure tree.
type BlockKind string

const (
	// KindRoutine is an executable block (function or function block).
	KindRoutine BlockKind = "routine"
	// KindDataRecord is a block composed of typed members.
	KindDataRecord BlockKind = "record"
	// KindOther is any other element kind; never cloned.
	KindOther BlockKind = "other"
)

// Group is a named container node as seen through the repository.
type Group struct {
	// Name is the group name.
	Name string `json:"name"`
	// Ref is the repository handle for the group.
	Ref string `json:"ref"`
}

// Block is a leaf structural unit as seen through the repository.
type Block struct {
	// Name is the block name.
	Name string `json:"name"`
	// Kind is the block kind.
	Kind BlockKind `json:"kind"`
	// Number is the block number (0 if unknown).
	Number int `json:"number"`
	// InstanceOf names the type block an instance record is bound to.
	InstanceOf string `json:"instance_of,omitempty"`
	// Ref is the repository handle for the block.
	Ref string `json:"ref"`
}

// IsInstance reports whether the block is a type-bound instance record.
func (b Block) IsInstance() bool {
	return b.Kind == KindDataRecord && b.InstanceOf != ""
}

// GroupInfo is a tree-walk result for a group.
type GroupInfo struct {
	Group Group  `json:"group"`
	Path  string `json:"path"`
	Depth int    `json:"depth"`
}

// BlockInfo is a tree-walk result for a block.
type BlockInfo struct {
	Block Block `json:"block"`
	// Owner is the owning group.
	Owner Group `json:"owner"`
	// Path is the slash-joined path of the owning group.
	Path string `json:"path"`
}

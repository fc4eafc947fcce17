package repository

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// Kind tags a repository failure. Adapters assign kinds at the boundary so the
// pipeline never inspects message text.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConnectionLost means the host session is gone.
	KindConnectionLost
	// KindObjectInvalid means a handle no longer refers to a live object.
	KindObjectInvalid
	// KindInconsistent is a record/member type inconsistency reported by the host.
	KindInconsistent
	// KindConflict means the name is already taken.
	KindConflict
	// KindRejected means the host refused the requested parameters.
	KindRejected
	// KindNotFound means a referenced object does not exist.
	KindNotFound
)

var kindNames = map[Kind]string{
	KindUnknown:        "unknown",
	KindConnectionLost: "connection lost",
	KindObjectInvalid:  "object invalid",
	KindInconsistent:   "inconsistent",
	KindConflict:       "conflict",
	KindRejected:       "rejected",
	KindNotFound:       "not found",
}

func (k Kind) String() string {
	return kindNames[k]
}

// Error is a classified repository failure.
type Error struct {
	Kind Kind
	Op   string
	Name string
	Err  error
}

func (e *Error) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %q: %s: %v", e.Op, e.Name, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error.
func NewError(kind Kind, op, name string, err error) *Error {
	return &Error{Kind: kind, Op: op, Name: name, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}

// IsHostUnavailable reports whether err means the host can no longer be used.
func IsHostUnavailable(err error) bool {
	k := KindOf(err)
	return k == KindConnectionLost || k == KindObjectInvalid
}

// inconsistencyMarker is the only message text ever matched; hosts report the
// record/member type mismatch without a dedicated error code.
const inconsistencyMarker = "inconsistent"

// Classify wraps a raw host error into an *Error. Already classified errors
// are returned unchanged.
func Classify(op, name string, err error) error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return err
	}
	kind := KindUnknown
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = KindNotFound
	case errors.Is(err, fs.ErrExist):
		kind = KindConflict
	case strings.Contains(strings.ToLower(err.Error()), inconsistencyMarker):
		kind = KindInconsistent
	}
	return NewError(kind, op, name, err)
}

package exclone

import (
	"errors"
	"fmt"

	"github.com/ukaji3/exclone-go/pkg/exclone/repository"
)

// ErrTimedOut indicates the bounded-time build hit its deadline.
var ErrTimedOut = errors.New("build timed out")

// ErrBadTimeout indicates an invalid timeout value.
var ErrBadTimeout = errors.New("invalid timeout")

// ErrTargetNotFound indicates the selected target group does not exist.
var ErrTargetNotFound = errors.New("target group not found")

// Category is the outcome class surfaced to the command-line layer.
type Category int

const (
	CategorySuccess Category = iota
	CategoryConnectionLost
	CategoryObjectInvalid
	CategoryFailure
	CategoryBadTimeout
	CategoryTimedOut
)

func (c Category) String() string {
	switch c {
	case CategorySuccess:
		return "success"
	case CategoryConnectionLost:
		return "connection lost"
	case CategoryObjectInvalid:
		return "object invalid"
	case CategoryBadTimeout:
		return "bad timeout"
	case CategoryTimedOut:
		return "timed out"
	}
	return "failure"
}

// CategoryOf classifies err.
func CategoryOf(err error) Category {
	switch {
	case err == nil:
		return CategorySuccess
	case errors.Is(err, ErrTimedOut):
		return CategoryTimedOut
	case errors.Is(err, ErrBadTimeout):
		return CategoryBadTimeout
	}
	switch repository.KindOf(err) {
	case repository.KindConnectionLost:
		return CategoryConnectionLost
	case repository.KindObjectInvalid:
		return CategoryObjectInvalid
	}
	return CategoryFailure
}

// AbortError is returned when a build stops outside its per-item loops.
// The report has been written to ReportPath.
type AbortError struct {
	ReportPath string
	Err        error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("build aborted (report: %s): %v", e.ReportPath, e.Err)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

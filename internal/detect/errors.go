package detect

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures.
type Kind string

const (
	// DecodeError means the media could not be read; the request is aborted.
	DecodeError Kind = "DecodeError"
	// ScorerError means a model call failed; the request is aborted.
	ScorerError Kind = "ScorerError"
	// AttributionError means an explanation could not be built; the verdict stands.
	AttributionError Kind = "AttributionError"
	// VisualizationError means face boxes or image encoding failed; the verdict stands.
	VisualizationError Kind = "VisualizationError"
	// InternalError covers recovered panics.
	InternalError Kind = "InternalError"
)

// Error is returned by every pipeline operation. Message is what the caller sees.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

func errorf(kind Kind, format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

package tools

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies dispatch errors.
type Kind string

const (
	KindUnknownTool         Kind = "unknown_tool"
	KindMissingArgument     Kind = "missing_argument"
	KindInvalidArgument     Kind = "invalid_argument"
	KindConflict            Kind = "conflict"
	KindCollaboratorFailure Kind = "collaborator_failure"
)

var (
	ErrUnknownTool         = errors.New("unknown tool")
	ErrMissingArgument     = errors.New("missing required argument")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrConflict            = errors.New("tool already registered")
	ErrCollaboratorFailure = errors.New("collaborator failure")
)

var sentinels = map[Kind]error{
	KindUnknownTool:         ErrUnknownTool,
	KindMissingArgument:     ErrMissingArgument,
	KindInvalidArgument:     ErrInvalidArgument,
	KindConflict:            ErrConflict,
	KindCollaboratorFailure: ErrCollaboratorFailure,
}

// Error is a classified tool error.
type Error struct {
	Kind        Kind
	Tool        string
	Field       string
	Suggestions []string // Close tool names, for KindUnknownTool
	Err         error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindUnknownTool:
		msg = fmt.Sprintf("unknown tool: %s", e.Tool)
		if len(e.Suggestions) > 0 {
			msg += fmt.Sprintf(" (did you mean: %s?)", strings.Join(e.Suggestions, ", "))
		}
	case KindMissingArgument:
		msg = fmt.Sprintf("missing required argument %q", e.Field)
		if e.Tool != "" {
			msg += " for tool " + e.Tool
		}
	case KindInvalidArgument:
		msg = fmt.Sprintf("invalid argument %q", e.Field)
	case KindConflict:
		msg = fmt.Sprintf("tool %s already registered", e.Tool)
	default:
		msg = string(e.Kind)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	sentinel, ok := sentinels[e.Kind]
	return ok && target == sentinel
}

// KindOf returns the kind of err, or CollaboratorFailure for unclassified errors.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindCollaboratorFailure
}

// IsContractViolation reports whether err must be surfaced as a rejected call
// instead of result content.
func IsContractViolation(err error) bool {
	return errors.Is(err, ErrUnknownTool) || errors.Is(err, ErrMissingArgument)
}

func invalidArgument(field string, err error) error {
	return &Error{Kind: KindInvalidArgument, Field: field, Err: err}
}

// InvalidArgument reports a malformed argument value. Handlers return it for
// input the caller can correct; it is rendered as result content.
func InvalidArgument(field, format string, args ...any) error {
	return invalidArgument(field, fmt.Errorf(format, args...))
}

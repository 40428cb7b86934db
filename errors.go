package softwareindex

import (
	"errors"
	"strings"
)

// Error is the error domain type.
//
// Errors coming from indexer components should be able to be inspected as
// ([errors.As]) an *Error at some point in the error chain.
//
// Components should create an Error at the system boundary (e.g. when running
// the external extraction tool or decoding a container) and intermediate
// layers should not wrap in another Error except to add additional
// [ErrorKind] information. That is to say, use [fmt.Errorf] with a "%w" verb
// in preference to creating a containing Error.
type Error struct {
	Inner   error
	Kind    ErrorKind
	Message string
	Op      string
}

var (
	_ error                       = (*Error)(nil)
	_ interface{ Is(error) bool } = (*Error)(nil)
	_ interface{ Unwrap() error } = (*Error)(nil)
)

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	b.WriteString("[")
	switch e.Kind {
	case ErrUnsupportedFormat,
		ErrCorruptFormat,
		ErrNotIconResource,
		ErrMissingName,
		ErrToolFailure,
		ErrInvalid,
		ErrInternal:
		b.WriteString(string(e.Kind))
	default:
		b.WriteString("???")
	}
	b.WriteString("]: ")
	if e.Message != "" {
		b.WriteString(e.Message)
	}
	if e.Message != "" && e.Inner != nil {
		b.WriteString(": ")
	}
	if e.Op == "" && e.Message == "" {
		b.Reset()
	}
	if e.Inner != nil {
		b.WriteString(e.Inner.Error())
	}
	return b.String()
}

// Is enables [errors.Is].
//
// It compares the error kind. Callers should compare against a declared
// [ErrorKind] over a specific error.
func (e *Error) Is(kind error) bool {
	switch kind {
	case ErrSkippable:
		return errors.Is(e, ErrUnsupportedFormat) ||
			errors.Is(e, ErrCorruptFormat) ||
			errors.Is(e, ErrNotIconResource) ||
			errors.Is(e, ErrMissingName)
	default:
	}
	return errors.Is(e.Kind, kind)
}

// Unwrap enables [errors.Unwrap].
func (e *Error) Unwrap() error {
	return e.Inner
}

// ErrorKind represents classes of errors to be checked against.
//
// If an error is unsure which kind to use, ErrInternal should be used.
type ErrorKind string

// Defined error kinds.
var (
	ErrUnsupportedFormat = ErrorKind("unsupported format") // format variant the extractor declines
	ErrCorruptFormat     = ErrorKind("corrupt format")     // unexpected decode failure
	ErrNotIconResource   = ErrorKind("not icon resource")  // file is not an icon-resource file
	ErrMissingName       = ErrorKind("missing name")       // no name in any known language
	ErrToolFailure       = ErrorKind("tool failure")       // external tool exited unexpectedly
	ErrInvalid           = ErrorKind("invalid")            // invalid input or configuration
	ErrInternal          = ErrorKind("internal")           // non-specific internal error

	// ErrSkippable should only be used for an [Is] comparison.
	// It's true for any error that only affects a single artifact.
	ErrSkippable = ErrorKind("skippable")
)

// Error implements error.
func (e ErrorKind) Error() string {
	return string(e)
}

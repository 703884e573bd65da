// Package errdefs defines the unified error kind used across the builder
// and the context-prepending idiom call sites use to enrich failures.
//
// Every failure in the module maps onto one of five kinds: IO, Installer,
// Archive, Mount and Parse. A kind survives any amount of prepending, so a
// caller can always recover the category of the root failure with KindOf
// while the rendered message keeps each prepended context outermost-first.
package errdefs

import (
	"errors"
	"fmt"
)

// Kind categorizes a builder error.
type Kind int

const (
	// KindUnknown is the zero kind, reported for errors that did not
	// originate in this module.
	KindUnknown Kind = iota

	// KindIO covers filesystem and process failures.
	KindIO

	// KindInstaller covers failures reported by the package installer.
	KindInstaller

	// KindArchive covers decompression and archive extraction failures.
	KindArchive

	// KindMount covers mount and unmount syscall failures.
	KindMount

	// KindParse covers recipe parsing failures.
	KindParse
)

// String returns the kind name as used in rendered messages.
func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindInstaller:
		return "installer"
	case KindArchive:
		return "archive"
	case KindMount:
		return "mount"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Parse error details, mirroring the conditions the parser reports.
const (
	DetailNotFound      = "not found"
	DetailInvalidData   = "invalid data"
	DetailUnexpectedEOF = "unexpected EOF"
)

// Error is the single discriminated error type of the builder.
//
// Detail is a free-form refinement of the kind. The recipe parser sets it
// to one of the Detail* parse conditions; errors of the other kinds carry
// an empty Detail.
type Error struct {
	Kind   Kind
	Detail string
	msg    string
	cause  error
}

// New creates an Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

// Newf creates an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// WithDetail attaches a detail tag and returns the error.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		if e.msg != "" {
			return e.msg + ": " + e.cause.Error()
		}
		return e.cause.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Wrap lifts an arbitrary error into the given kind, keeping it as the
// cause. Wrapping an *Error preserves its original kind and detail.
func Wrap(kind Kind, err error, msg string) *Error {
	wrapped := &Error{Kind: kind, msg: msg, cause: err}
	var inner *Error
	if errors.As(err, &inner) {
		wrapped.Kind = inner.Kind
		wrapped.Detail = inner.Detail
	}
	return wrapped
}

// Prepend enriches err with a context prefix. It is the only mechanism by
// which call sites add context: the prefix ends up outermost in the rendered
// message and the kind of the underlying error is untouched. A nil err
// returns nil, so results can be passed through unconditionally.
func Prepend(prefix string, err error) error {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	if kind == KindUnknown {
		kind = KindIO
	}
	return Wrap(kind, err, prefix)
}

// KindOf reports the kind of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// DetailOf reports the detail tag of err, or the empty string.
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return ""
}

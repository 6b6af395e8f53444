// Package trgerr defines the error taxonomy surfaced by the trigram index
// core, and helpers to classify and wrap errors against it.
package trgerr

import "github.com/pkg/errors"

// Kind classifies an error surfaced by the core to its host.
type Kind int

const (
	// NoMemory marks an allocation failure; fatal to the operation in
	// progress.
	NoMemory Kind = iota
	// BadPattern marks an unrecognised pattern prefix, empty body, or a
	// regex compile failure.
	BadPattern
	// NoPrefilter marks a regex that compiled but from which no trigram
	// filter could be derived, with full-scan forbidden.
	NoPrefilter
	// CorruptDoclist marks a doclist that failed to decode: a
	// non-terminated varint, or ids that are not strictly increasing.
	CorruptDoclist
	// StoreError marks an error returned verbatim by the host store.
	StoreError
	// TypeError marks a MATCH operand, or indexed column value, that is
	// not text or blob.
	TypeError
)

func (k Kind) String() string {
	switch k {
	case NoMemory:
		return "no_memory"
	case BadPattern:
		return "bad_pattern"
	case NoPrefilter:
		return "no_prefilter"
	case CorruptDoclist:
		return "corrupt_doclist"
	case StoreError:
		return "store_error"
	case TypeError:
		return "type_error"
	default:
		return "unknown"
	}
}

// Error is an error tagged with a Kind, suitable for inspection by a host
// that wants to translate it into its own error representation.
type Error struct {
	Kind Kind
	err  error
}

func (e *Error) Error() string { return e.Kind.String() + ": " + e.err.Error() }

func (e *Error) Unwrap() error { return e.err }

// New builds a Kind-tagged error from a message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, err: errors.New(msg)}
}

// Wrap tags err with kind, adding msg as context. Returns nil if err is
// nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, err: errors.Wrap(err, msg)}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, err: errors.Wrapf(err, format, args...)}
}

// As reports whether err (or one it wraps) is a *Error, and if so
// returns its Kind.
func As(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Is reports whether err is a tagged Error of the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := As(err)
	return ok && k == kind
}

package plasa

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorKind classifies every failure a view request can surface to its caller.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindNotFound: a referenced entity or viewer fact is absent. Never retried.
	KindNotFound
	// KindSnapshotUnavailable: no consistent anchor could be held within the retry bound.
	KindSnapshotUnavailable
	// KindTimeout: a read or a composition attempt ran past its bound.
	KindTimeout
	// KindMalformedFact: the facts violate an invariant the composer relies on.
	KindMalformedFact
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindSnapshotUnavailable:
		return "SnapshotUnavailable"
	case KindTimeout:
		return "Timeout"
	case KindMalformedFact:
		return "MalformedFact"
	default:
		return "Unknown"
	}
}

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrSnapshotUnavailable = &Error{Kind: KindSnapshotUnavailable}
	ErrTimeout             = &Error{Kind: KindTimeout}
	ErrMalformedFact       = &Error{Kind: KindMalformedFact}
)

// Error carries enough context (entity, field, anchor) for a caller to retry
// deterministically.
type Error struct {
	Kind   ErrorKind
	Entity string
	ID     string
	Field  string
	Anchor Anchor
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Entity != "" {
		fmt.Fprintf(&b, " %s", e.Entity)
		if e.ID != "" {
			fmt.Fprintf(&b, " %s", e.ID)
		}
		if e.Field != "" {
			fmt.Fprintf(&b, ".%s", e.Field)
		}
	}
	if !e.Anchor.IsZero() {
		fmt.Fprintf(&b, " at %s", e.Anchor)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Entity == "" && t.Err == nil
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func NotFound(entity, id, field string, anchor Anchor) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id, Field: field, Anchor: anchor}
}

func Malformed(entity, id, field string, format string, args ...interface{}) *Error {
	return &Error{
		Kind:   KindMalformedFact,
		Entity: entity,
		ID:     id,
		Field:  field,
		Err:    errors.Errorf(format, args...),
	}
}

func SnapshotUnavailable(anchor Anchor, attempts int, cause error) *Error {
	err := errors.Errorf("no consistent anchor after %d attempt(s)", attempts)
	if cause != nil {
		err = errors.Wrapf(cause, "no consistent anchor after %d attempt(s)", attempts)
	}
	return &Error{Kind: KindSnapshotUnavailable, Anchor: anchor, Err: err}
}

func Timeout(anchor Anchor, cause error) *Error {
	return &Error{Kind: KindTimeout, Anchor: anchor, Err: cause}
}

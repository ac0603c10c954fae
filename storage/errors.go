package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by a backend when no document exists yet.
	ErrNotFound = errors.New("task document not found")
	// ErrCorrupt is returned by a backend when the document cannot be decoded.
	ErrCorrupt = errors.New("task document is malformed")
)

// Kind classifies storage failures surfaced by Store.
type Kind int

const (
	KindRead Kind = iota + 1
	KindCorrupt
	KindWrite
)

func (k Kind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindCorrupt:
		return "corrupt"
	case KindWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Error wraps a backend failure with the operation that produced it.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func readError(err error) *Error {
	if errors.Is(err, ErrCorrupt) {
		return &Error{Kind: KindCorrupt, Err: err}
	}
	return &Error{Kind: KindRead, Err: err}
}

// Package indexerr defines the error taxonomy shared by the index builders.
//
// Every failure surfaced by the codec, catalog, ledger, redirect and backpatch
// packages carries one of four kinds, so callers can decide between skipping a
// single symbol or file and aborting a whole operation:
//
//	if errors.Is(err, indexerr.ErrCorruptIndex) { ... }
package indexerr

import (
	"errors"
	"fmt"
)

// Kind classifies an index error.
type Kind string

const (
	// KindCorruptIndex marks a malformed binary or text artifact on read.
	KindCorruptIndex Kind = "corrupt_index"
	// KindInconsistentReference marks out-of-range or overlapping column
	// spans and id/name mismatches.
	KindInconsistentReference Kind = "inconsistent_reference"
	// KindMissingArtifact marks an expected file that does not exist.
	KindMissingArtifact Kind = "missing_artifact"
	// KindIOFailure marks an underlying read or write failure.
	KindIOFailure Kind = "io_failure"
)

// Sentinels for errors.Is matching on kind.
var (
	ErrCorruptIndex          = &Error{Kind: KindCorruptIndex}
	ErrInconsistentReference = &Error{Kind: KindInconsistentReference}
	ErrMissingArtifact       = &Error{Kind: KindMissingArtifact}
	ErrIOFailure             = &Error{Kind: KindIOFailure}
)

// Error is a classified index error.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. Sentinels carry
// only a kind, so errors.Is(err, ErrCorruptIndex) matches any corrupt-index
// error regardless of op or path.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Path == "" && t.Err == nil
}

// CorruptIndex returns a corrupt-index error.
func CorruptIndex(op, path string, format string, args ...any) *Error {
	return &Error{Kind: KindCorruptIndex, Op: op, Path: path, Err: fmt.Errorf(format, args...)}
}

// InconsistentReference returns an inconsistent-reference error.
func InconsistentReference(op string, format string, args ...any) *Error {
	return &Error{Kind: KindInconsistentReference, Op: op, Err: fmt.Errorf(format, args...)}
}

// MissingArtifact returns a missing-artifact error for path.
func MissingArtifact(op, path string, err error) *Error {
	return &Error{Kind: KindMissingArtifact, Op: op, Path: path, Err: err}
}

// IO wraps err as an I/O failure. A nil err yields nil.
func IO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var ie *Error
	if errors.As(err, &ie) {
		return err
	}
	return &Error{Kind: KindIOFailure, Op: op, Path: path, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}

package table

// errors.go defines the failures a Table reports.
//
// Every error is a pointer struct that carries the offending column, key or
// row so callers can inspect it with errors.As. Each type also matches a
// package sentinel through errors.Is, which is what most callers need:
//
//	if errors.Is(err, table.ErrUnknownColumn) { ... }

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched by the typed errors below.
var (
	ErrUnknownColumn   = errors.New("unknown column")
	ErrRowNotFound     = errors.New("row not found")
	ErrAmbiguousKey    = errors.New("ambiguous key")
	ErrMalformedRow    = errors.New("malformed row")
	ErrDuplicateColumn = errors.New("duplicate column")
)

// UnknownColumnError is returned when an operation names a column the table
// does not have.
type UnknownColumnError struct {
	Column    string
	Available []string
}

func (e *UnknownColumnError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unknown column %q", e.Column)
	}
	return fmt.Sprintf("unknown column %q (available: %s)", e.Column, strings.Join(e.Available, ", "))
}

func (e *UnknownColumnError) Is(target error) bool { return target == ErrUnknownColumn }

// RowNotFoundError is returned when a key lookup matches nothing.
type RowNotFoundError struct {
	Column string
	Key    Value
}

func (e *RowNotFoundError) Error() string {
	return fmt.Sprintf("row not found: no row with %s = %q", e.Column, e.Key.String())
}

func (e *RowNotFoundError) Is(target error) bool { return target == ErrRowNotFound }

// AmbiguousKeyError is returned by SetValue when the key matches more than
// one row. Rows holds the 0-based positions of every match.
type AmbiguousKeyError struct {
	Column string
	Key    Value
	Rows   []int
}

func (e *AmbiguousKeyError) Error() string {
	return fmt.Sprintf("ambiguous key: %s = %q matches %d rows", e.Column, e.Key.String(), len(e.Rows))
}

func (e *AmbiguousKeyError) Is(target error) bool { return target == ErrAmbiguousKey }

// MalformedRowError is returned at construction when a row's keys differ
// from the declared columns.
type MalformedRowError struct {
	RowIndex int
	Missing  []string
	Extra    []string
}

func (e *MalformedRowError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "extra "+strings.Join(e.Extra, ", "))
	}
	return fmt.Sprintf("malformed row %d: %s", e.RowIndex, strings.Join(parts, "; "))
}

func (e *MalformedRowError) Is(target error) bool { return target == ErrMalformedRow }

// DuplicateColumnError is returned when a column list repeats a name.
type DuplicateColumnError struct {
	Column string
}

func (e *DuplicateColumnError) Error() string {
	return fmt.Sprintf("duplicate column %q", e.Column)
}

func (e *DuplicateColumnError) Is(target error) bool { return target == ErrDuplicateColumn }

func newUnknownColumn(column string, available []string) *UnknownColumnError {
	return &UnknownColumnError{Column: column, Available: append([]string(nil), available...)}
}

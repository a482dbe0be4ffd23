package compare

import "fmt"

// Side identifies which of the two tables an error came from.
type Side string

const (
	SideFirst  Side = "first"
	SideSecond Side = "second"
)

// TransformError reports a queued transform that failed. Err is the table
// error, reachable with errors.Is and errors.As.
type TransformError struct {
	Index     int
	Transform string
	Side      Side
	Err       error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %d (%s) on %s table: %v", e.Index, e.Transform, e.Side, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// IndexError reports an index column missing from one table.
type IndexError struct {
	Column string
	Side   Side
	Err    error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index column %q not found in %s file: %v", e.Column, e.Side, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

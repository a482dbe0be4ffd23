package table

import (
	"encoding/json"
	"strings"
)

// Kind identifies what a Value holds.
type Kind uint8

const (
	// KindString is a textual cell. This is the zero kind.
	KindString Kind = iota
	// KindNull marks a cell that had no field in the source line.
	KindNull
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	default:
		return "string"
	}
}

// Value is a single cell. Values are compared exactly: same kind and, for
// strings, the same bytes. No coercion between kinds ever happens.
type Value struct {
	kind Kind
	s    string
}

// String returns a string cell.
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Null returns the absent cell.
func Null() Value {
	return Value{kind: KindNull}
}

// Strings converts plain strings to string cells.
func Strings(ss ...string) []Value {
	out := make([]Value, len(ss))
	for i, s := range ss {
		out[i] = String(s)
	}
	return out
}

// Kind reports the cell kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the cell is absent.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the cell text. Null cells return "".
func (v Value) Str() string {
	if v.kind == KindNull {
		return ""
	}
	return v.s
}

// Equal reports exact equality.
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && v.s == o.s
}

// String renders the value for human output. Null renders as "None" to match
// historical report output.
func (v Value) String() string {
	if v.kind == KindNull {
		return "None"
	}
	return v.s
}

// TrimSpace returns the value with surrounding whitespace removed.
// Null cells are returned unchanged.
func (v Value) TrimSpace() Value {
	if v.kind != KindString {
		return v
	}
	return String(strings.TrimSpace(v.s))
}

// MarshalJSON encodes string cells as JSON strings and null cells as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNull {
		return []byte("null"), nil
	}
	return json.Marshal(v.s)
}

// UnmarshalJSON accepts a JSON string or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Null()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = String(s)
	return nil
}

// Row maps column name to cell.
type Row map[string]Value

// Copy returns a shallow copy of the row. Values are immutable so this is
// a full copy in practice.
func (r Row) Copy() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Get returns the cell for column, or Null when the column is missing.
func (r Row) Get(column string) Value {
	if v, ok := r[column]; ok {
		return v
	}
	return Null()
}

// Predicate decides whether a row matches.
type Predicate func(Row) bool

// TransformFunc derives a new cell value from a whole row.
type TransformFunc func(Row) Value

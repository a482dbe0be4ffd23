// Package table holds the in-memory dataset that comparisons run over.
//
// A Table is an ordered list of unique column names plus an ordered list of
// rows. Every row has exactly one cell per column; New rejects anything else
// and every operation in this package preserves that shape. Tables are not
// safe for concurrent use.
package table

import (
	"iter"
	"slices"
	"sort"
)

// Table is an ordered set of rows over a fixed, ordered set of columns.
type Table struct {
	columns []string
	pos     map[string]int
	rows    []Row
	source  string
}

// Option configures a Table at construction.
type Option func(*Table)

// WithSource labels the table with where it came from (a file path or a
// description such as "init from text").
func WithSource(label string) Option {
	return func(t *Table) { t.source = label }
}

// New builds a Table. Rows are copied, so later changes to the caller's maps
// do not leak in.
func New(columns []string, rows []Row, opts ...Option) (*Table, error) {
	pos, err := positions(columns)
	if err != nil {
		return nil, err
	}

	t := &Table{
		columns: slices.Clone(columns),
		pos:     pos,
		rows:    make([]Row, 0, len(rows)),
	}
	for _, opt := range opts {
		opt(t)
	}

	for i, r := range rows {
		if err := t.checkRow(i, r); err != nil {
			return nil, err
		}
		t.rows = append(t.rows, r.Copy())
	}
	return t, nil
}

// positions maps each column to its index, failing on repeats.
func positions(columns []string) (map[string]int, error) {
	pos := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := pos[c]; dup {
			return nil, &DuplicateColumnError{Column: c}
		}
		pos[c] = i
	}
	return pos, nil
}

func (t *Table) checkRow(i int, r Row) error {
	var missing, extra []string
	for _, c := range t.columns {
		if _, ok := r[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(r) != len(t.columns)-len(missing) {
		for k := range r {
			if _, ok := t.pos[k]; !ok {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
	}
	if len(missing) > 0 || len(extra) > 0 {
		return &MalformedRowError{RowIndex: i, Missing: missing, Extra: extra}
	}
	return nil
}

// Source returns the label given at construction.
func (t *Table) Source() string { return t.source }

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string { return slices.Clone(t.columns) }

// HasColumn reports whether column exists.
func (t *Table) HasColumn(column string) bool {
	_, ok := t.pos[column]
	return ok
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns copies of all rows in order.
func (t *Table) Rows() []Row {
	out := make([]Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Copy()
	}
	return out
}

// All iterates over the rows in order, yielding the position and a copy of
// each row.
func (t *Table) All() iter.Seq2[int, Row] {
	return func(yield func(int, Row) bool) {
		for i, r := range t.rows {
			if !yield(i, r.Copy()) {
				return
			}
		}
	}
}

// Clone returns an independent deep copy.
func (t *Table) Clone() *Table {
	c := &Table{
		columns: slices.Clone(t.columns),
		pos:     make(map[string]int, len(t.pos)),
		rows:    make([]Row, len(t.rows)),
		source:  t.source,
	}
	for k, v := range t.pos {
		c.pos[k] = v
	}
	for i, r := range t.rows {
		c.rows[i] = r.Copy()
	}
	return c
}

func (t *Table) requireColumn(column string) error {
	if _, ok := t.pos[column]; !ok {
		return newUnknownColumn(column, t.columns)
	}
	return nil
}

// matches returns the positions of rows whose column equals value.
func (t *Table) matches(column string, value Value) []int {
	var idx []int
	for i, r := range t.rows {
		if r[column].Equal(value) {
			idx = append(idx, i)
		}
	}
	return idx
}

// GetRows returns copies of every row whose column equals value, in row
// order. The result is empty when nothing matches.
func (t *Table) GetRows(column string, value Value) ([]Row, error) {
	if err := t.requireColumn(column); err != nil {
		return nil, err
	}
	idx := t.matches(column, value)
	out := make([]Row, 0, len(idx))
	for _, i := range idx {
		out = append(out, t.rows[i].Copy())
	}
	return out, nil
}

// GetRow returns the first row whose column equals value.
func (t *Table) GetRow(column string, value Value) (Row, error) {
	if err := t.requireColumn(column); err != nil {
		return nil, err
	}
	for _, r := range t.rows {
		if r[column].Equal(value) {
			return r.Copy(), nil
		}
	}
	return nil, &RowNotFoundError{Column: column, Key: value}
}

// GetValue reads one cell from the first row whose keyColumn equals key.
func (t *Table) GetValue(key Value, keyColumn, column string) (Value, error) {
	if err := t.requireColumn(column); err != nil {
		return Value{}, err
	}
	r, err := t.GetRow(keyColumn, key)
	if err != nil {
		return Value{}, err
	}
	return r[column], nil
}

// ColumnValues returns a lazy sequence over one column. The sequence reads
// the table each time it is ranged over, so it can be restarted and always
// reflects the current rows.
func (t *Table) ColumnValues(column string) (iter.Seq[Value], error) {
	if err := t.requireColumn(column); err != nil {
		return nil, err
	}
	return func(yield func(Value) bool) {
		for _, r := range t.rows {
			if !yield(r[column]) {
				return
			}
		}
	}, nil
}

// SetValue overwrites targetColumn in the single row whose keyColumn equals
// key. More than one match is an AmbiguousKeyError; nothing is written.
func (t *Table) SetValue(key Value, keyColumn, targetColumn string, value Value) error {
	if err := t.requireColumn(keyColumn); err != nil {
		return err
	}
	if err := t.requireColumn(targetColumn); err != nil {
		return err
	}
	idx := t.matches(keyColumn, key)
	switch len(idx) {
	case 0:
		return &RowNotFoundError{Column: keyColumn, Key: key}
	case 1:
		t.rows[idx[0]][targetColumn] = value
		return nil
	default:
		return &AmbiguousKeyError{Column: keyColumn, Key: key, Rows: idx}
	}
}

// DuplicateKeys returns the values of column that occur in more than one
// row, in order of first appearance.
func (t *Table) DuplicateKeys(column string) ([]Value, error) {
	if err := t.requireColumn(column); err != nil {
		return nil, err
	}
	seen := make(map[Value]int, len(t.rows))
	var dups []Value
	for _, r := range t.rows {
		k := r[column]
		seen[k]++
		if seen[k] == 2 {
			dups = append(dups, k)
		}
	}
	return dups, nil
}

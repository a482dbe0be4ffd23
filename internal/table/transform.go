package table

import (
	"slices"
	"strings"
)

// StripWhitespace trims leading and trailing whitespace from every string
// cell. Null cells are left as they are.
func (t *Table) StripWhitespace() {
	for _, r := range t.rows {
		for c, v := range r {
			r[c] = v.TrimSpace()
		}
	}
}

// StripColumnNames trims whitespace from the column names. If two names
// collapse to the same text the table is left untouched.
func (t *Table) StripColumnNames() error {
	renamed := make([]string, len(t.columns))
	changed := false
	for i, c := range t.columns {
		renamed[i] = strings.TrimSpace(c)
		if renamed[i] != c {
			changed = true
		}
	}
	if !changed {
		return nil
	}
	pos, err := positions(renamed)
	if err != nil {
		return err
	}

	for _, r := range t.rows {
		next := make(Row, len(r))
		for i, c := range t.columns {
			next[renamed[i]] = r[c]
		}
		clear(r)
		for k, v := range next {
			r[k] = v
		}
	}
	t.columns = renamed
	t.pos = pos
	return nil
}

// DropColumns removes every named column from the table. All names are
// checked first; if any is unknown nothing is removed.
func (t *Table) DropColumns(names []string) error {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		if err := t.requireColumn(n); err != nil {
			return err
		}
		drop[n] = struct{}{}
	}
	if len(drop) == 0 {
		return nil
	}

	for _, r := range t.rows {
		for n := range drop {
			delete(r, n)
		}
	}
	t.columns = slices.DeleteFunc(t.columns, func(c string) bool {
		_, ok := drop[c]
		return ok
	})
	t.pos, _ = positions(t.columns)
	return nil
}

// DropRows removes every row whose column holds one of values.
func (t *Table) DropRows(column string, values []Value) error {
	if err := t.requireColumn(column); err != nil {
		return err
	}
	set := make(map[Value]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	t.DropRowsBy(func(r Row) bool {
		_, ok := set[r[column]]
		return ok
	})
	return nil
}

// DropRowsBy removes every row for which pred returns true. The predicate
// receives a copy of the row.
func (t *Table) DropRowsBy(pred Predicate) {
	t.rows = slices.DeleteFunc(t.rows, func(r Row) bool {
		return pred(r.Copy())
	})
}

// ApplyTransform replaces column in every row with fn(row). fn sees the
// whole row as it was before the call, so it can derive from other columns.
func (t *Table) ApplyTransform(column string, fn TransformFunc) error {
	if err := t.requireColumn(column); err != nil {
		return err
	}
	for _, r := range t.rows {
		r[column] = fn(r.Copy())
	}
	return nil
}

// AddColumn appends a new column whose cells are fn(row).
func (t *Table) AddColumn(column string, fn TransformFunc) error {
	if _, ok := t.pos[column]; ok {
		return &DuplicateColumnError{Column: column}
	}
	values := make([]Value, len(t.rows))
	for i, r := range t.rows {
		values[i] = fn(r.Copy())
	}
	for i, r := range t.rows {
		r[column] = values[i]
	}
	t.pos[column] = len(t.columns)
	t.columns = append(t.columns, column)
	return nil
}

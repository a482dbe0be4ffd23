package compare

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvcompare/internal/table"
)

// TransformKind names a queued table operation.
type TransformKind string

const (
	KindStripWhitespace  TransformKind = "strip_whitespace"
	KindStripColumnNames TransformKind = "strip_column_names"
	KindDropColumns      TransformKind = "drop_columns"
	KindDropRows         TransformKind = "drop_rows"
	KindDropRowsBy       TransformKind = "drop_rows_by"
	KindApplyTransform   TransformKind = "apply_transform"
	KindAddColumn        TransformKind = "add_column"
)

// Transform describes one operation to run on both tables. Only the fields
// relevant to Kind are read.
type Transform struct {
	Kind      TransformKind
	Column    string
	Columns   []string
	Values    []table.Value
	Predicate table.Predicate
	Func      table.TransformFunc

	// Label is an optional human description used in logs and reports.
	Label string
}

// StripWhitespace trims every string cell.
func StripWhitespace() Transform {
	return Transform{Kind: KindStripWhitespace}
}

// StripColumnNames trims every column name.
func StripColumnNames() Transform {
	return Transform{Kind: KindStripColumnNames}
}

// DropColumns removes the named columns.
func DropColumns(names ...string) Transform {
	return Transform{Kind: KindDropColumns, Columns: names}
}

// DropRows removes rows whose column holds one of values.
func DropRows(column string, values ...table.Value) Transform {
	return Transform{Kind: KindDropRows, Column: column, Values: values}
}

// DropRowsBy removes rows matching pred.
func DropRowsBy(pred table.Predicate) Transform {
	return Transform{Kind: KindDropRowsBy, Predicate: pred}
}

// ApplyTransform rewrites column with fn(row).
func ApplyTransform(column string, fn table.TransformFunc) Transform {
	return Transform{Kind: KindApplyTransform, Column: column, Func: fn}
}

// AddColumn derives a new trailing column from fn(row).
func AddColumn(column string, fn table.TransformFunc) Transform {
	return Transform{Kind: KindAddColumn, Column: column, Func: fn}
}

// WithLabel returns a copy of tr carrying a description.
func (tr Transform) WithLabel(label string) Transform {
	tr.Label = label
	return tr
}

// Apply runs the transform against a single table.
func (tr Transform) Apply(t *table.Table) error {
	switch tr.Kind {
	case KindStripWhitespace:
		t.StripWhitespace()
		return nil
	case KindStripColumnNames:
		return t.StripColumnNames()
	case KindDropColumns:
		return t.DropColumns(tr.Columns)
	case KindDropRows:
		return t.DropRows(tr.Column, tr.Values)
	case KindDropRowsBy:
		if tr.Predicate == nil {
			return fmt.Errorf("%s: nil predicate", tr.Kind)
		}
		t.DropRowsBy(tr.Predicate)
		return nil
	case KindApplyTransform:
		if tr.Func == nil {
			return fmt.Errorf("%s: nil function", tr.Kind)
		}
		return t.ApplyTransform(tr.Column, tr.Func)
	case KindAddColumn:
		if tr.Func == nil {
			return fmt.Errorf("%s: nil function", tr.Kind)
		}
		return t.AddColumn(tr.Column, tr.Func)
	default:
		return fmt.Errorf("unknown transform kind %q", tr.Kind)
	}
}

// Describe returns a short human description.
func (tr Transform) Describe() string {
	if tr.Label != "" {
		return tr.Label
	}
	switch tr.Kind {
	case KindDropColumns:
		return fmt.Sprintf("%s(%s)", tr.Kind, strings.Join(tr.Columns, ", "))
	case KindDropRows:
		vals := make([]string, len(tr.Values))
		for i, v := range tr.Values {
			vals[i] = v.String()
		}
		return fmt.Sprintf("%s(%s in [%s])", tr.Kind, tr.Column, strings.Join(vals, ", "))
	case KindApplyTransform, KindAddColumn:
		return fmt.Sprintf("%s(%s)", tr.Kind, tr.Column)
	default:
		return string(tr.Kind)
	}
}

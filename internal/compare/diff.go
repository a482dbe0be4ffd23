package compare

import (
	"github.com/JonMunkholm/csvcompare/internal/table"
)

// keyed is one table's rows indexed by key. order is first-encounter order;
// rows holds the last row seen for each key.
type keyed struct {
	order []table.Value
	rows  map[table.Value]table.Row
	dups  []table.Value
}

func keyRows(t *table.Table, column string) (keyed, error) {
	dups, err := t.DuplicateKeys(column)
	if err != nil {
		return keyed{}, err
	}
	k := keyed{rows: make(map[table.Value]table.Row, t.Len()), dups: dups}
	for _, r := range t.All() {
		key := r[column]
		if _, ok := k.rows[key]; !ok {
			k.order = append(k.order, key)
		}
		k.rows[key] = r
	}
	return k, nil
}

// Diff compares two tables on index without touching either of them.
func Diff(first, second *table.Table, index string) (*Output, error) {
	if !first.HasColumn(index) {
		return nil, &IndexError{Column: index, Side: SideFirst, Err: &table.UnknownColumnError{Column: index, Available: first.Columns()}}
	}
	if !second.HasColumn(index) {
		return nil, &IndexError{Column: index, Side: SideSecond, Err: &table.UnknownColumnError{Column: index, Available: second.Columns()}}
	}

	out := &Output{
		FirstSource:       first.Source(),
		SecondSource:      second.Source(),
		IndexColumn:       index,
		ExtraColsInFirst:  []string{},
		ExtraColsInSecond: []string{},
		ExtraRowsInFirst:  []table.Value{},
		ExtraRowsInSecond: []table.Value{},
		MismatchedRows:    []Mismatch{},
	}

	firstCols, secondCols := first.Columns(), second.Columns()
	var common []string
	for _, c := range firstCols {
		if second.HasColumn(c) {
			common = append(common, c)
		} else {
			out.ExtraColsInFirst = append(out.ExtraColsInFirst, c)
		}
	}
	for _, c := range secondCols {
		if !first.HasColumn(c) {
			out.ExtraColsInSecond = append(out.ExtraColsInSecond, c)
		}
	}

	a, err := keyRows(first, index)
	if err != nil {
		return nil, &IndexError{Column: index, Side: SideFirst, Err: err}
	}
	b, err := keyRows(second, index)
	if err != nil {
		return nil, &IndexError{Column: index, Side: SideSecond, Err: err}
	}
	out.DuplicateKeysInFirst = a.dups
	out.DuplicateKeysInSecond = b.dups

	for _, key := range a.order {
		if _, ok := b.rows[key]; !ok {
			out.ExtraRowsInFirst = append(out.ExtraRowsInFirst, key)
		}
	}
	for _, key := range b.order {
		if _, ok := a.rows[key]; !ok {
			out.ExtraRowsInSecond = append(out.ExtraRowsInSecond, key)
		}
	}

	for _, key := range a.order {
		other, ok := b.rows[key]
		if !ok {
			continue
		}
		mine := a.rows[key]
		for _, c := range common {
			if !mine[c].Equal(other[c]) {
				out.MismatchedRows = append(out.MismatchedRows, Mismatch{
					Row:    key,
					Column: c,
					First:  mine[c],
					Second: other[c],
				})
			}
		}
	}

	out.MatchResult = len(out.ExtraColsInFirst) == 0 &&
		len(out.ExtraColsInSecond) == 0 &&
		len(out.ExtraRowsInFirst) == 0 &&
		len(out.ExtraRowsInSecond) == 0 &&
		len(out.MismatchedRows) == 0
	return out, nil
}

package table

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(kv ...string) Row {
	r := make(Row, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		r[kv[i]] = String(kv[i+1])
	}
	return r
}

func people(t *testing.T) *Table {
	t.Helper()
	tbl, err := New([]string{"id", "name", "score"}, []Row{
		row("id", "1", "name", "Alice", "score", "95"),
		row("id", "2", "name", "Bob", "score", "87"),
		row("id", "3", "name", "Bob", "score", "70"),
	}, WithSource("people.csv"))
	require.NoError(t, err)
	return tbl
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		rows    []Row
		wantErr error
	}{
		{
			name:    "valid",
			columns: []string{"a", "b"},
			rows:    []Row{row("a", "1", "b", "2")},
		},
		{
			name:    "no rows",
			columns: []string{"a"},
		},
		{
			name:    "duplicate column",
			columns: []string{"a", "b", "a"},
			wantErr: ErrDuplicateColumn,
		},
		{
			name:    "missing key",
			columns: []string{"a", "b"},
			rows:    []Row{row("a", "1")},
			wantErr: ErrMalformedRow,
		},
		{
			name:    "extra key",
			columns: []string{"a"},
			rows:    []Row{row("a", "1", "z", "2")},
			wantErr: ErrMalformedRow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := New(tt.columns, tt.rows)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, tbl)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.columns, tbl.Columns())
			assert.Equal(t, len(tt.rows), tbl.Len())
		})
	}
}

func TestNew_MalformedRowDetails(t *testing.T) {
	_, err := New([]string{"a", "b"}, []Row{
		row("a", "1", "b", "2"),
		row("a", "1", "c", "3", "d", "4"),
	})

	var mre *MalformedRowError
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, 1, mre.RowIndex)
	assert.Equal(t, []string{"b"}, mre.Missing)
	assert.Equal(t, []string{"c", "d"}, mre.Extra)
}

func TestNew_CopiesInput(t *testing.T) {
	columns := []string{"a"}
	src := row("a", "1")
	tbl, err := New(columns, []Row{src})
	require.NoError(t, err)

	src["a"] = String("changed")
	columns[0] = "renamed"

	assert.Equal(t, []string{"a"}, tbl.Columns())
	assert.Equal(t, String("1"), tbl.Rows()[0]["a"])
}

func TestSource(t *testing.T) {
	assert.Equal(t, "people.csv", people(t).Source())
}

func TestGetRows(t *testing.T) {
	tbl := people(t)

	rows, err := tbl.GetRows("name", String("Bob"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, String("2"), rows[0]["id"])
	assert.Equal(t, String("3"), rows[1]["id"])

	rows, err = tbl.GetRows("name", String("Nobody"))
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = tbl.GetRows("email", String("x"))
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestGetRow(t *testing.T) {
	tbl := people(t)

	r, err := tbl.GetRow("name", String("Bob"))
	require.NoError(t, err)
	assert.Equal(t, String("2"), r["id"])

	_, err = tbl.GetRow("name", String("Nobody"))
	var nf *RowNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "name", nf.Column)

	_, err = tbl.GetRow("email", String("x"))
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestGetRow_ReturnsCopy(t *testing.T) {
	tbl := people(t)
	r, err := tbl.GetRow("id", String("1"))
	require.NoError(t, err)
	r["name"] = String("Mallory")

	v, err := tbl.GetValue(String("1"), "id", "name")
	require.NoError(t, err)
	assert.Equal(t, String("Alice"), v)
}

func TestGetValue(t *testing.T) {
	tbl := people(t)

	v, err := tbl.GetValue(String("Bob"), "name", "score")
	require.NoError(t, err)
	assert.Equal(t, String("87"), v, "first match wins")

	_, err = tbl.GetValue(String("1"), "id", "email")
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, err = tbl.GetValue(String("9"), "id", "name")
	assert.ErrorIs(t, err, ErrRowNotFound)
}

func TestColumnValues(t *testing.T) {
	tbl := people(t)

	seq, err := tbl.ColumnValues("id")
	require.NoError(t, err)

	assert.Equal(t, Strings("1", "2", "3"), slices.Collect(seq))
	assert.Equal(t, Strings("1", "2", "3"), slices.Collect(seq), "sequence restarts from the beginning")

	require.NoError(t, tbl.DropRows("id", Strings("2")))
	assert.Equal(t, Strings("1", "3"), slices.Collect(seq), "sequence reads current rows")

	_, err = tbl.ColumnValues("email")
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestColumnValues_StopsEarly(t *testing.T) {
	tbl := people(t)
	seq, err := tbl.ColumnValues("id")
	require.NoError(t, err)

	var got []Value
	for v := range seq {
		got = append(got, v)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, Strings("1", "2"), got)
}

func TestSetValue(t *testing.T) {
	tbl := people(t)

	require.NoError(t, tbl.SetValue(String("1"), "id", "score", String("99")))
	v, err := tbl.GetValue(String("1"), "id", "score")
	require.NoError(t, err)
	assert.Equal(t, String("99"), v)
}

func TestSetValue_Errors(t *testing.T) {
	tests := []struct {
		name      string
		key       Value
		keyColumn string
		target    string
		wantErr   error
	}{
		{"unknown key column", String("1"), "email", "score", ErrUnknownColumn},
		{"unknown target column", String("1"), "id", "email", ErrUnknownColumn},
		{"no match", String("42"), "id", "score", ErrRowNotFound},
		{"duplicate key", String("Bob"), "name", "score", ErrAmbiguousKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := people(t)
			before := tbl.Rows()

			err := tbl.SetValue(tt.key, tt.keyColumn, tt.target, String("0"))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, tbl.Rows(), "table must not change on failure")
		})
	}
}

func TestSetValue_AmbiguousKeyReportsRows(t *testing.T) {
	tbl := people(t)
	err := tbl.SetValue(String("Bob"), "name", "score", String("0"))

	var ake *AmbiguousKeyError
	require.True(t, errors.As(err, &ake))
	assert.Equal(t, []int{1, 2}, ake.Rows)
	assert.Equal(t, String("Bob"), ake.Key)
}

func TestDuplicateKeys(t *testing.T) {
	tbl, err := New([]string{"id"}, []Row{
		row("id", "a"), row("id", "b"), row("id", "a"), row("id", "c"), row("id", "b"), row("id", "a"),
	})
	require.NoError(t, err)

	dups, err := tbl.DuplicateKeys("id")
	require.NoError(t, err)
	assert.Equal(t, Strings("a", "b"), dups)

	_, err = tbl.DuplicateKeys("nope")
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestClone(t *testing.T) {
	tbl := people(t)
	c := tbl.Clone()

	require.NoError(t, c.DropColumns([]string{"score"}))
	require.NoError(t, c.SetValue(String("1"), "id", "name", String("Zed")))

	assert.Equal(t, []string{"id", "name", "score"}, tbl.Columns())
	v, err := tbl.GetValue(String("1"), "id", "name")
	require.NoError(t, err)
	assert.Equal(t, String("Alice"), v)
	assert.Equal(t, tbl.Source(), c.Source())
}

func TestAll(t *testing.T) {
	tbl := people(t)
	var ids []Value
	for i, r := range tbl.All() {
		assert.Equal(t, len(ids), i)
		ids = append(ids, r["id"])
	}
	assert.Equal(t, Strings("1", "2", "3"), ids)
}

func TestValue(t *testing.T) {
	assert.True(t, String("a").Equal(String("a")))
	assert.False(t, String("a").Equal(String("a ")))
	assert.False(t, String("").Equal(Null()), "empty string is not null")
	assert.True(t, Null().Equal(Null()))

	assert.Equal(t, "None", Null().String())
	assert.Equal(t, "", Null().Str())
	assert.Equal(t, KindNull, Null().Kind())
	assert.Equal(t, Null(), Null().TrimSpace())
	assert.Equal(t, String("95"), String(" 95 ").TrimSpace())
}

func TestValue_JSON(t *testing.T) {
	b, err := Null().MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))

	b, err = String(`a"b`).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"a\"b"`, string(b))

	var v Value
	require.NoError(t, v.UnmarshalJSON([]byte(`"x"`)))
	assert.Equal(t, String("x"), v)
	require.NoError(t, v.UnmarshalJSON([]byte(`null`)))
	assert.True(t, v.IsNull())
}

package compare

import (
	"strings"

	"github.com/JonMunkholm/csvcompare/internal/table"
)

// Mismatch is one differing cell in a row present in both tables.
type Mismatch struct {
	Row    table.Value `json:"row"`
	Column string      `json:"column"`
	First  table.Value `json:"first"`
	Second table.Value `json:"second"`
}

// Output is the result of a comparison. It shares no state with the tables
// it was computed from.
type Output struct {
	FirstSource  string `json:"first_file"`
	SecondSource string `json:"second_file"`
	MatchResult  bool   `json:"match_result"`
	IndexColumn  string `json:"index_column,omitempty"`

	ExtraColsInFirst  []string      `json:"extra_cols_in_first_file"`
	ExtraColsInSecond []string      `json:"extra_cols_in_second_file"`
	ExtraRowsInFirst  []table.Value `json:"extra_rows_in_first_file"`
	ExtraRowsInSecond []table.Value `json:"extra_rows_in_second_file"`
	MismatchedRows    []Mismatch    `json:"mismatched_rows"`

	// Keys that appeared more than once in a table. Only the last such row
	// took part in the comparison. These never affect MatchResult.
	DuplicateKeysInFirst  []table.Value `json:"duplicate_keys_in_first_file,omitempty"`
	DuplicateKeysInSecond []table.Value `json:"duplicate_keys_in_second_file,omitempty"`

	Transforms []string `json:"transforms,omitempty"`
}

// Stats counts the differences in an Output.
type Stats struct {
	ExtraColumns  int `json:"extra_columns"`
	ExtraRows     int `json:"extra_rows"`
	Mismatches    int `json:"mismatches"`
	DuplicateKeys int `json:"duplicate_keys"`
}

// Stats returns difference counts.
func (o *Output) Stats() Stats {
	return Stats{
		ExtraColumns:  len(o.ExtraColsInFirst) + len(o.ExtraColsInSecond),
		ExtraRows:     len(o.ExtraRowsInFirst) + len(o.ExtraRowsInSecond),
		Mismatches:    len(o.MismatchedRows),
		DuplicateKeys: len(o.DuplicateKeysInFirst) + len(o.DuplicateKeysInSecond),
	}
}

// String renders the plain text report.
func (o *Output) String() string {
	var b strings.Builder
	b.WriteString("First file: " + o.FirstSource + "\n")
	b.WriteString("Second file: " + o.SecondSource + "\n")
	if o.MatchResult {
		b.WriteString("Match result: True")
	} else {
		b.WriteString("Match result: False")
	}

	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString("\n" + title)
		for _, it := range items {
			b.WriteString("\n\t" + it)
		}
	}

	section("Extra columns in first file", o.ExtraColsInFirst)
	section("Extra columns in second file", o.ExtraColsInSecond)
	section("Extra rows in first file", valueStrings(o.ExtraRowsInFirst))
	section("Extra rows in second file", valueStrings(o.ExtraRowsInSecond))

	mismatches := make([]string, len(o.MismatchedRows))
	for i, m := range o.MismatchedRows {
		mismatches[i] = "row: " + m.Row.String() +
			", column: " + m.Column +
			", first: " + m.First.String() +
			", second: " + m.Second.String()
	}
	section("Mismatched rows", mismatches)
	return b.String()
}

func valueStrings(vs []table.Value) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

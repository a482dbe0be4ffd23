package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the CLI with args and returns the exit code and both
// output streams.
func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	code := run(context.Background(), rootCmd, &stderr)
	return code, stdout.String(), stderr.String()
}

const (
	firstCSV  = "id,name\n1,alice\n2,bob\n"
	secondCSV = "id,name\n1,alice\n2,bobby\n3,carol\n"
)

func TestDiff_Match(t *testing.T) {
	a := writeFile(t, "a.csv", firstCSV)
	b := writeFile(t, "b.csv", firstCSV)

	code, stdout, stderr := execute(t, "diff", a, b, "--index", "id")
	assert.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "Match result: True")
	assert.NotContains(t, stdout, "MATCH", "no banner when stdout is not a terminal")
}

func TestDiff_Differences(t *testing.T) {
	a := writeFile(t, "a.csv", firstCSV)
	b := writeFile(t, "b.csv", secondCSV)

	code, stdout, stderr := execute(t, "diff", a, b, "-i", "id")
	assert.Equal(t, ExitDiff, code)
	assert.Empty(t, stderr)
	assert.Contains(t, stdout, "Match result: False")
	assert.Contains(t, stdout, "Extra rows in second file\n\t3")
	assert.Contains(t, stdout, "row: 2, column: name, first: bob, second: bobby")
}

func TestDiff_Logging(t *testing.T) {
	a := writeFile(t, "a.csv", firstCSV)
	b := writeFile(t, "b.csv", "id,name\n1,alice\n1,al\n2,bob\n")

	_, stdout, stderr := execute(t, "diff", a, b, "-i", "id")
	assert.NotContains(t, stderr, "comparison completed")
	assert.NotContains(t, stdout, "comparison completed")
	assert.Contains(t, stderr, "duplicate keys in index column")

	_, _, stderr = execute(t, "diff", a, b, "-i", "id", "--verbose")
	assert.Contains(t, stderr, "comparison completed")
}

func TestDiff_JSONOutput(t *testing.T) {
	a := writeFile(t, "a.csv", firstCSV)
	b := writeFile(t, "b.csv", secondCSV)

	code, stdout, _ := execute(t, "diff", a, b, "-i", "id", "-o", "json")
	assert.Equal(t, ExitDiff, code)

	var got struct {
		MatchResult       bool     `json:"match_result"`
		IndexColumn       string   `json:"index_column"`
		ExtraRowsInSecond []string `json:"extra_rows_in_second_file"`
		MismatchedRows    []struct {
			Column string `json:"column"`
			Second string `json:"second"`
		} `json:"mismatched_rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.False(t, got.MatchResult)
	assert.Equal(t, "id", got.IndexColumn)
	assert.Equal(t, []string{"3"}, got.ExtraRowsInSecond)
	require.Len(t, got.MismatchedRows, 1)
	assert.Equal(t, "name", got.MismatchedRows[0].Column)
	assert.Equal(t, "bobby", got.MismatchedRows[0].Second)
}

func TestDiff_TransformFlags(t *testing.T) {
	a := writeFile(t, "a.csv", "id , name,status,extra\n1, alice ,ok,y\n2,bob,void,z\n")
	b := writeFile(t, "b.csv", "id,name,status,extra\n1,alice,ok,x\n")

	code, stdout, stderr := execute(t, "diff", a, b,
		"-i", "id",
		"--strip", "--strip-headers",
		"--drop-rows", "status=void,test",
		"--drop-column", "extra",
	)
	assert.Equal(t, ExitOK, code, stdout+stderr)
	assert.Contains(t, stdout, "Match result: True")
}

func TestDiff_Plan(t *testing.T) {
	a := writeFile(t, "a.csv", "sku,qty,note\nA,1,p\nB,2,q\n")
	b := writeFile(t, "b.csv", "sku,qty,note\nA,1,x\nB,2,y\n")
	p := writeFile(t, "plan.yaml", "index: sku\ndrop_columns: [note]\n")

	code, stdout, stderr := execute(t, "diff", a, b, "--plan", p)
	assert.Equal(t, ExitOK, code, stdout+stderr)
}

func TestDiff_RaggedLinesWarn(t *testing.T) {
	a := writeFile(t, "a.csv", "id,name\n1,alice,extra\n")
	b := writeFile(t, "b.csv", "id,name\n1,alice\n")

	code, _, stderr := execute(t, "diff", a, b, "-i", "id")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, stderr, "warning:")
	assert.Contains(t, stderr, "has 3 fields, expected 2")
}

func TestDiff_Errors(t *testing.T) {
	a := writeFile(t, "a.csv", firstCSV)
	b := writeFile(t, "b.csv", firstCSV)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "no index",
			args: []string{"diff", a, b},
			want: "Code: PLAN003",
		},
		{
			name: "index not in files",
			args: []string{"diff", a, b, "-i", "sku"},
			want: "Code: COL003",
		},
		{
			name: "bad drop-rows",
			args: []string{"diff", a, b, "-i", "id", "--drop-rows", "status"},
			want: "want COLUMN=VALUE",
		},
		{
			name: "bad output format",
			args: []string{"diff", a, b, "-i", "id", "-o", "yaml"},
			want: "unsupported output format \"yaml\": use 'text' or 'json'",
		},
		{
			name: "bad encoding",
			args: []string{"diff", a, b, "-i", "id", "--encoding", "ebcdic"},
			want: "Code: FILE003",
		},
		{
			name: "wrong arg count",
			args: []string{"diff", a},
			want: "accepts 2 arg(s)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := execute(t, tt.args...)
			assert.Equal(t, ExitFailed, code)
			assert.Contains(t, stderr, "Error: ")
			assert.Contains(t, stderr, tt.want)
		})
	}
}

func TestInspect(t *testing.T) {
	f := writeFile(t, "a.csv", "id,name\n1,alice\n2,bob,extra\n")

	code, stdout, stderr := execute(t, "inspect", f)
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "Rows:     2")
	assert.Contains(t, stdout, "Columns:  2\n  id\n  name\n")
	assert.Contains(t, stdout, "Encoding: utf-8")
	assert.Contains(t, stdout, "Ragged lines: 1")
}

func TestInspect_JSON(t *testing.T) {
	f := writeFile(t, "a.csv", firstCSV)

	code, stdout, _ := execute(t, "inspect", f, "-o", "json")
	require.Equal(t, ExitOK, code)

	var rep inspectReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	assert.Equal(t, []string{"id", "name"}, rep.Columns)
	assert.Equal(t, 2, rep.Rows)
	assert.Empty(t, rep.RaggedLines)
}

func TestPlanValidate(t *testing.T) {
	p := writeFile(t, "plan.yaml", "index: sku\nstrip_whitespace: true\ndrop_columns: [note]\n")

	code, stdout, stderr := execute(t, "plan", "validate", p)
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "Index: sku")
	assert.Contains(t, stdout, "1. strip_whitespace")
	assert.Contains(t, stdout, "2. drop_columns(note)")
}

func TestPlanValidate_Invalid(t *testing.T) {
	p := writeFile(t, "plan.yaml", "transforms:\n  - column: qty\n    op: explode\n")

	code, _, stderr := execute(t, "plan", "validate", p)
	assert.Equal(t, ExitFailed, code)
	assert.Contains(t, stderr, "Error: ")
}

func TestVersion(t *testing.T) {
	code, stdout, _ := execute(t, "version")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, stdout, "csvcompare dev")
}

func TestFlagTransforms_Order(t *testing.T) {
	trs, err := flagTransforms(diffOptions{
		strip:        true,
		stripHeaders: true,
		dropColumns:  []string{"a", "b"},
		dropRows:     []string{"status=void"},
	})
	require.NoError(t, err)

	var got []string
	for _, tr := range trs {
		got = append(got, tr.Describe())
	}
	assert.Equal(t, []string{
		"strip_column_names",
		"strip_whitespace",
		"drop_rows(status in [void])",
		"drop_columns(a, b)",
	}, got)
}

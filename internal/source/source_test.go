package source

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	"github.com/JonMunkholm/csvcompare/internal/table"
)

func TestFromText(t *testing.T) {
	doc, err := FromText("id,name,score\n1,Alice,95\n2,Bob, 87 \n", Options{})
	require.NoError(t, err)

	tbl := doc.Table
	assert.Equal(t, []string{"id", "name", "score"}, tbl.Columns())
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, LabelText, tbl.Source())
	assert.Equal(t, UTF8, doc.Encoding)
	assert.False(t, doc.HasError())

	v, err := tbl.GetValue(table.String("2"), "id", "score")
	require.NoError(t, err)
	assert.Equal(t, table.String(" 87 "), v, "whitespace is preserved")
}

func TestFromLines(t *testing.T) {
	doc, err := FromLines([]string{"id,name", "1,Alice", `2,"Smith, Bob"`}, Options{})
	require.NoError(t, err)

	assert.Equal(t, LabelLines, doc.Table.Source())
	row, err := doc.Table.GetRow("id", table.String("2"))
	require.NoError(t, err)
	assert.Equal(t, table.String("Smith, Bob"), row["name"])
}

func TestFromLines_ExplicitColumns(t *testing.T) {
	doc, err := FromLines([]string{"1,Alice", "2,Bob"}, Options{Columns: []string{"id", "name"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name"}, doc.Table.Columns())
	assert.Equal(t, 2, doc.Table.Len(), "first line is data when columns are given")
}

func TestFromText_ExplicitColumnsDuplicate(t *testing.T) {
	_, err := FromText("1,2\n", Options{Columns: []string{"a", "a"}})
	assert.ErrorIs(t, err, table.ErrDuplicateColumn)
}

func TestFromText_DuplicateHeaders(t *testing.T) {
	doc, err := FromText("column1,column1.1,column1\n1,2,3\n", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"column1", "column1.1", "column1.2"}, doc.Table.Columns())
}

func TestFromText_Empty(t *testing.T) {
	doc, err := FromText("", Options{})
	require.NoError(t, err)
	assert.Empty(t, doc.Table.Columns())
	assert.Equal(t, 0, doc.Table.Len())
	assert.False(t, doc.HasError())

	doc, err = FromText("id,name\n", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, doc.Table.Columns())
	assert.Equal(t, 0, doc.Table.Len())
}

func TestFromText_RaggedRows(t *testing.T) {
	doc, err := FromText("a,b,c\n1,2\n4,5,6,7\n8,9,10\n", Options{})
	require.NoError(t, err)

	assert.True(t, doc.HasError())
	assert.Equal(t, []RaggedLine{
		{Line: 2, Fields: 2, Expected: 3},
		{Line: 3, Fields: 4, Expected: 3},
	}, doc.RaggedLines)

	rows := doc.Table.Rows()
	require.Len(t, rows, 3)
	assert.True(t, rows[0]["c"].IsNull(), "missing field is null")
	assert.Equal(t, table.String("6"), rows[1]["c"])
	assert.Len(t, rows[1], 3, "extra field dropped")
}

func TestFromText_Comma(t *testing.T) {
	doc, err := FromText("id;name\n1;Alice\n", Options{Comma: ';'})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, doc.Table.Columns())
}

func TestFromFile_UTF16(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utf16.csv")
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	data, err := enc.Bytes([]byte("id,name\n1,Zoë\n"))
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte{0xFF, 0xFE}))
	require.NoError(t, os.WriteFile(path, data, 0o644))

	doc, err := FromFile(path, Options{})
	require.NoError(t, err)

	assert.Equal(t, UTF16LE, doc.Encoding)
	assert.Equal(t, path, doc.Path)
	assert.Equal(t, path, doc.Table.Source())
	assert.Equal(t, []string{"id", "name"}, doc.Table.Columns(), "BOM is not part of the header")
	v, err := doc.Table.GetValue(table.String("1"), "id", "name")
	require.NoError(t, err)
	assert.Equal(t, table.String("Zoë"), v)
}

func TestFromFile_Windows1252(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latin.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name\n1,caf\xe9\n"), 0o644))

	doc, err := FromFile(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, Windows1252, doc.Encoding)
	v, err := doc.Table.GetValue(table.String("1"), "id", "name")
	require.NoError(t, err)
	assert.Equal(t, table.String("café"), v)
}

func TestFromFile_UTF8BOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bom.csv")
	require.NoError(t, os.WriteFile(path, append([]byte{0xEF, 0xBB, 0xBF}, "id\n1\n"...), 0o644))

	doc, err := FromFile(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, UTF8BOM, doc.Encoding)
	assert.Equal(t, []string{"id"}, doc.Table.Columns())
}

func TestFromFile_Missing(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "nope.csv"), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = FromFile(t.TempDir(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a directory")
}

func TestFromReader_ForcedUTF8(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("id,name\n1,he\x80lo\n")...)

	doc, err := FromReader(bytes.NewReader(input), "upload.csv", Options{Encoding: UTF8})
	require.NoError(t, err)

	assert.Equal(t, UTF8, doc.Encoding)
	assert.Equal(t, int64(len(input)), doc.BytesRead)
	assert.Equal(t, []string{"id", "name"}, doc.Table.Columns())
	v, err := doc.Table.GetValue(table.String("1"), "id", "name")
	require.NoError(t, err)
	assert.Equal(t, table.String("he?lo"), v)
}

func TestFromReader_ForcedWindows1252(t *testing.T) {
	doc, err := FromReader(strings.NewReader("id,name\n1,na\xefve\n"), "upload.csv", Options{Encoding: Windows1252})
	require.NoError(t, err)
	v, err := doc.Table.GetValue(table.String("1"), "id", "name")
	require.NoError(t, err)
	assert.Equal(t, table.String("naïve"), v)
}

func TestFromReader_MaxBytes(t *testing.T) {
	input := "id\n" + strings.Repeat("1234567890\n", 100)

	_, err := FromReader(strings.NewReader(input), "big.csv", Options{MaxBytes: 64})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Contains(t, err.Error(), "file too large")

	_, err = FromReader(strings.NewReader(input), "big.csv", Options{MaxBytes: 64, Encoding: UTF8})
	assert.ErrorIs(t, err, ErrTooLarge)

	doc, err := FromReader(strings.NewReader(input), "big.csv", Options{MaxBytes: int64(len(input))})
	require.NoError(t, err)
	assert.Equal(t, 100, doc.Table.Len())
}

func TestRecords(t *testing.T) {
	tbl, err := table.New([]string{"id", "v"}, []table.Row{
		{"id": table.String("1"), "v": table.Null()},
		{"id": table.String("2"), "v": table.String("x")},
	})
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"id", "v"}, {"1", ""}, {"2", "x"}}, Records(tbl))
}

func TestWrite(t *testing.T) {
	doc, err := FromText("id,name\n1,\"Smith, Bob\"\n", Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, doc.Table))
	assert.Equal(t, "id,name\n1,\"Smith, Bob\"\n", buf.String())
}

func TestSave_RoundTripEncoding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	data, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte("id,score\n1, 95 \n"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	doc, err := FromFile(path, Options{})
	require.NoError(t, err)
	doc.Table.StripWhitespace()
	require.NoError(t, doc.Save())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte{0xFF, 0xFE}), "written back as UTF-16")

	again, err := FromFile(path, Options{})
	require.NoError(t, err)
	v, err := again.Table.GetValue(table.String("1"), "id", "score")
	require.NoError(t, err)
	assert.Equal(t, table.String("95"), v)
}

func TestSave_NotFromFile(t *testing.T) {
	doc, err := FromText("id\n1\n", Options{})
	require.NoError(t, err)
	assert.ErrorIs(t, doc.Save(), ErrNotFromFile)

	doc.Path = t.TempDir()
	assert.ErrorIs(t, doc.Save(), ErrNotFromFile)
}

func TestEncode_UnknownEncoding(t *testing.T) {
	tbl, err := table.New([]string{"a"}, nil)
	require.NoError(t, err)
	_, err = Encode(tbl, Encoding("ebcdic"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encoding error")
}

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		in      string
		want    Encoding
		wantErr bool
	}{
		{"", "", false},
		{"auto", "", false},
		{"UTF-8", UTF8, false},
		{"utf-16", UTF16LE, false},
		{"utf-16be", UTF16BE, false},
		{"cp1252", Windows1252, false},
		{"utf-8-sig", UTF8BOM, false},
		{"klingon", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEncoding(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Encoding
	}{
		{"ascii", []byte("a,b\n"), UTF8},
		{"utf8", []byte("naïve"), UTF8},
		{"utf8 bom", []byte{0xEF, 0xBB, 0xBF, 'a'}, UTF8BOM},
		{"utf16le bom", []byte{0xFF, 0xFE, 'a', 0}, UTF16LE},
		{"utf16be bom", []byte{0xFE, 0xFF, 0, 'a'}, UTF16BE},
		{"utf16le no bom", []byte{'a', 0, ',', 0}, UTF16LE},
		{"utf16be no bom", []byte{0, 'a', 0, ','}, UTF16BE},
		{"latin1", []byte("caf\xe9"), Windows1252},
		{"empty", nil, UTF8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.data))
		})
	}
}

func TestUniqueNames(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{[]string{"a", "b"}, []string{"a", "b"}},
		{[]string{"a", "a", "a"}, []string{"a", "a.1", "a.2"}},
		{[]string{"a", "a.1", "a"}, []string{"a", "a.1", "a.2"}},
		{[]string{"", ""}, []string{"", ".1"}},
		{nil, []string{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UniqueNames(tt.in), "UniqueNames(%q)", tt.in)
	}
}

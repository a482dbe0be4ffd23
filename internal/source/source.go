// Package source turns CSV text, lines, files and upload streams into
// tables, and writes tables back out.
//
// The first record is the header unless Options.Columns is set, in which
// case every record is data. Repeated header names are made unique with
// numeric suffixes. Records with too few fields get Null cells for the
// missing columns; records with too many have the extras dropped. Both
// cases are recorded on the Document so callers can decide whether the
// input was usable.
package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/transform"

	"github.com/JonMunkholm/csvcompare/internal/table"
)

// Source labels for tables that were not read from a file.
const (
	LabelText  = "init from text"
	LabelLines = "init from lines"
)

// Options controls parsing.
type Options struct {
	// Columns, when set, names the columns and makes every record data.
	Columns []string

	// Encoding forces an input encoding. Empty means detect.
	Encoding Encoding

	// Comma is the field delimiter. Zero means ','.
	Comma rune

	// MaxBytes limits how much is read from a reader. Zero is unlimited.
	MaxBytes int64
}

// RaggedLine describes a record whose field count differed from the
// column count.
type RaggedLine struct {
	Line     int `json:"line"`
	Fields   int `json:"fields"`
	Expected int `json:"expected"`
}

// Document is a parsed table plus what was learned while reading it.
type Document struct {
	Table       *table.Table
	Encoding    Encoding
	Path        string
	RaggedLines []RaggedLine
	BytesRead   int64
}

// HasError reports whether any record had the wrong number of fields.
func (d *Document) HasError() bool {
	return len(d.RaggedLines) > 0
}

// FromText parses CSV text.
func FromText(text string, opts Options) (*Document, error) {
	doc, err := parse(strings.NewReader(text), LabelText, opts)
	if err != nil {
		return nil, err
	}
	doc.Encoding = UTF8
	doc.BytesRead = int64(len(text))
	return doc, nil
}

// FromLines parses CSV lines joined with newlines.
func FromLines(lines []string, opts Options) (*Document, error) {
	text := strings.Join(lines, "\n")
	doc, err := parse(strings.NewReader(text), LabelLines, opts)
	if err != nil {
		return nil, err
	}
	doc.Encoding = UTF8
	doc.BytesRead = int64(len(text))
	return doc, nil
}

// FromFile reads and parses the file at path, detecting its encoding unless
// one is forced.
func FromFile(path string, opts Options) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("open %s: is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := FromReader(f, path, opts)
	if err != nil {
		return nil, err
	}
	doc.Path = path
	return doc, nil
}

// FromReader parses CSV from r, labelling the table with name.
//
// With a forced encoding the input is decoded as it streams. A forced UTF-8
// stream also has its BOM stripped and invalid bytes replaced with '?'.
// Without one the whole input is read so the encoding can be detected.
func FromReader(r io.Reader, name string, opts Options) (*Document, error) {
	counter := NewCountingReader(r, opts.MaxBytes)

	var (
		in  io.Reader
		enc = opts.Encoding
	)
	switch enc {
	case "":
		data, err := io.ReadAll(counter)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		enc = Detect(data)
		text, err := Decode(data, enc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		in = strings.NewReader(text)
	case UTF8:
		in = normalizeUTF8(counter)
	default:
		c, err := codec(enc)
		if err != nil {
			return nil, err
		}
		in = transform.NewReader(counter, c.NewDecoder())
	}

	doc, err := parse(in, name, opts)
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return nil, err
	}
	doc.Encoding = enc
	doc.BytesRead = counter.N
	return doc, nil
}

func parse(r io.Reader, label string, opts Options) (*Document, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}

	doc := &Document{}
	var columns []string
	if len(opts.Columns) > 0 {
		columns = opts.Columns
	} else {
		header, err := cr.Read()
		switch {
		case errors.Is(err, io.EOF):
			t, err := table.New(nil, nil, table.WithSource(label))
			if err != nil {
				return nil, err
			}
			doc.Table = t
			return doc, nil
		case err != nil:
			return nil, csvError(err)
		}
		columns = UniqueNames(header)
	}

	var rows []table.Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}

		if len(rec) != len(columns) {
			line, _ := cr.FieldPos(0)
			doc.RaggedLines = append(doc.RaggedLines, RaggedLine{
				Line:     line,
				Fields:   len(rec),
				Expected: len(columns),
			})
		}

		row := make(table.Row, len(columns))
		for i, c := range columns {
			if i < len(rec) {
				row[c] = table.String(rec[i])
			} else {
				row[c] = table.Null()
			}
		}
		rows = append(rows, row)
	}

	t, err := table.New(columns, rows, table.WithSource(label))
	if err != nil {
		return nil, err
	}
	doc.Table = t
	return doc, nil
}

func csvError(err error) error {
	if errors.Is(err, ErrTooLarge) {
		return err
	}
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return fmt.Errorf("invalid csv: line %d: %w", pe.Line, pe.Err)
	}
	return fmt.Errorf("invalid csv: %w", err)
}

// Records serializes a table as a header followed by one record per row.
// Null cells become empty fields.
func Records(t *table.Table) [][]string {
	cols := t.Columns()
	out := make([][]string, 0, t.Len()+1)
	out = append(out, cols)
	for _, r := range t.All() {
		rec := make([]string, len(cols))
		for i, c := range cols {
			rec[i] = r[c].Str()
		}
		out = append(out, rec)
	}
	return out
}

// Write encodes t as UTF-8 CSV.
func Write(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(Records(t)); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// Encode renders t as CSV bytes in enc.
func Encode(t *table.Table, enc Encoding) ([]byte, error) {
	c, err := codec(enc)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := transform.NewWriter(&buf, c.NewEncoder())
	if err := Write(w, t); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("encoding error: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes t to path in enc, replacing any existing file.
func WriteFile(path string, t *table.Table, enc Encoding) error {
	data, err := Encode(t, enc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ErrNotFromFile is returned by Save for documents that were not read from
// a file.
var ErrNotFromFile = errors.New("document was not loaded from a file")

// Save writes the document's table back to the file it came from, in the
// encoding it was read with. Set Table first to save a transformed copy.
func (d *Document) Save() error {
	if d.Path == "" {
		return ErrNotFromFile
	}
	if info, err := os.Stat(d.Path); err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s is not a regular file", ErrNotFromFile, d.Path)
	}
	return WriteFile(d.Path, d.Table, d.Encoding)
}

// Package plan reads comparison plans from YAML or JSON and registers
// their transforms on a Comparator.
//
// A plan lists its operations by kind rather than as one ordered list, so
// Apply registers them in a fixed order:
//
//	strip_column_names, strip_whitespace, transforms, add_columns,
//	drop_rows, drop_rows_where, drop_columns
//
// Dropping last lets filters and derived columns read columns that the
// plan also removes.
package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/csvcompare/internal/compare"
	"github.com/JonMunkholm/csvcompare/internal/table"
)

// Format is a plan serialization.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

var (
	// ErrInvalidPlan is matched by every plan validation failure.
	ErrInvalidPlan = errors.New("invalid plan")

	// ErrUnknownOp is matched when a plan names an operation that does
	// not exist.
	ErrUnknownOp = errors.New("unknown operation")
)

// Plan describes the preparation and comparison of two tables.
type Plan struct {
	Index            string      `yaml:"index" json:"index"`
	Snapshot         bool        `yaml:"snapshot" json:"snapshot"`
	StripWhitespace  bool        `yaml:"strip_whitespace" json:"strip_whitespace"`
	StripColumnNames bool        `yaml:"strip_column_names" json:"strip_column_names"`
	DropColumns      []string    `yaml:"drop_columns" json:"drop_columns"`
	DropRows         []RowFilter `yaml:"drop_rows" json:"drop_rows"`
	DropRowsWhere    []Condition `yaml:"drop_rows_where" json:"drop_rows_where"`
	Transforms       []Step      `yaml:"transforms" json:"transforms"`
	AddColumns       []Step      `yaml:"add_columns" json:"add_columns"`
}

// RowFilter drops rows whose Column holds one of Values.
type RowFilter struct {
	Column string   `yaml:"column" json:"column"`
	Values []string `yaml:"values" json:"values"`
}

// Condition drops rows for which Op applied to Column is true.
type Condition struct {
	Column string   `yaml:"column" json:"column"`
	Op     string   `yaml:"op" json:"op"`
	Value  string   `yaml:"value" json:"value"`
	Values []string `yaml:"values" json:"values"`
}

// Step rewrites Column with Op. In add_columns, Column is the new column
// and From names the column the value is derived from; concat reads its
// parts from Args instead.
type Step struct {
	Column string   `yaml:"column" json:"column"`
	From   string   `yaml:"from" json:"from"`
	Op     string   `yaml:"op" json:"op"`
	Args   []string `yaml:"args" json:"args"`
}

// ValidationError lists every problem found in a plan.
type ValidationError struct {
	Problems  []string
	unknownOp bool
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s:\n  - %s", ErrInvalidPlan, strings.Join(e.Problems, "\n  - "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidPlan || (target == ErrUnknownOp && e.unknownOp)
}

// FormatFor picks a format from a file name's extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unsupported plan file extension %q", ErrInvalidPlan, filepath.Ext(path))
	}
}

// Parse decodes and validates a plan. Unknown fields are rejected.
func Parse(data []byte, format Format) (*Plan, error) {
	p := &Plan{}
	switch format {
	case FormatYAML, "":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidPlan, format)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ParseText decodes a plan of either format. JSON plans parse as YAML.
func ParseText(text string) (*Plan, error) {
	return Parse([]byte(text), FormatYAML)
}

// Load reads a plan file, choosing the format from its extension.
func Load(path string) (*Plan, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}
	p, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return p, nil
}

// Validate reports every problem in the plan at once.
func (p *Plan) Validate() error {
	v := &ValidationError{}
	add := func(format string, args ...any) {
		v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
	}

	for i, c := range p.DropColumns {
		if strings.TrimSpace(c) == "" {
			add("drop_columns[%d]: column name is empty", i)
		}
	}

	for i, f := range p.DropRows {
		if f.Column == "" {
			add("drop_rows[%d]: column is required", i)
		}
		if len(f.Values) == 0 {
			add("drop_rows[%d]: at least one value is required", i)
		}
	}

	for i, c := range p.DropRowsWhere {
		if c.Column == "" {
			add("drop_rows_where[%d]: column is required", i)
		}
		if err := c.check(); err != nil {
			if errors.Is(err, ErrUnknownOp) {
				v.unknownOp = true
			}
			add("drop_rows_where[%d]: %v", i, err)
		}
	}

	for i, s := range p.Transforms {
		if s.Column == "" {
			add("transforms[%d]: column is required", i)
		}
		if err := checkOp(s.Op, s.Args); err != nil {
			if errors.Is(err, ErrUnknownOp) {
				v.unknownOp = true
			}
			add("transforms[%d]: %v", i, err)
		}
	}

	added := make(map[string]bool)
	for i, s := range p.AddColumns {
		if s.Column == "" {
			add("add_columns[%d]: column is required", i)
		} else if added[s.Column] {
			add("add_columns[%d]: column %q is added twice", i, s.Column)
		}
		added[s.Column] = true

		if s.Op != OpConcat && s.From == "" {
			add("add_columns[%d]: from is required for %q", i, s.Op)
		}
		if err := checkOp(s.Op, s.Args); err != nil {
			if errors.Is(err, ErrUnknownOp) {
				v.unknownOp = true
			}
			add("add_columns[%d]: %v", i, err)
		}
	}

	if len(v.Problems) > 0 {
		return v
	}
	return nil
}

// IsEmpty reports whether the plan registers no transforms.
func (p *Plan) IsEmpty() bool {
	return !p.StripWhitespace && !p.StripColumnNames &&
		len(p.DropColumns) == 0 && len(p.DropRows) == 0 && len(p.DropRowsWhere) == 0 &&
		len(p.Transforms) == 0 && len(p.AddColumns) == 0
}

// Steps returns the plan's operations in registration order. An
// add_columns step whose from column is missing reads it as null.
func (p *Plan) Steps() ([]compare.Transform, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var out []compare.Transform
	if p.StripColumnNames {
		out = append(out, compare.StripColumnNames())
	}
	if p.StripWhitespace {
		out = append(out, compare.StripWhitespace())
	}
	for _, s := range p.Transforms {
		fn := cellFunc(s.Op, s.Args)
		col := s.Column
		out = append(out, compare.ApplyTransform(col, func(r table.Row) table.Value {
			return fn(r, r.Get(col))
		}).WithLabel(fmt.Sprintf("%s(%s: %s)", compare.KindApplyTransform, col, s.Op)))
	}
	for _, s := range p.AddColumns {
		fn := cellFunc(s.Op, s.Args)
		from := s.From
		out = append(out, compare.AddColumn(s.Column, func(r table.Row) table.Value {
			return fn(r, r.Get(from))
		}).WithLabel(fmt.Sprintf("%s(%s: %s)", compare.KindAddColumn, s.Column, s.Op)))
	}
	for _, f := range p.DropRows {
		out = append(out, compare.DropRows(f.Column, table.Strings(f.Values...)...))
	}
	for _, c := range p.DropRowsWhere {
		out = append(out, compare.DropRowsBy(c.predicate()).WithLabel(
			fmt.Sprintf("%s(%s)", "drop_rows_where", c.describe())))
	}
	if len(p.DropColumns) > 0 {
		out = append(out, compare.DropColumns(p.DropColumns...))
	}
	return out, nil
}

// Apply registers the plan's transforms on c. Nothing runs until c is
// applied or compared.
func (p *Plan) Apply(c *compare.Comparator) error {
	steps, err := p.Steps()
	if err != nil {
		return err
	}
	for _, tr := range steps {
		c.Register(tr)
	}
	return nil
}

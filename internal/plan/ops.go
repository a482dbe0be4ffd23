package plan

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/JonMunkholm/csvcompare/internal/table"
)

// Cell operations for transforms and add_columns.
const (
	OpTrim           = "trim"
	OpLower          = "lower"
	OpUpper          = "upper"
	OpCollapseSpaces = "collapse_spaces"
	OpReplace        = "replace"
	OpRegexReplace   = "regex_replace"
	OpPrefix         = "prefix"
	OpSuffix         = "suffix"
	OpDefault        = "default"
	OpConcat         = "concat"
)

// Row conditions for drop_rows_where.
const (
	CondEq       = "eq"
	CondContains = "contains"
	CondStarts   = "starts"
	CondEnds     = "ends"
	CondEmpty    = "empty"
	CondRegex    = "regex"
	CondIn       = "in"
)

var opArgs = map[string][2]int{
	OpTrim:           {0, 0},
	OpLower:          {0, 0},
	OpUpper:          {0, 0},
	OpCollapseSpaces: {0, 0},
	OpReplace:        {2, 2},
	OpRegexReplace:   {2, 2},
	OpPrefix:         {1, 1},
	OpSuffix:         {1, 1},
	OpDefault:        {1, 1},
	OpConcat:         {1, -1},
}

var spaces = regexp.MustCompile(`\s+`)

func checkOp(op string, args []string) error {
	n, ok := opArgs[op]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownOp, op)
	}
	switch {
	case n[1] < 0 && len(args) < n[0]:
		return fmt.Errorf("%s needs at least %d argument(s), got %d", op, n[0], len(args))
	case n[1] >= 0 && (len(args) < n[0] || len(args) > n[1]):
		return fmt.Errorf("%s takes %d argument(s), got %d", op, n[0], len(args))
	}
	if op == OpRegexReplace {
		if _, err := regexp.Compile(args[0]); err != nil {
			return fmt.Errorf("%s: %v", op, err)
		}
	}
	return nil
}

// cellFunc builds the function for a checked op. It receives the whole row
// and the current cell. Null cells pass through unchanged except for
// default, which fills them, and concat, which reads them as "".
func cellFunc(op string, args []string) func(table.Row, table.Value) table.Value {
	str := func(f func(string) string) func(table.Row, table.Value) table.Value {
		return func(_ table.Row, v table.Value) table.Value {
			if v.IsNull() {
				return v
			}
			return table.String(f(v.Str()))
		}
	}

	switch op {
	case OpTrim:
		return str(strings.TrimSpace)
	case OpLower:
		return str(strings.ToLower)
	case OpUpper:
		return str(strings.ToUpper)
	case OpCollapseSpaces:
		return str(func(s string) string {
			return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
		})
	case OpReplace:
		return str(func(s string) string { return strings.ReplaceAll(s, args[0], args[1]) })
	case OpRegexReplace:
		re := regexp.MustCompile(args[0])
		return str(func(s string) string { return re.ReplaceAllString(s, args[1]) })
	case OpPrefix:
		return str(func(s string) string { return args[0] + s })
	case OpSuffix:
		return str(func(s string) string { return s + args[0] })
	case OpDefault:
		return func(_ table.Row, v table.Value) table.Value {
			if v.IsNull() || v.Str() == "" {
				return table.String(args[0])
			}
			return v
		}
	case OpConcat:
		return func(r table.Row, _ table.Value) table.Value {
			var b strings.Builder
			for _, part := range args {
				if lit, ok := literal(part); ok {
					b.WriteString(lit)
					continue
				}
				b.WriteString(r.Get(part).Str())
			}
			return table.String(b.String())
		}
	}
	panic("plan: unchecked op " + op)
}

// literal unquotes a concat part written as 'text'.
func literal(part string) (string, bool) {
	if len(part) >= 2 && part[0] == '\'' && part[len(part)-1] == '\'' {
		return part[1 : len(part)-1], true
	}
	return "", false
}

func (c Condition) check() error {
	switch c.Op {
	case CondEq, CondContains, CondStarts, CondEnds:
		return nil
	case CondEmpty:
		if c.Value != "" || len(c.Values) > 0 {
			return fmt.Errorf("%s takes no value", c.Op)
		}
		return nil
	case CondRegex:
		if _, err := regexp.Compile(c.Value); err != nil {
			return fmt.Errorf("%s: %v", c.Op, err)
		}
		return nil
	case CondIn:
		if len(c.Values) == 0 {
			return fmt.Errorf("%s needs values", c.Op)
		}
		return nil
	default:
		return fmt.Errorf("%w %q", ErrUnknownOp, c.Op)
	}
}

// predicate builds the row test for a checked condition. Only empty
// matches a null cell.
func (c Condition) predicate() table.Predicate {
	col := c.Column
	if c.Op == CondEmpty {
		return func(r table.Row) bool {
			v := r.Get(col)
			return v.IsNull() || v.Str() == ""
		}
	}

	var match func(string) bool
	switch c.Op {
	case CondEq:
		match = func(s string) bool { return s == c.Value }
	case CondContains:
		match = func(s string) bool { return strings.Contains(s, c.Value) }
	case CondStarts:
		match = func(s string) bool { return strings.HasPrefix(s, c.Value) }
	case CondEnds:
		match = func(s string) bool { return strings.HasSuffix(s, c.Value) }
	case CondRegex:
		re := regexp.MustCompile(c.Value)
		match = re.MatchString
	case CondIn:
		values := slices.Clone(c.Values)
		match = func(s string) bool { return slices.Contains(values, s) }
	default:
		panic("plan: unchecked condition " + c.Op)
	}

	return func(r table.Row) bool {
		v := r.Get(col)
		return !v.IsNull() && match(v.Str())
	}
}

func (c Condition) describe() string {
	switch c.Op {
	case CondEmpty:
		return fmt.Sprintf("%s %s", c.Column, c.Op)
	case CondIn:
		return fmt.Sprintf("%s in [%s]", c.Column, strings.Join(c.Values, ", "))
	default:
		return fmt.Sprintf("%s %s %q", c.Column, c.Op, c.Value)
	}
}

// Package compare aligns two tables by a key column and reports how they
// differ.
//
// A Comparator owns two tables and a queue of transforms. Transforms are
// queued by the registration methods and run, in registration order, on
// both tables the next time Apply or Compare is called. The queue is
// drained by that first run whether or not it succeeds, so a transform is
// never applied twice.
//
// By default a failing transform leaves whatever already happened in place:
// earlier transforms stay applied, and if the failure was on the second
// table the first table keeps the failing transform's effect too. WithSnapshot
// makes each batch all-or-nothing by working on copies and swapping them in
// only when every transform succeeded on both tables.
package compare

import (
	"log/slog"

	"github.com/JonMunkholm/csvcompare/internal/table"
)

// Comparator holds two tables and the transforms waiting to run on them.
// It is not safe for concurrent use.
type Comparator struct {
	first    *table.Table
	second   *table.Table
	pending  []Transform
	applied  []string
	snapshot bool
	logger   *slog.Logger
}

// Option configures a Comparator.
type Option func(*Comparator)

// WithSnapshot makes each Apply atomic across both tables.
func WithSnapshot() Option {
	return func(c *Comparator) { c.snapshot = true }
}

// WithLogger sets the logger used for transform and duplicate key events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Comparator) {
		if l != nil {
			c.logger = l
		}
	}
}

// New wraps two tables. The Comparator takes ownership of both; callers must
// not mutate them afterwards.
func New(first, second *table.Table, opts ...Option) *Comparator {
	c := &Comparator{
		first:  first,
		second: second,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// First returns the first table in its current state.
func (c *Comparator) First() *table.Table { return c.first }

// Second returns the second table in its current state.
func (c *Comparator) Second() *table.Table { return c.second }

// Snapshot reports whether batches are applied atomically.
func (c *Comparator) Snapshot() bool { return c.snapshot }

// Pending returns the number of queued transforms.
func (c *Comparator) Pending() int { return len(c.pending) }

// Applied returns descriptions of every transform that has run on both
// tables, in order.
func (c *Comparator) Applied() []string { return append([]string(nil), c.applied...) }

// Register queues a transform.
func (c *Comparator) Register(tr Transform) *Comparator {
	c.pending = append(c.pending, tr)
	return c
}

// StripWhitespace queues a whitespace trim of every cell.
func (c *Comparator) StripWhitespace() *Comparator {
	return c.Register(StripWhitespace())
}

// StripColumnNames queues a whitespace trim of every column name.
func (c *Comparator) StripColumnNames() *Comparator {
	return c.Register(StripColumnNames())
}

// DropColumns queues removal of the named columns.
func (c *Comparator) DropColumns(names ...string) *Comparator {
	return c.Register(DropColumns(names...))
}

// DropRows queues removal of rows whose column holds one of values.
func (c *Comparator) DropRows(column string, values ...table.Value) *Comparator {
	return c.Register(DropRows(column, values...))
}

// DropRowsBy queues removal of rows matching pred.
func (c *Comparator) DropRowsBy(pred table.Predicate) *Comparator {
	return c.Register(DropRowsBy(pred))
}

// ApplyTransform queues a rewrite of column with fn(row).
func (c *Comparator) ApplyTransform(column string, fn table.TransformFunc) *Comparator {
	return c.Register(ApplyTransform(column, fn))
}

// AddColumn queues a new derived column.
func (c *Comparator) AddColumn(column string, fn table.TransformFunc) *Comparator {
	return c.Register(AddColumn(column, fn))
}

// Apply runs and drains the queue. Each transform is run on the first table
// and then the second before the next transform starts. The first failure
// stops the batch and is returned as a *TransformError; the rest of the
// batch is discarded.
func (c *Comparator) Apply() error {
	batch := c.pending
	c.pending = nil
	if len(batch) == 0 {
		return nil
	}

	first, second := c.first, c.second
	if c.snapshot {
		first, second = first.Clone(), second.Clone()
	}

	var done []string
	for i, tr := range batch {
		desc := tr.Describe()
		if err := tr.Apply(first); err != nil {
			return c.fail(i, desc, SideFirst, err, len(batch), done)
		}
		if err := tr.Apply(second); err != nil {
			return c.fail(i, desc, SideSecond, err, len(batch), done)
		}
		c.logger.Debug("transform applied", "index", i, "transform", desc)
		done = append(done, desc)
		if !c.snapshot {
			c.applied = append(c.applied, desc)
		}
	}

	if c.snapshot {
		c.first, c.second = first, second
		c.applied = append(c.applied, done...)
	}
	return nil
}

func (c *Comparator) fail(i int, desc string, side Side, err error, total int, done []string) error {
	c.logger.Warn("transform failed",
		"index", i,
		"transform", desc,
		"side", string(side),
		"discarded", total-i-1,
		"rolled_back", c.snapshot,
		"error", err,
	)
	return &TransformError{Index: i, Transform: desc, Side: side, Err: err}
}

// Compare applies any queued transforms and diffs the two tables on index.
// The returned Output is independent of the Comparator.
func (c *Comparator) Compare(index string) (*Output, error) {
	if err := c.Apply(); err != nil {
		return nil, err
	}

	out, err := Diff(c.first, c.second, index)
	if err != nil {
		return nil, err
	}
	out.Transforms = c.Applied()

	if len(out.DuplicateKeysInFirst) > 0 || len(out.DuplicateKeysInSecond) > 0 {
		c.logger.Warn("duplicate keys in index column, last row wins",
			"index", index,
			"first", len(out.DuplicateKeysInFirst),
			"second", len(out.DuplicateKeysInSecond),
		)
	}
	return out, nil
}

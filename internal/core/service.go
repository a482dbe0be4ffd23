package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/csvcompare/internal/compare"
	"github.com/JonMunkholm/csvcompare/internal/logging"
	"github.com/JonMunkholm/csvcompare/internal/plan"
	"github.com/JonMunkholm/csvcompare/internal/source"
)

// ErrEmptyFile is returned for an input with no header row.
var ErrEmptyFile = errors.New("empty file")

// Input is one side of a comparison. Path is read from disk when set;
// otherwise Reader supplies the content and Name labels it.
type Input struct {
	Name     string
	Path     string
	Reader   io.Reader
	Encoding source.Encoding
}

func (in Input) label() string {
	if in.Path != "" {
		return in.Path
	}
	return in.Name
}

// RunRequest describes a comparison. Index overrides Plan.Index. Extra
// transforms are registered after the plan's.
type RunRequest struct {
	First      Input
	Second     Input
	Index      string
	Plan       *plan.Plan
	Transforms []compare.Transform
	Snapshot   bool

	// Columns, when set, names the columns of two headerless inputs.
	Columns []string
}

// RunResult is a finished comparison.
type RunResult struct {
	Run    *Run
	Output *compare.Output
	First  *source.Document
	Second *source.Document
}

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	MaxConcurrent int
	MaxWait       time.Duration
	MaxFileSize   int64
	Timeout       time.Duration

	// Snapshot makes every run all-or-nothing regardless of its plan.
	Snapshot bool

	// Logger replaces the request-scoped default logger for runs.
	Logger *slog.Logger
}

// Service runs comparisons and records them.
type Service struct {
	store   RunStore
	limiter *RunLimiter
	opts    Options
	now     func() time.Time
}

// NewService creates a Service. A nil store keeps runs in memory.
func NewService(store RunStore, opts Options) *Service {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Service{
		store:   store,
		limiter: NewRunLimiter(opts.MaxConcurrent, opts.MaxWait),
		opts:    opts,
		now:     time.Now,
	}
}

// Store returns the run store.
func (s *Service) Store() RunStore { return s.store }

// MaxFileSize is the per-input byte limit, or 0 for none.
func (s *Service) MaxFileSize() int64 { return s.opts.MaxFileSize }

// Run loads both inputs concurrently, applies the plan, compares and
// stores the result. It waits for a run slot first.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	index := req.Index
	if index == "" && req.Plan != nil {
		index = req.Plan.Index
	}
	if index == "" {
		return nil, ErrNoIndex
	}

	release, err := s.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	id := uuid.New()
	logger := s.runLogger(ctx).With("run_id", id, "index", index)
	start := s.now()

	var first, second *source.Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, err := s.load(gctx, req.First, req.Columns)
		first = doc
		return err
	})
	g.Go(func() error {
		doc, err := s.load(gctx, req.Second, req.Columns)
		second = doc
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Warn("comparison input failed", "error", err)
		return nil, err
	}

	for _, doc := range []*source.Document{first, second} {
		if doc.HasError() {
			logger.Warn("ragged rows in input",
				"source", doc.Table.Source(),
				"lines", len(doc.RaggedLines),
			)
		}
	}

	copts := []compare.Option{compare.WithLogger(logger)}
	if s.opts.Snapshot || req.Snapshot || (req.Plan != nil && req.Plan.Snapshot) {
		copts = append(copts, compare.WithSnapshot())
	}
	c := compare.New(first.Table, second.Table, copts...)
	if req.Plan != nil {
		if err := req.Plan.Apply(c); err != nil {
			return nil, err
		}
	}
	for _, tr := range req.Transforms {
		c.Register(tr)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := c.Compare(index)
	if err != nil {
		logger.Warn("comparison failed", "error", err)
		return nil, err
	}

	run := &Run{
		ID:           id,
		FirstSource:  out.FirstSource,
		SecondSource: out.SecondSource,
		IndexColumn:  index,
		MatchResult:  out.MatchResult,
		Stats:        out.Stats(),
		Output:       out,
		IPAddress:    IPAddressFromContext(ctx),
		UserAgent:    UserAgentFromContext(ctx),
		Duration:     s.now().Sub(start),
		CreatedAt:    start.UTC(),
	}
	if err := s.store.SaveRun(ctx, run); err != nil {
		logger.Error("failed to save run", "error", err)
		return nil, fmt.Errorf("save run: %w", err)
	}

	stats := run.Stats
	logger.Info("comparison completed",
		"first", run.FirstSource,
		"second", run.SecondSource,
		"match", run.MatchResult,
		"extra_columns", stats.ExtraColumns,
		"extra_rows", stats.ExtraRows,
		"mismatches", stats.Mismatches,
		"duplicate_keys", stats.DuplicateKeys,
		"transforms", len(out.Transforms),
		"duration_ms", run.Duration.Milliseconds(),
	)

	return &RunResult{Run: run, Output: out, First: first, Second: second}, nil
}

func (s *Service) runLogger(ctx context.Context) *slog.Logger {
	if s.opts.Logger != nil {
		return s.opts.Logger
	}
	return logging.FromContext(ctx)
}

func (s *Service) load(ctx context.Context, in Input, columns []string) (*source.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := source.Options{
		Columns:  columns,
		Encoding: in.Encoding,
		MaxBytes: s.opts.MaxFileSize,
	}

	var (
		doc *source.Document
		err error
	)
	switch {
	case in.Path != "":
		doc, err = source.FromFile(in.Path, opts)
	case in.Reader != nil:
		doc, err = source.FromReader(in.Reader, in.Name, opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoFile, in.label())
	}
	if err != nil {
		return nil, err
	}
	if len(doc.Table.Columns()) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, in.label())
	}
	return doc, nil
}

// GetRun returns a stored run.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	return s.store.GetRun(ctx, id)
}

// ListRuns returns stored runs newest first. A non-positive limit means 50.
func (s *Service) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListRuns(ctx, limit, offset)
}

// LimiterStatus reports run slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForRuns blocks until no comparison is running or ctx is done.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

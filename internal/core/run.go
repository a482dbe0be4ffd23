package core

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvcompare/internal/compare"
)

var (
	// ErrRunNotFound is returned by a RunStore for an unknown run ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrNoIndex is returned when neither the request nor its plan names
	// an index column.
	ErrNoIndex = errors.New("index column is required")

	// ErrNoFile is returned when an input has nothing to read.
	ErrNoFile = errors.New("no file provided")
)

// Run is the stored record of one comparison.
type Run struct {
	ID           uuid.UUID       `json:"id"`
	FirstSource  string          `json:"first_source"`
	SecondSource string          `json:"second_source"`
	IndexColumn  string          `json:"index_column"`
	MatchResult  bool            `json:"match_result"`
	Stats        compare.Stats   `json:"stats"`
	Output       *compare.Output `json:"output,omitempty"`
	IPAddress    string          `json:"ip_address,omitempty"`
	UserAgent    string          `json:"user_agent,omitempty"`
	Duration     time.Duration   `json:"duration_ns"`
	CreatedAt    time.Time       `json:"created_at"`
}

// RunStore persists runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	// ListRuns returns runs newest first without their Output.
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
	// DeleteRunsBefore removes runs created before cutoff and returns how
	// many were removed.
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// MemoryStore is a RunStore held in process memory. It is used when no
// database is configured and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*Run
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[uuid.UUID]*Run)}
}

func (m *MemoryStore) SaveRun(_ context.Context, run *Run) error {
	cp := *run
	m.mu.Lock()
	m.runs[run.ID] = &cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetRun(_ context.Context, id uuid.UUID) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	cp := *run
	return &cp, nil
}

func (m *MemoryStore) ListRuns(_ context.Context, limit, offset int) ([]*Run, error) {
	m.mu.RLock()
	runs := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		cp := *r
		cp.Output = nil
		runs = append(runs, &cp)
	}
	m.mu.RUnlock()

	slices.SortFunc(runs, func(a, b *Run) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(b.ID[:], a.ID[:])
	})

	if offset >= len(runs) {
		return []*Run{}, nil
	}
	runs = runs[offset:]
	if limit > 0 && limit < len(runs) {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *MemoryStore) DeleteRunsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.runs {
		if r.CreatedAt.Before(cutoff) {
			delete(m.runs, id)
			n++
		}
	}
	return n, nil
}

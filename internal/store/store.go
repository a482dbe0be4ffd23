// Package store keeps comparison runs in PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/csvcompare/internal/compare"
	"github.com/JonMunkholm/csvcompare/internal/core"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Connect opens a pool and pings it.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// PostgresStore implements core.RunStore.
type PostgresStore struct {
	db DBTX
}

// New returns a store over db.
func New(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ core.RunStore = (*PostgresStore)(nil)

const insertRun = `
INSERT INTO compare_runs (
    id, first_source, second_source, index_column, match_result,
    extra_cols, extra_rows, mismatches, duplicate_keys,
    output, ip_address, user_agent, duration_ms, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

// SaveRun inserts run.
func (s *PostgresStore) SaveRun(ctx context.Context, run *core.Run) error {
	var output []byte
	if run.Output != nil {
		b, err := json.Marshal(run.Output)
		if err != nil {
			return fmt.Errorf("encode run output: %w", err)
		}
		output = b
	}
	created := run.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err := s.db.Exec(ctx, insertRun,
		toPgUUID(run.ID),
		run.FirstSource,
		run.SecondSource,
		run.IndexColumn,
		run.MatchResult,
		int32(run.Stats.ExtraColumns),
		int32(run.Stats.ExtraRows),
		int32(run.Stats.Mismatches),
		int32(run.Stats.DuplicateKeys),
		output,
		toPgText(run.IPAddress),
		toPgText(run.UserAgent),
		run.Duration.Milliseconds(),
		toPgTimestamptz(created),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

const selectColumns = `
    id, first_source, second_source, index_column, match_result,
    extra_cols, extra_rows, mismatches, duplicate_keys,
    ip_address, user_agent, duration_ms, created_at`

// GetRun returns the run with id, including its output.
func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*core.Run, error) {
	row := s.db.QueryRow(ctx,
		`SELECT`+selectColumns+`, output FROM compare_runs WHERE id = $1`,
		toPgUUID(id))

	var output []byte
	run, err := scanRun(row, &output)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	if len(output) > 0 {
		run.Output = &compare.Output{}
		if err := json.Unmarshal(output, run.Output); err != nil {
			return nil, fmt.Errorf("decode run output: %w", err)
		}
	}
	return run, nil
}

// ListRuns returns runs newest first without their output.
func (s *PostgresStore) ListRuns(ctx context.Context, limit, offset int) ([]*core.Run, error) {
	rows, err := s.db.Query(ctx,
		`SELECT`+selectColumns+` FROM compare_runs ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		int32(limit), int32(offset))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []*core.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// DeleteRunsBefore removes runs created before cutoff.
func (s *PostgresStore) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM compare_runs WHERE created_at < $1`, toPgTimestamptz(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanRun reads the selectColumns of one row followed by any extra
// destinations.
func scanRun(row pgx.Row, extra ...any) (*core.Run, error) {
	var (
		id                                     pgtype.UUID
		run                                    core.Run
		extraCols, extraRows, mism, duplicates int32
		ip, ua                                 pgtype.Text
		durationMS                             int64
		created                                pgtype.Timestamptz
	)
	dest := []any{
		&id, &run.FirstSource, &run.SecondSource, &run.IndexColumn, &run.MatchResult,
		&extraCols, &extraRows, &mism, &duplicates,
		&ip, &ua, &durationMS, &created,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	run.ID = fromPgUUID(id)
	run.Stats = compare.Stats{
		ExtraColumns:  int(extraCols),
		ExtraRows:     int(extraRows),
		Mismatches:    int(mism),
		DuplicateKeys: int(duplicates),
	}
	run.IPAddress = fromPgText(ip)
	run.UserAgent = fromPgText(ua)
	run.Duration = time.Duration(durationMS) * time.Millisecond
	run.CreatedAt = fromPgTimestamptz(created)
	return &run, nil
}

package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fpang/tooltrace/internal/dataset"
	"github.com/fpang/tooltrace/internal/sequence"
	"github.com/fpang/tooltrace/internal/timeline"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tool_intervals (
	run_id        TEXT   NOT NULL,
	video_name    TEXT   NOT NULL,
	action        TEXT   NOT NULL,
	start_seconds BIGINT NOT NULL,
	end_seconds   BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS tool_intervals_run_video ON tool_intervals (run_id, video_name, start_seconds);

CREATE TABLE IF NOT EXISTS tool_sequences (
	run_id     TEXT   NOT NULL,
	video_name TEXT   NOT NULL,
	actions    TEXT[] NOT NULL,
	sequence   TEXT   NOT NULL,
	PRIMARY KEY (run_id, video_name)
);

CREATE TABLE IF NOT EXISTS tool_sequences_merged (
	run_id     TEXT  NOT NULL,
	position   INT   NOT NULL,
	video_name TEXT  NOT NULL,
	sequence   TEXT  NOT NULL,
	metadata   JSONB,
	PRIMARY KEY (run_id, position)
);`

// pgExecutor is the subset of *pgxpool.Pool used by PostgresSink.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresSink writes dataset rows to Postgres, keyed by run ID.
type PostgresSink struct {
	db   pgExecutor
	pool *pgxpool.Pool
}

// OpenPostgres connects to url, verifies the connection and creates the
// tables if they do not exist.
func OpenPostgres(ctx context.Context, url string) (*PostgresSink, error) {
	pcfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sink := &PostgresSink{db: pool, pool: pool}
	if err := sink.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return sink, nil
}

// Close closes the pool.
func (s *PostgresSink) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// WriteIntervals bulk-loads intervals with COPY.
func (s *PostgresSink) WriteIntervals(ctx context.Context, runID string, intervals []timeline.UsageInterval) (int64, error) {
	n, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"tool_intervals"},
		[]string{"run_id", "video_name", "action", "start_seconds", "end_seconds"},
		pgx.CopyFromSlice(len(intervals), func(i int) ([]any, error) {
			iv := intervals[i]
			return []any{runID, iv.VideoName, iv.Action, iv.Start.Seconds(), iv.End.Seconds()}, nil
		}),
	)
	if err != nil {
		return n, fmt.Errorf("copy intervals: %w", err)
	}
	return n, nil
}

// WriteSequences upserts one row per video.
func (s *PostgresSink) WriteSequences(ctx context.Context, runID string, seqs []sequence.ActionSequence) error {
	batch := &pgx.Batch{}
	for _, seq := range seqs {
		actions := seq.Actions
		if actions == nil {
			actions = []string{}
		}
		batch.Queue(`
			INSERT INTO tool_sequences (run_id, video_name, actions, sequence)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (run_id, video_name) DO UPDATE
			SET actions = EXCLUDED.actions, sequence = EXCLUDED.sequence`,
			runID, seq.VideoName, actions, seq.String())
	}
	return s.sendBatch(ctx, batch, "sequences")
}

// WriteMerged stores each merged record with its metadata as a JSON object.
// Unmatched records get a NULL metadata column.
func (s *PostgresSink) WriteMerged(ctx context.Context, runID string, merged *dataset.Merged) error {
	batch := &pgx.Batch{}
	for i, rec := range merged.Records {
		batch.Queue(`
			INSERT INTO tool_sequences_merged (run_id, position, video_name, sequence, metadata)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (run_id, position) DO UPDATE
			SET video_name = EXCLUDED.video_name, sequence = EXCLUDED.sequence, metadata = EXCLUDED.metadata`,
			runID, i, rec.VideoName, rec.Sequence, merged.Metadata(i))
	}
	return s.sendBatch(ctx, batch, "merged rows")
}

func (s *PostgresSink) sendBatch(ctx context.Context, batch *pgx.Batch, what string) error {
	if batch.Len() == 0 {
		return nil
	}
	br := s.db.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert %s (row %d): %w", what, i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("insert %s: %w", what, err)
	}
	return nil
}

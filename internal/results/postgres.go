package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/nvandessel/vpgen/internal/blackbox"
)

const postgresDriver = "pgx"

// PostgresSink inserts evaluations into the evaluations table.
type PostgresSink struct {
	db    *sql.DB
	runID string
	model string
}

// NewPostgresSink connects to dsn and creates the evaluations table if it
// does not exist.
func NewPostgresSink(ctx context.Context, dsn, runID, model string) (*PostgresSink, error) {
	db, err := sql.Open(postgresDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureEvaluationsTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresSink{db: db, runID: runID, model: model}, nil
}

func ensureEvaluationsTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS evaluations (
		id BIGSERIAL PRIMARY KEY,
		run_id UUID NOT NULL,
		model TEXT NOT NULL,
		evaluated_at TIMESTAMPTZ NOT NULL,
		failed BOOLEAN NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		duration_ms DOUBLE PRECISION NOT NULL,
		assignment JSONB NOT NULL,
		cost JSONB NOT NULL,
		objective DOUBLE PRECISION NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure evaluations table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS evaluations_run_idx ON evaluations (run_id, objective)`); err != nil {
		return fmt.Errorf("ensure evaluations index: %w", err)
	}
	return nil
}

// Record inserts one evaluation.
func (s *PostgresSink) Record(ctx context.Context, e blackbox.Evaluation) error {
	assignment, err := json.Marshal(e.Assignment)
	if err != nil {
		return fmt.Errorf("marshal assignment: %w", err)
	}
	cost, err := json.Marshal(e.Cost)
	if err != nil {
		return fmt.Errorf("marshal cost: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO evaluations (run_id, model, evaluated_at, failed, error, duration_ms, assignment, cost, objective)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.runID, s.model, e.Time, e.Failed, e.Error, e.DurationMS, string(assignment), string(cost), e.Cost.Sum())
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

// Best returns the evaluation of the run with the lowest summed objective.
func (s *PostgresSink) Best(ctx context.Context) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT evaluated_at, failed, error, duration_ms, assignment, cost
		 FROM evaluations WHERE run_id = $1 ORDER BY objective ASC, id ASC LIMIT 1`, s.runID)
	rec := Record{RunID: s.runID, Model: s.model}
	var assignment, cost []byte
	if err := row.Scan(&rec.Time, &rec.Failed, &rec.Error, &rec.DurationMS, &assignment, &cost); err != nil {
		return Record{}, fmt.Errorf("select best evaluation: %w", err)
	}
	if err := json.Unmarshal(assignment, &rec.Assignment); err != nil {
		return Record{}, fmt.Errorf("decode assignment: %w", err)
	}
	if err := json.Unmarshal(cost, &rec.Cost); err != nil {
		return Record{}, fmt.Errorf("decode cost: %w", err)
	}
	rec.Objectives = rec.Cost.Flatten()
	return rec, nil
}

// Close closes the database handle.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for integration tests.
func (s *PostgresSink) DB() *sql.DB { return s.db }

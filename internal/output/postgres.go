package output

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmylchreest/jobsweep/internal/logger"
	"github.com/jmylchreest/jobsweep/pkg/listing"
)

// DefaultTable is the table PostgresWriter upserts into.
const DefaultTable = "job_listings"

// PostgresConfig configures a PostgresWriter.
type PostgresConfig struct {
	DSN       string
	Table     string
	BatchSize int
	// RunID is stored with every row.
	RunID string
}

// PostgresWriter upserts records keyed on (partition_key, detail_url).
// Records are buffered and sent in batches on Flush.
type PostgresWriter struct {
	ctx       context.Context
	pool      *pgxpool.Pool
	table     string
	batchSize int
	runID     string
	pending   []listing.Joined
}

// NewPostgresWriter connects to cfg.DSN and ensures the table exists. ctx
// bounds every statement the writer issues.
func NewPostgresWriter(ctx context.Context, cfg PostgresConfig) (*PostgresWriter, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}
	poolCfg.MaxConns = 4
	poolCfg.MaxConnLifetime = time.Hour
	// Poolers in transaction mode do not support the statement cache.
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	w := &PostgresWriter{
		ctx:       ctx,
		pool:      pool,
		table:     cfg.Table,
		batchSize: cfg.BatchSize,
		runID:     cfg.RunID,
	}
	if w.table == "" {
		w.table = DefaultTable
	}
	if w.batchSize < 1 {
		w.batchSize = 500
	}

	if _, err := pool.Exec(ctx, createTableSQL(w.table)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", w.table, err)
	}
	return w, nil
}

func quoteTable(table string) string {
	return pgx.Identifier{table}.Sanitize()
}

func createTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	partition_key  TEXT NOT NULL,
	display_name   TEXT NOT NULL,
	title          TEXT NOT NULL,
	company        TEXT NOT NULL,
	experience     TEXT NOT NULL,
	location       TEXT NOT NULL,
	salary         TEXT NOT NULL,
	detail_url     TEXT NOT NULL,
	is_walk_in     BOOLEAN NOT NULL,
	walk_in_time   TEXT NOT NULL,
	walk_in_venue  TEXT NOT NULL,
	description    TEXT NOT NULL,
	run_id         TEXT NOT NULL DEFAULT '',
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (partition_key, detail_url)
)`, quoteTable(table))
}

func upsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (
	partition_key, display_name, title, company, experience, location, salary,
	detail_url, is_walk_in, walk_in_time, walk_in_venue, description, run_id, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
ON CONFLICT (partition_key, detail_url) DO UPDATE SET
	display_name = EXCLUDED.display_name,
	title = EXCLUDED.title,
	company = EXCLUDED.company,
	experience = EXCLUDED.experience,
	location = EXCLUDED.location,
	salary = EXCLUDED.salary,
	is_walk_in = EXCLUDED.is_walk_in,
	walk_in_time = EXCLUDED.walk_in_time,
	walk_in_venue = EXCLUDED.walk_in_venue,
	description = EXCLUDED.description,
	run_id = EXCLUDED.run_id,
	updated_at = now()`, quoteTable(table))
}

// Write buffers a record, sending a batch once batchSize is reached.
func (w *PostgresWriter) Write(rec listing.Joined) error {
	w.pending = append(w.pending, rec)
	if len(w.pending) >= w.batchSize {
		return w.Flush()
	}
	return nil
}

// WriteAll buffers records and flushes.
func (w *PostgresWriter) WriteAll(recs []listing.Joined) error {
	for _, rec := range recs {
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Flush sends buffered records as one batch.
func (w *PostgresWriter) Flush() error {
	if len(w.pending) == 0 {
		return nil
	}

	query := upsertSQL(w.table)
	batch := &pgx.Batch{}
	for _, r := range w.pending {
		batch.Queue(query,
			r.PartitionKey, r.DisplayName, r.Title, r.Company, r.Experience,
			r.Location, r.Salary, r.DetailURL, r.IsWalkIn, r.WalkInTime,
			r.WalkInVenue, r.Description, w.runID)
	}

	br := w.pool.SendBatch(w.ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("upsert %s: %w", w.pending[i].DetailURL, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("batch close: %w", err)
	}

	logger.Debug("postgres batch written", "table", w.table, "rows", len(w.pending))
	w.pending = w.pending[:0]
	return nil
}

// Close flushes and closes the pool.
func (w *PostgresWriter) Close() error {
	err := w.Flush()
	w.pool.Close()
	return err
}

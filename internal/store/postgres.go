package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const schema = `
CREATE TABLE IF NOT EXISTS detections (
	id          UUID PRIMARY KEY,
	kind        TEXT NOT NULL,
	label       TEXT NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	frames      JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS detections_created_at_idx ON detections (created_at DESC);
`

// Postgres stores verdicts in the detections table.
type Postgres struct {
	logger zerolog.Logger
	pool   *pgxpool.Pool
}

// NewPostgres connects, verifies the connection and creates the schema.
func NewPostgres(ctx context.Context, logger zerolog.Logger, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Postgres{
		logger: logger.With().Str("component", "store").Logger(),
		pool:   pool,
	}
	if err := s.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s.logger.Info().Msg("detection history enabled")
	return s, nil
}

// InitSchema creates the table if it is missing.
func (s *Postgres) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Save inserts rec, assigning an id and timestamp when unset.
func (s *Postgres) Save(ctx context.Context, rec *Record) error {
	prepare(rec)

	var frames []byte
	if len(rec.Frames) > 0 {
		var err error
		if frames, err = json.Marshal(rec.Frames); err != nil {
			return fmt.Errorf("encode frames: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO detections (id, kind, label, confidence, frames, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID.String(), rec.Kind, rec.Label, rec.Confidence, frames, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store detection: %w", err)
	}

	s.logger.Debug().Str("id", rec.ID.String()).Str("kind", rec.Kind).Msg("detection stored")
	return nil
}

// Recent returns up to limit verdicts, newest first.
func (s *Postgres) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, kind, label, confidence, frames, created_at
		FROM detections ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var (
			rec    Record
			id     string
			frames []byte
		)
		if err := row.Scan(&id, &rec.Kind, &rec.Label, &rec.Confidence, &frames, &rec.CreatedAt); err != nil {
			return rec, err
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return rec, fmt.Errorf("invalid detection id %q: %w", id, err)
		}
		rec.ID = parsed
		if len(frames) > 0 {
			if err := json.Unmarshal(frames, &rec.Frames); err != nil {
				return rec, fmt.Errorf("decode frames: %w", err)
			}
		}
		return rec, nil
	})
}

// Close releases the pool.
func (s *Postgres) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

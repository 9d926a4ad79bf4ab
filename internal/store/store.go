// Package store keeps a history of detection verdicts.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FrameRecord is the per-frame part of a video verdict. Thumbnails are not kept.
type FrameRecord struct {
	Frame      int     `json:"frame"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Record is one stored verdict.
type Record struct {
	ID         uuid.UUID
	Kind       string
	Label      string
	Confidence float64
	Frames     []FrameRecord
	CreatedAt  time.Time
}

// Store persists verdicts.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// Noop discards everything. Used when no database is configured.
type Noop struct{}

func (Noop) Save(context.Context, *Record) error { return nil }
func (Noop) Recent(context.Context, int) ([]Record, error) { return nil, nil }
func (Noop) Close() error { return nil }

// prepare fills the generated fields of rec.
func prepare(rec *Record) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
}

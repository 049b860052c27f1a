// Package store persists stage records so gathered facts survive the process
// and later stages of a rerun can overwrite earlier attempts. Writes are
// idempotent per (claim_id, stage).
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/claim-processor/internal/types"
)

// Record is one persisted stage outcome for a claim.
type Record struct {
	ID         uuid.UUID       `json:"id"`
	ClaimID    string          `json:"claim_id"`
	Stage      types.StageName `json:"stage"`
	Status     string          `json:"status"`
	RawText    string          `json:"raw_text,omitempty"`
	Extracted  map[string]any  `json:"extracted,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int             `json:"duration_ms,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// FromStageResult builds a record from a finished stage result.
func FromStageResult(claimID string, r *types.StageResult) *Record {
	return &Record{
		ClaimID:    claimID,
		Stage:      r.Stage,
		Status:     r.Status,
		RawText:    r.RawText,
		Extracted:  r.Extracted,
		Error:      r.Error,
		DurationMs: r.DurationMs,
	}
}

// Store persists stage records. Put replaces any existing record for the same
// (claim_id, stage), so writing the same record twice is safe.
type Store interface {
	Put(ctx context.Context, rec *Record) error
	Get(ctx context.Context, claimID string, stage types.StageName) (*Record, error)
	GetAll(ctx context.Context, claimID string) ([]Record, error)
	Close()
}

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/claim-processor/internal/types"
)

// Postgres is the production Store backed by a pgx connection pool.
//
// Expected schema:
//
//	CREATE TABLE claim_stages (
//	    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
//	    claim_id    TEXT NOT NULL,
//	    stage       TEXT NOT NULL,
//	    status      TEXT NOT NULL,
//	    raw_text    TEXT,
//	    extracted   JSONB,
//	    error       TEXT,
//	    duration_ms INTEGER,
//	    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    UNIQUE (claim_id, stage)
//	);
type Postgres struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool and verifies it.
func Connect(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Put upserts the record on (claim_id, stage).
func (p *Postgres) Put(ctx context.Context, rec *Record) error {
	var extractedJSON []byte
	if len(rec.Extracted) > 0 {
		var err error
		extractedJSON, err = json.Marshal(rec.Extracted)
		if err != nil {
			return &StoreError{Op: "put", ClaimID: rec.ClaimID, Cause: err}
		}
	}

	_, err := p.pool.Exec(ctx,
		`INSERT INTO claim_stages (claim_id, stage, status, raw_text, extracted, error, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (claim_id, stage) DO UPDATE SET
		     status = $3, raw_text = $4, extracted = $5, error = $6,
		     duration_ms = $7, updated_at = NOW()`,
		rec.ClaimID, rec.Stage, rec.Status, nullIfEmpty(rec.RawText),
		extractedJSON, nullIfEmpty(rec.Error), rec.DurationMs,
	)
	if err != nil {
		return &StoreError{Op: "put", ClaimID: rec.ClaimID, Cause: err}
	}
	return nil
}

// Get retrieves the record for one (claim_id, stage). Returns nil, nil when
// no record exists.
func (p *Postgres) Get(ctx context.Context, claimID string, stage types.StageName) (*Record, error) {
	rec, err := scanRecord(p.pool.QueryRow(ctx,
		`SELECT id, claim_id, stage, status, raw_text, extracted, error, duration_ms, created_at, updated_at
		 FROM claim_stages
		 WHERE claim_id = $1 AND stage = $2`,
		claimID, stage,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, &StoreError{Op: "get", ClaimID: claimID, Cause: err}
	}
	return rec, nil
}

// GetAll retrieves every stage record for a claim, most recently updated last.
func (p *Postgres) GetAll(ctx context.Context, claimID string) ([]Record, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, claim_id, stage, status, raw_text, extracted, error, duration_ms, created_at, updated_at
		 FROM claim_stages
		 WHERE claim_id = $1
		 ORDER BY updated_at`,
		claimID,
	)
	if err != nil {
		return nil, &StoreError{Op: "get_all", ClaimID: claimID, Cause: err}
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &StoreError{Op: "get_all", ClaimID: claimID, Cause: err}
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var rawText, errText *string
	var extractedJSON []byte
	if err := row.Scan(&rec.ID, &rec.ClaimID, &rec.Stage, &rec.Status,
		&rawText, &extractedJSON, &errText, &rec.DurationMs,
		&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if rawText != nil {
		rec.RawText = *rawText
	}
	if errText != nil {
		rec.Error = *errText
	}
	if extractedJSON != nil {
		if err := json.Unmarshal(extractedJSON, &rec.Extracted); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

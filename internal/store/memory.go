package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/claim-processor/internal/types"
)

// Memory is an in-process Store used when no database is configured, and in
// tests.
type Memory struct {
	mu      sync.RWMutex
	records map[string]map[types.StageName]*Record
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]map[types.StageName]*Record)}
}

// Put upserts a copy of the record, keeping the original CreatedAt on update.
func (m *Memory) Put(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stages, ok := m.records[rec.ClaimID]
	if !ok {
		stages = make(map[types.StageName]*Record)
		m.records[rec.ClaimID] = stages
	}

	now := time.Now()
	stored := *rec
	stored.UpdatedAt = now
	if existing, ok := stages[rec.Stage]; ok {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.ID = uuid.New()
		stored.CreatedAt = now
	}
	stages[rec.Stage] = &stored
	return nil
}

// Get retrieves one record, or nil, nil when absent.
func (m *Memory) Get(_ context.Context, claimID string, stage types.StageName) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[claimID][stage]
	if !ok {
		return nil, nil
	}
	out := *rec
	return &out, nil
}

// GetAll returns the claim's records ordered by update time, matching the
// Postgres implementation. Records updated at the same instant keep stage
// execution order.
func (m *Memory) GetAll(_ context.Context, claimID string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stages, ok := m.records[claimID]
	if !ok {
		return nil, nil
	}
	var out []Record
	for _, name := range types.StageOrder {
		if rec, ok := stages[name]; ok {
			out = append(out, *rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out, nil
}

// Close is a no-op.
func (m *Memory) Close() {}

package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/claim-processor/internal/facts"
	"github.com/jonathan/claim-processor/internal/types"
)

// These tests require a live database with the claim_stages table. They skip
// when DATABASE_URL is not set.

func connectTestDB(t *testing.T) *Postgres {
	t.Helper()
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	p, err := Connect(context.Background(), databaseURL)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestPostgres_PutGetRoundTrip(t *testing.T) {
	p := connectTestDB(t)
	ctx := context.Background()

	rec := &Record{
		ClaimID: "it-claim-roundtrip",
		Stage:   types.StageCoverageAssessment,
		Status:  types.StageStatusCompleted,
		RawText: "Coverage applies. IDV: ₹5,00,000",
		Extracted: map[string]any{
			facts.FieldCoverageEligible:     true,
			facts.FieldInsuredDeclaredValue: int64(500_000),
		},
		DurationMs: 900,
	}
	require.NoError(t, p.Put(ctx, rec))

	got, err := p.Get(ctx, rec.ClaimID, rec.Stage)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.RawText, got.RawText)

	idv, ok := facts.AmountOf(got.Extracted, facts.FieldInsuredDeclaredValue)
	require.True(t, ok, "amounts survive the JSONB round trip")
	assert.Equal(t, int64(500_000), idv)
}

func TestPostgres_PutUpserts(t *testing.T) {
	p := connectTestDB(t)
	ctx := context.Background()

	claimID := "it-claim-upsert"
	require.NoError(t, p.Put(ctx, &Record{
		ClaimID: claimID, Stage: types.StageInspection,
		Status: types.StageStatusFailed, Error: "timeout",
	}))
	require.NoError(t, p.Put(ctx, &Record{
		ClaimID: claimID, Stage: types.StageInspection,
		Status: types.StageStatusCompleted, RawText: "Total repair estimate: ₹58,000",
	}))

	all, err := p.GetAll(ctx, claimID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, types.StageStatusCompleted, all[0].Status)
	assert.Empty(t, all[0].Error)
}

func TestPostgres_GetAbsent(t *testing.T) {
	p := connectTestDB(t)

	got, err := p.Get(context.Background(), "it-claim-missing", types.StageFinalDecision)
	require.NoError(t, err)
	assert.Nil(t, got)
}

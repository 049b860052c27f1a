package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/claim-processor/internal/facts"
	"github.com/jonathan/claim-processor/internal/store"
	"github.com/jonathan/claim-processor/internal/types"
)

func TestValidateStageRecord_Valid(t *testing.T) {
	rec := &store.Record{
		ClaimID: "CLM-2024-001",
		Stage:   types.StageBillAnalysis,
		Status:  types.StageStatusCompleted,
		RawText: "Approved bill amount: ₹58,000\nConfidence: 85%",
		Extracted: map[string]any{
			facts.FieldApprovedBillAmount: int64(58_000),
			facts.FieldConfidence:         85,
		},
		DurationMs: 1200,
	}

	err := ValidateStageRecord(rec)
	assert.NoError(t, err)
}

func TestValidateStageRecord_UnknownStage(t *testing.T) {
	rec := &store.Record{
		ClaimID: "CLM-2024-002",
		Stage:   types.StageName("NOT_A_STAGE"),
		Status:  types.StageStatusCompleted,
	}

	err := ValidateStageRecord(rec)
	require.Error(t, err)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestValidateStageRecord_UnknownFactRejected(t *testing.T) {
	rec := &store.Record{
		ClaimID:   "CLM-2024-003",
		Stage:     types.StageInspection,
		Status:    types.StageStatusCompleted,
		Extracted: map[string]any{"made_up_field": 1},
	}

	err := ValidateStageRecord(rec)
	require.Error(t, err)
}

func TestValidateJSONString_Valid(t *testing.T) {
	schema := `{"type": "object", "required": ["decision"], "properties": {"decision": {"type": "string"}}}`
	err := ValidateJSONString(schema, `{"decision": "APPROVED"}`)
	assert.NoError(t, err)
}

func TestValidateJSONString_FieldErrors(t *testing.T) {
	schema := `{"type": "object", "required": ["decision"], "properties": {"decision": {"type": "string"}}}`
	err := ValidateJSONString(schema, `{"decision": 42}`)

	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.NotEmpty(t, ve.Errors)
	assert.Equal(t, "decision", ve.Errors[0].Field)
}

func TestValidateJSONString_BadSchema(t *testing.T) {
	err := ValidateJSONString(`{"type": [1,2,`, `{}`)
	require.Error(t, err)
	var le *SchemaLoadError
	assert.ErrorAs(t, err, &le)
}

func TestResolveSchemaPath_Missing(t *testing.T) {
	assert.Empty(t, ResolveSchemaPath("schemas/does_not_exist.schema.json"))
}

func TestResolveSchemaPath_FindsStageRecordSchema(t *testing.T) {
	path := ResolveSchemaPath(StageRecordSchema)
	assert.NotEmpty(t, path, "stage record schema should resolve from the package directory")
}

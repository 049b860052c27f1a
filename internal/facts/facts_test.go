package facts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/claim-processor/internal/types"
)

func TestUnion_FirstCompletedStageWins(t *testing.T) {
	run := types.NewClaimRun("CLM-1", "collision")
	run.Stage(types.StagePolicyInsight).Status = types.StageStatusCompleted
	run.Stage(types.StagePolicyInsight).Extracted = map[string]any{
		FieldInsuredDeclaredValue: int64(500_000),
	}
	run.Stage(types.StageCoverageAssessment).Status = types.StageStatusCompleted
	run.Stage(types.StageCoverageAssessment).Extracted = map[string]any{
		FieldInsuredDeclaredValue: int64(400_000),
		FieldCoverageEligible:     true,
	}

	merged := Union(run)

	idv, ok := AmountOf(merged, FieldInsuredDeclaredValue)
	require.True(t, ok)
	assert.Equal(t, int64(500_000), idv, "earlier stage in order supplies the field")

	eligible, ok := BoolOf(merged, FieldCoverageEligible)
	require.True(t, ok)
	assert.True(t, eligible)
}

func TestUnion_SkipsFailedAndPendingStages(t *testing.T) {
	run := types.NewClaimRun("CLM-2", "collision")
	run.Stage(types.StagePolicyInsight).Status = types.StageStatusFailed
	run.Stage(types.StagePolicyInsight).Extracted = map[string]any{
		FieldInsuredDeclaredValue: int64(500_000),
	}

	merged := Union(run)
	assert.Empty(t, merged)
}

func TestAmountOf_NumericVariants(t *testing.T) {
	m := map[string]any{
		"a": int64(100),
		"b": 200,
		"c": float64(300),
		"d": json.Number("400"),
	}
	for key, want := range map[string]int64{"a": 100, "b": 200, "c": 300, "d": 400} {
		v, ok := AmountOf(m, key)
		require.True(t, ok, "key %s", key)
		assert.Equal(t, want, v, "key %s", key)
	}
}

func TestAmountOf_AbsentAndNonNumeric(t *testing.T) {
	m := map[string]any{"s": "not a number"}

	_, ok := AmountOf(m, "missing")
	assert.False(t, ok)
	_, ok = AmountOf(m, "s")
	assert.False(t, ok)
}

func TestAmountOf_SurvivesJSONRoundTrip(t *testing.T) {
	original := map[string]any{FieldApprovedBillAmount: int64(58_000), FieldCoverageEligible: true}

	raw, err := json.Marshal(original)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	v, ok := AmountOf(decoded, FieldApprovedBillAmount)
	require.True(t, ok)
	assert.Equal(t, int64(58_000), v)

	b, ok := BoolOf(decoded, FieldCoverageEligible)
	require.True(t, ok)
	assert.True(t, b)
}

func TestStringOf(t *testing.T) {
	m := map[string]any{FieldDecision: DecisionApproved}

	d, ok := StringOf(m, FieldDecision)
	require.True(t, ok)
	assert.Equal(t, DecisionApproved, d)

	_, ok = StringOf(m, FieldRiskScore)
	assert.False(t, ok)
}

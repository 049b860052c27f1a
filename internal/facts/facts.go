// Package facts defines the typed fact fields derived from stage analysis text
// and helpers for reading them back out of extracted maps.
package facts

import (
	"encoding/json"

	"github.com/jonathan/claim-processor/internal/types"
)

// Fact field keys. Extracted maps and persisted records use these names.
const (
	FieldInsuredDeclaredValue = "insured_declared_value"
	FieldDeductible           = "deductible"
	FieldCoverageEligible     = "coverage_eligible"
	FieldRepairEstimate       = "repair_estimate"
	FieldTotalLossIndicated   = "total_loss_indicated"
	FieldDamageAuthentic      = "damage_authentic"
	FieldApprovedBillAmount   = "approved_bill_amount"
	FieldConfidence           = "confidence"
	FieldRiskScore            = "risk_score"
	FieldDecision             = "decision"
	FieldApprovedAmount       = "approved_amount"
	FieldFallbackUsed         = "fallback_used"
)

// Decision values.
const (
	DecisionApproved = "APPROVED"
	DecisionPending  = "PENDING"
	DecisionRejected = "REJECTED"
)

// Risk tiers.
const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

// Union merges the extracted maps of all completed stages in execution order.
// The first stage to supply a field wins; later stages never override it.
func Union(run *types.ClaimRun) map[string]any {
	merged := make(map[string]any)
	for _, result := range run.CompletedStages() {
		for key, value := range result.Extracted {
			if _, exists := merged[key]; !exists {
				merged[key] = value
			}
		}
	}
	return merged
}

// AmountOf reads a currency amount from a fact map. Returns false when the
// field is absent or not numeric. Handles int64 (in-memory), float64 and
// json.Number (after a JSON round trip through the store).
func AmountOf(m map[string]any, key string) (int64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

// IntOf reads an integer fact (e.g. confidence).
func IntOf(m map[string]any, key string) (int, bool) {
	n, ok := AmountOf(m, key)
	return int(n), ok
}

// BoolOf reads a boolean fact.
func BoolOf(m map[string]any, key string) (bool, bool) {
	v, ok := m[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// StringOf reads a string fact (e.g. decision, risk_score).
func StringOf(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

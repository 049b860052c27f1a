// Package assemble builds the analysis context handed to each stage. Inputs
// come from the in-memory run only; the assembler never reads the store. Each
// stage has a static input list with documented defaults, so a missing or
// failed predecessor degrades to defaults instead of blocking the stage.
package assemble

import (
	"fmt"
	"strings"

	"github.com/jonathan/claim-processor/internal/facts"
	"github.com/jonathan/claim-processor/internal/types"
)

// Field pairs a fact key with the default used when no completed stage
// produced it.
type Field struct {
	Key     string
	Label   string
	Default any
}

var (
	policyFields = []Field{
		{facts.FieldInsuredDeclaredValue, "Insured Declared Value (IDV)", int64(0)},
		{facts.FieldDeductible, "Compulsory deductible", int64(0)},
		{facts.FieldCoverageEligible, "Coverage eligible", false},
	}
	inspectionFields = []Field{
		{facts.FieldRepairEstimate, "Repair estimate", int64(0)},
		{facts.FieldTotalLossIndicated, "Total loss indicated", false},
	}
	billFields = []Field{
		{facts.FieldDamageAuthentic, "Damage authentic", false},
		{facts.FieldApprovedBillAmount, "Approved bill amount", int64(0)},
		{facts.FieldConfidence, "Bill confidence (%)", int64(0)},
	}
)

// inputFields lists, per stage, the facts rendered into its context. The
// first two stages run on the claim description alone.
var inputFields = map[types.StageName][]Field{
	types.StagePolicyInsight:      nil,
	types.StageCoverageAssessment: nil,
	types.StageInspection:         policyFields,
	types.StageBillAnalysis:       concat(policyFields, inspectionFields),
	types.StageFinalDecision:      concat(policyFields, inspectionFields, billFields),
}

func concat(lists ...[]Field) []Field {
	var out []Field
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// Inputs returns the resolved input facts for a stage: the union of completed
// stage outputs filtered to the stage's input list, with defaults substituted
// for absent fields.
func Inputs(run *types.ClaimRun, stage types.StageName) map[string]any {
	merged := facts.Union(run)
	out := make(map[string]any)
	for _, f := range inputFields[stage] {
		if v, ok := merged[f.Key]; ok {
			out[f.Key] = v
		} else {
			out[f.Key] = f.Default
		}
	}
	return out
}

// Context renders the stage inputs as labeled lines in static field order, so
// the same run state always produces byte-identical context text.
func Context(run *types.ClaimRun, stage types.StageName) string {
	fields := inputFields[stage]
	if len(fields) == 0 {
		return ""
	}
	merged := facts.Union(run)
	var b strings.Builder
	for _, f := range fields {
		v, ok := merged[f.Key]
		if !ok {
			v = f.Default
		}
		b.WriteString(f.Label)
		b.WriteString(": ")
		b.WriteString(renderValue(f.Key, v))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderValue(key string, v any) string {
	switch key {
	case facts.FieldInsuredDeclaredValue, facts.FieldDeductible,
		facts.FieldRepairEstimate, facts.FieldApprovedBillAmount:
		if n, ok := facts.AmountOf(map[string]any{key: v}, key); ok {
			return fmt.Sprintf("₹%d", n)
		}
	case facts.FieldConfidence:
		if n, ok := facts.IntOf(map[string]any{key: v}, key); ok {
			return fmt.Sprintf("%d%%", n)
		}
	}
	switch b := v.(type) {
	case bool:
		if b {
			return "yes"
		}
		return "no"
	}
	return fmt.Sprintf("%v", v)
}

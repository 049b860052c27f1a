// Package synthesis produces the final claim decision. The primary path asks
// the adjudication model; if that invocation fails, or its response lacks a
// decision or approved amount, a deterministic computation over the gathered
// facts takes over. The stage therefore always completes.
package synthesis

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jonathan/claim-processor/internal/assemble"
	"github.com/jonathan/claim-processor/internal/extract"
	"github.com/jonathan/claim-processor/internal/facts"
	"github.com/jonathan/claim-processor/internal/gateway"
	"github.com/jonathan/claim-processor/internal/types"
)

// FallbackConfidence is the fixed confidence reported by the deterministic
// path. It signals a mechanical computation rather than a reasoned judgment.
const FallbackConfidence = 60

// Engine synthesizes the FINAL_DECISION stage output.
type Engine struct {
	invoker gateway.Invoker
}

// New creates a synthesis engine over the given invoker.
func New(invoker gateway.Invoker) *Engine {
	return &Engine{invoker: invoker}
}

// Decide returns the raw decision text and extracted decision facts for a
// run. It never fails: any primary-path problem falls through to the
// deterministic computation.
func (e *Engine) Decide(ctx context.Context, run *types.ClaimRun) (string, map[string]any) {
	contextText := assemble.Context(run, types.StageFinalDecision)

	text, err := e.invoker.Invoke(ctx, types.StageFinalDecision, run.Request, contextText)
	if err == nil {
		extracted := extract.ForStage(types.StageFinalDecision, text)
		_, hasDecision := facts.StringOf(extracted, facts.FieldDecision)
		_, hasAmount := facts.AmountOf(extracted, facts.FieldApprovedAmount)
		if hasDecision && hasAmount {
			return text, extracted
		}
		log.Printf("[synthesis] model response missing decision fields for claim %s, using fallback", run.Request.ClaimID)
	} else {
		log.Printf("[synthesis] model invocation failed for claim %s, using fallback: %v", run.Request.ClaimID, err)
	}

	return Fallback(run.Request.ClaimID, facts.Union(run))
}

// Fallback computes the decision deterministically from the gathered facts.
// Absent facts take their documented defaults, so the computation is total.
func Fallback(claimID string, merged map[string]any) (string, map[string]any) {
	idv, _ := facts.AmountOf(merged, facts.FieldInsuredDeclaredValue)
	deductible, _ := facts.AmountOf(merged, facts.FieldDeductible)
	bill, _ := facts.AmountOf(merged, facts.FieldApprovedBillAmount)
	eligible, _ := facts.BoolOf(merged, facts.FieldCoverageEligible)
	totalLoss, _ := facts.BoolOf(merged, facts.FieldTotalLossIndicated)

	// Reimbursement is capped at the declared value, then reduced by the
	// deductible, never below zero.
	capped := bill
	if idv < capped {
		capped = idv
	}
	reimbursement := capped - deductible
	if reimbursement < 0 {
		reimbursement = 0
	}

	decision := facts.DecisionPending
	if eligible && reimbursement > 0 {
		decision = facts.DecisionApproved
	}
	risk := facts.RiskLow
	if totalLoss {
		risk = facts.RiskHigh
	}

	extracted := map[string]any{
		facts.FieldDecision:       decision,
		facts.FieldApprovedAmount: reimbursement,
		facts.FieldConfidence:     FallbackConfidence,
		facts.FieldRiskScore:      risk,
		facts.FieldFallbackUsed:   true,
	}
	return fallbackReport(claimID, decision, risk, idv, deductible, bill, reimbursement, eligible, totalLoss), extracted
}

// fallbackReport renders the deterministic decision in the standard report
// layout so downstream consumers see the same shape as a model response.
func fallbackReport(claimID, decision, risk string, idv, deductible, bill, reimbursement int64, eligible, totalLoss bool) string {
	var b strings.Builder
	b.WriteString("CLAIM DECISION REPORT (computed)\n")
	fmt.Fprintf(&b, "Claim ID: %s\n\n", claimID)
	fmt.Fprintf(&b, "DECISION: %s\n", decision)
	fmt.Fprintf(&b, "APPROVED AMOUNT: ₹%d\n", reimbursement)
	fmt.Fprintf(&b, "CONFIDENCE: %d%%\n", FallbackConfidence)
	fmt.Fprintf(&b, "RISK: %s\n\n", risk)
	b.WriteString("Basis:\n")
	fmt.Fprintf(&b, "- Insured Declared Value (IDV): ₹%d\n", idv)
	fmt.Fprintf(&b, "- Compulsory deductible: ₹%d\n", deductible)
	fmt.Fprintf(&b, "- Approved bill amount: ₹%d\n", bill)
	fmt.Fprintf(&b, "- Coverage eligible: %s\n", yesNo(eligible))
	fmt.Fprintf(&b, "- Total loss indicated: %s\n", yesNo(totalLoss))
	b.WriteString("\nReimbursement = min(bill, IDV) - deductible, floored at zero.\n")
	if decision == facts.DecisionPending {
		b.WriteString("Next steps: manual review required before payout.\n")
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

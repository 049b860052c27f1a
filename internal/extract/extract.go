// Package extract turns free-form analysis text into typed fact fields.
// Every function here is a pure function of its input text: same text in,
// same result out. A field that cannot be parsed is reported absent, never
// zero and never an error, so downstream defaults stay distinguishable from
// genuine zero values.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jonathan/claim-processor/internal/facts"
	"github.com/jonathan/claim-processor/internal/types"
)

// amountRe matches a currency marker followed by digit groups with optional
// thousands separators (₹1,50,000 / Rs. 58,000 / INR 10000 / $500).
var amountRe = regexp.MustCompile(`(?:₹|Rs\.?\s*|INR\s*|\$)\s*([0-9][0-9,]*)`)

// confidenceRe matches the first integer immediately followed by a percent sign.
var confidenceRe = regexp.MustCompile(`\b([0-9]{1,3})\s*%`)

// AmountSpec describes how to locate one currency field in text.
type AmountSpec struct {
	// Labels are case-insensitive substrings; a line containing one is
	// searched before the rest of the text.
	Labels []string
	// Min and Max bound plausible values; matches outside the range are
	// skipped. Max of 0 means unbounded above.
	Min, Max int64
}

// Amount scans text for a currency amount per spec. The second return value
// is false when no parseable in-range amount exists.
func Amount(text string, spec AmountSpec) (int64, bool) {
	if len(spec.Labels) > 0 {
		for _, line := range strings.Split(text, "\n") {
			lower := strings.ToLower(line)
			for _, label := range spec.Labels {
				if strings.Contains(lower, label) {
					if v, ok := firstAmount(line, spec.Min, spec.Max); ok {
						return v, true
					}
				}
			}
		}
	}
	return firstAmount(text, spec.Min, spec.Max)
}

// firstAmount returns the first in-range currency amount in s.
func firstAmount(s string, min, max int64) (int64, bool) {
	for _, match := range amountRe.FindAllStringSubmatch(s, -1) {
		digits := strings.ReplaceAll(match[1], ",", "")
		v, err := strconv.ParseInt(digits, 10, 64)
		if err != nil || v < 0 {
			continue
		}
		if v < min {
			continue
		}
		if max > 0 && v > max {
			continue
		}
		return v, true
	}
	return 0, false
}

// Affirmation tests for an explicit positive or negative phrase. Negative
// phrases are checked first since they tend to be supersets of the positive
// ones ("coverage does not apply" contains "coverage applies" semantics).
// The second return value is false when neither polarity appears.
func Affirmation(text string, positives, negatives []string) (value, found bool) {
	lower := strings.ToLower(text)
	for _, phrase := range negatives {
		if strings.Contains(lower, phrase) {
			return false, true
		}
	}
	for _, phrase := range positives {
		if strings.Contains(lower, phrase) {
			return true, true
		}
	}
	return false, false
}

// Confidence returns the first percentage in the text, clamped to 0-100.
func Confidence(text string) (int, bool) {
	match := confidenceRe.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	v, err := strconv.Atoi(match[1])
	if err != nil || v > 100 {
		return 0, false
	}
	return v, true
}

// RiskTier finds a LOW/MEDIUM/HIGH token on a line mentioning risk.
func RiskTier(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "risk") {
			continue
		}
		for _, tier := range []string{facts.RiskHigh, facts.RiskMedium, facts.RiskLow} {
			if strings.Contains(lower, strings.ToLower(tier)) {
				return tier, true
			}
		}
	}
	return "", false
}

// Decision finds an APPROVED/REJECTED/PENDING verdict, preferring lines that
// mention "decision". DENIED is normalized to REJECTED.
func Decision(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(strings.ToLower(line), "decision") {
			if d, ok := decisionToken(line); ok {
				return d, true
			}
		}
	}
	return decisionToken(text)
}

func decisionToken(s string) (string, bool) {
	upper := strings.ToUpper(s)
	// Check REJECTED/DENIED before APPROVED so "NOT APPROVED - DENIED"
	// style phrasing resolves to the negative verdict.
	if strings.Contains(upper, facts.DecisionRejected) || strings.Contains(upper, "DENIED") {
		return facts.DecisionRejected, true
	}
	if strings.Contains(upper, facts.DecisionApproved) {
		return facts.DecisionApproved, true
	}
	if strings.Contains(upper, facts.DecisionPending) {
		return facts.DecisionPending, true
	}
	return "", false
}

// Phrase lists for the boolean indicator fields, drawn from the wording the
// analysis agents are instructed to use.
var (
	coveragePositives = []string{
		"collision coverage", "policy covers", "coverage applies",
		"covered under", "own damage", "eligible for coverage", "is eligible",
	}
	coverageNegatives = []string{
		"not covered", "coverage does not apply", "not eligible",
		"excluded from coverage", "claim is denied",
	}

	totalLossPositives = []string{"total loss"}
	totalLossNegatives = []string{"not a total loss", "do not qualify", "does not qualify"}

	authenticPositives = []string{"authentic", "consistent with"}
	authenticNegatives = []string{"not authentic", "inconsistent with", "fraudulent"}
)

// Plausibility bounds for currency fields. Values outside these ranges are
// treated as mis-parses and skipped.
var (
	idvSpec = AmountSpec{
		Labels: []string{"idv", "declared value"},
		Min:    100_000, Max: 5_000_000,
	}
	deductibleSpec = AmountSpec{
		Labels: []string{"deductible", "compulsory"},
		Min:    500, Max: 50_000,
	}
	repairSpec = AmountSpec{
		Labels: []string{"estimate", "repair", "total", "cost"},
		Min:    10_000, Max: 5_000_000,
	}
	billSpec = AmountSpec{
		Labels: []string{"approved", "reimbursement", "payable", "bill"},
		Min:    10_000, Max: 5_000_000,
	}
	approvedAmountSpec = AmountSpec{
		Labels: []string{"approved amount", "reimbursement", "approved"},
	}
)

// ForStage derives the extracted map for one stage's raw text. Keys are set
// only for fields that were actually found; an empty map means extraction
// found nothing, which is valid.
func ForStage(stage types.StageName, text string) map[string]any {
	out := make(map[string]any)

	switch stage {
	case types.StagePolicyInsight:
		putAmount(out, facts.FieldInsuredDeclaredValue, text, idvSpec)
		putAmount(out, facts.FieldDeductible, text, deductibleSpec)

	case types.StageCoverageAssessment:
		putAmount(out, facts.FieldInsuredDeclaredValue, text, idvSpec)
		putAmount(out, facts.FieldDeductible, text, deductibleSpec)
		putBool(out, facts.FieldCoverageEligible, text, coveragePositives, coverageNegatives)

	case types.StageInspection:
		putAmount(out, facts.FieldRepairEstimate, text, repairSpec)
		putBool(out, facts.FieldTotalLossIndicated, text, totalLossPositives, totalLossNegatives)
		putBool(out, facts.FieldDamageAuthentic, text, authenticPositives, authenticNegatives)

	case types.StageBillAnalysis:
		putAmount(out, facts.FieldApprovedBillAmount, text, billSpec)
		if v, ok := Confidence(text); ok {
			out[facts.FieldConfidence] = v
		}

	case types.StageFinalDecision:
		if d, ok := Decision(text); ok {
			out[facts.FieldDecision] = d
		}
		putAmount(out, facts.FieldApprovedAmount, text, approvedAmountSpec)
		if v, ok := Confidence(text); ok {
			out[facts.FieldConfidence] = v
		}
		if tier, ok := RiskTier(text); ok {
			out[facts.FieldRiskScore] = tier
		}
	}

	return out
}

func putAmount(m map[string]any, key, text string, spec AmountSpec) {
	if v, ok := Amount(text, spec); ok {
		m[key] = v
	}
}

func putBool(m map[string]any, key, text string, positives, negatives []string) {
	if v, ok := Affirmation(text, positives, negatives); ok {
		m[key] = v
	}
}

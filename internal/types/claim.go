// Package types provides type definitions for structured data used throughout the claim-processor system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"
)

// StageName identifies one analysis stage in the fixed claim pipeline.
type StageName string

// Stage name constants, in execution order.
const (
	StagePolicyInsight      StageName = "POLICY_INSIGHT"
	StageCoverageAssessment StageName = "COVERAGE_ASSESSMENT"
	StageInspection         StageName = "INSPECTION"
	StageBillAnalysis       StageName = "BILL_ANALYSIS"
	StageFinalDecision      StageName = "FINAL_DECISION"
)

// StageOrder lists all stages in execution order. Stage 1 holds the first two
// entries, which run concurrently.
var StageOrder = []StageName{
	StagePolicyInsight,
	StageCoverageAssessment,
	StageInspection,
	StageBillAnalysis,
	StageFinalDecision,
}

// StageStatus constants
const (
	StageStatusPending    = "pending"
	StageStatusProcessing = "processing"
	StageStatusCompleted  = "completed"
	StageStatusFailed     = "failed"
)

// Run status constants
const (
	RunStatusProcessing = "processing"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
)

// ClaimRequest is the immutable input for one claim run.
type ClaimRequest struct {
	ClaimID     string `json:"claim_id"`
	Description string `json:"description"`
}

// StageResult holds the outcome of a single stage execution.
// For model-backed stages Extracted is derived from RawText by the extractor;
// the deterministic decision fallback fills it directly.
type StageResult struct {
	Stage       StageName      `json:"stage"`
	Status      string         `json:"status"`
	RawText     string         `json:"raw_text,omitempty"`
	Extracted   map[string]any `json:"extracted,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	DurationMs  int            `json:"duration_ms,omitempty"`
}

// Terminal reports whether the stage has reached a final status.
func (r *StageResult) Terminal() bool {
	return r.Status == StageStatusCompleted || r.Status == StageStatusFailed
}

// ClaimRun is the aggregate state of one end-to-end claim execution.
// The coordinator is the only writer; the value is immutable once
// OverallStatus leaves "processing".
type ClaimRun struct {
	Request       ClaimRequest                `json:"request"`
	Stages        map[StageName]*StageResult  `json:"stages"`
	CurrentStep   int                         `json:"current_step"`
	OverallStatus string                      `json:"overall_status"`
	StartedAt     time.Time                   `json:"started_at"`
	CompletedAt   *time.Time                  `json:"completed_at,omitempty"`
}

// NewClaimRun creates a run with all stages pending.
func NewClaimRun(claimID, description string) *ClaimRun {
	stages := make(map[StageName]*StageResult, len(StageOrder))
	for _, name := range StageOrder {
		stages[name] = &StageResult{Stage: name, Status: StageStatusPending}
	}
	return &ClaimRun{
		Request:       ClaimRequest{ClaimID: claimID, Description: description},
		Stages:        stages,
		CurrentStep:   -1,
		OverallStatus: RunStatusProcessing,
		StartedAt:     time.Now(),
	}
}

// Stage returns the result slot for a stage name.
func (c *ClaimRun) Stage(name StageName) *StageResult {
	return c.Stages[name]
}

// CompletedStages returns the results that reached completed status, in
// execution order.
func (c *ClaimRun) CompletedStages() []*StageResult {
	var out []*StageResult
	for _, name := range StageOrder {
		if r := c.Stages[name]; r != nil && r.Status == StageStatusCompleted {
			out = append(out, r)
		}
	}
	return out
}

// Package gateway mediates every model invocation the pipeline makes. Each
// stage maps to an analyst role with its own instruction template and model
// tier; the gateway renders the instruction, applies the per-stage timeout and
// returns the raw response text untouched.
package gateway

import (
	"context"
	"time"

	"github.com/jonathan/claim-processor/internal/llm"
	"github.com/jonathan/claim-processor/internal/prompts"
	"github.com/jonathan/claim-processor/internal/types"
)

// DefaultTimeout bounds a single stage invocation.
const DefaultTimeout = 90 * time.Second

// Invoker is the single entry point the pipeline uses to run one stage's
// analysis. Implementations must be safe for concurrent use.
type Invoker interface {
	Invoke(ctx context.Context, stage types.StageName, req types.ClaimRequest, contextText string) (string, error)
}

// role binds a stage to its instruction template and model tier.
type role struct {
	promptKey string
	tier      llm.ModelTier
}

// roles is the static stage registry. The two parallel stages use the lite
// tier since they summarize rather than reason; the adjudication stage gets
// the advanced tier.
var roles = map[types.StageName]role{
	types.StagePolicyInsight:      {"policy-insight", llm.TierLite},
	types.StageCoverageAssessment: {"coverage-assessment", llm.TierStandard},
	types.StageInspection:         {"inspection", llm.TierStandard},
	types.StageBillAnalysis:       {"bill-analysis", llm.TierStandard},
	types.StageFinalDecision:      {"final-decision", llm.TierAdvanced},
}

// Gateway implements Invoker over an llm.Client.
type Gateway struct {
	client  llm.Client
	timeout time.Duration
}

// New creates a gateway with the default per-stage timeout.
func New(client llm.Client) *Gateway {
	return &Gateway{client: client, timeout: DefaultTimeout}
}

// WithTimeout returns a copy of the gateway using the given per-stage timeout.
func (g *Gateway) WithTimeout(d time.Duration) *Gateway {
	return &Gateway{client: g.client, timeout: d}
}

// Invoke renders the stage's instruction and calls the model. The returned
// text is the model output verbatim; interpretation belongs to the extractor.
func (g *Gateway) Invoke(ctx context.Context, stage types.StageName, req types.ClaimRequest, contextText string) (string, error) {
	r, ok := roles[stage]
	if !ok {
		return "", &InvocationError{Stage: stage, Message: "no role registered for stage"}
	}

	template, err := prompts.Get("stages.json", r.promptKey)
	if err != nil {
		return "", &InvocationError{Stage: stage, Message: "failed to load instruction template", Cause: err}
	}
	prompt := prompts.Format(template, map[string]string{
		"ClaimID":     req.ClaimID,
		"Description": req.Description,
		"Context":     contextText,
	})

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.client.GenerateContent(ctx, prompt, r.tier)
	if err != nil {
		return "", &InvocationError{Stage: stage, Message: "model invocation failed", Cause: err}
	}
	return text, nil
}

// Package pipeline coordinates the fixed five-stage claim analysis run. The
// first two stages run concurrently; the rest run sequentially on the merged
// findings. A stage failure degrades the run rather than aborting it: later
// stages proceed on defaults and the final decision always completes, falling
// back to a deterministic computation when the model path fails.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/claim-processor/internal/assemble"
	"github.com/jonathan/claim-processor/internal/extract"
	"github.com/jonathan/claim-processor/internal/gateway"
	"github.com/jonathan/claim-processor/internal/schemas"
	"github.com/jonathan/claim-processor/internal/store"
	"github.com/jonathan/claim-processor/internal/synthesis"
	"github.com/jonathan/claim-processor/internal/types"
)

// ErrClaimInFlight is returned when a claim_id is resubmitted while a run for
// it is still executing. A finished claim_id may be resubmitted; the rerun
// overwrites its stage records.
var ErrClaimInFlight = errors.New("claim is already being processed")

// eventBufferSize exceeds the maximum number of events a run can emit
// (two per stage plus one terminal event), so emission never blocks on a
// slow or disconnected subscriber.
const eventBufferSize = 16

// Coordinator owns run execution. It is the sole writer of a ClaimRun while
// the run is in flight.
type Coordinator struct {
	invoker gateway.Invoker
	store   store.Store
	synth   *synthesis.Engine

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates a coordinator. The store may be a Memory store when no database
// is configured.
func New(invoker gateway.Invoker, st store.Store) *Coordinator {
	return &Coordinator{
		invoker:  invoker,
		store:    st,
		synth:    synthesis.New(invoker),
		inFlight: make(map[string]struct{}),
	}
}

// Run executes a claim synchronously and returns the final run state. A run
// whose stages failed still returns successfully; callers inspect
// OverallStatus.
func (c *Coordinator) Run(ctx context.Context, claimID, description string) (*types.ClaimRun, error) {
	events, err := c.RunStream(ctx, claimID, description)
	if err != nil {
		return nil, err
	}
	var final *types.ClaimRun
	for ev := range events {
		if ev.Run != nil {
			final = ev.Run
		}
	}
	if final == nil {
		return nil, fmt.Errorf("run for claim %s ended without a terminal event", claimID)
	}
	return final, nil
}

// RunStream starts a claim run and returns its progress event stream. The
// channel is closed after the terminal RUN_COMPLETED or RUN_FAILED event.
func (c *Coordinator) RunStream(ctx context.Context, claimID, description string) (<-chan ProgressEvent, error) {
	c.mu.Lock()
	if _, busy := c.inFlight[claimID]; busy {
		c.mu.Unlock()
		return nil, ErrClaimInFlight
	}
	c.inFlight[claimID] = struct{}{}
	c.mu.Unlock()

	run := types.NewClaimRun(claimID, description)
	events := make(chan ProgressEvent, eventBufferSize)
	go c.execute(ctx, run, events)
	return events, nil
}

func (c *Coordinator) execute(ctx context.Context, run *types.ClaimRun, events chan<- ProgressEvent) {
	defer func() {
		c.mu.Lock()
		delete(c.inFlight, run.Request.ClaimID)
		c.mu.Unlock()
		close(events)
	}()

	// A run cancelled before any stage started does no model work.
	if ctx.Err() != nil {
		c.failRun(run, events, fmt.Sprintf("run cancelled: %v", ctx.Err()))
		return
	}

	// Cancellation is honored between stages; an in-flight model call runs
	// to completion under the gateway's own timeout.
	callCtx := context.WithoutCancel(ctx)

	// Stage 1: policy insight and coverage assessment in parallel. The
	// branches record their own failures locally and return an error only
	// for an at-most-once violation, so one branch's model failure cannot
	// cancel the other.
	run.CurrentStep = 0
	g, _ := errgroup.WithContext(ctx)
	for _, stage := range []types.StageName{types.StagePolicyInsight, types.StageCoverageAssessment} {
		stage := stage
		g.Go(func() error {
			return c.runStage(callCtx, run, stage, events)
		})
	}
	if err := g.Wait(); err != nil {
		c.failRun(run, events, err.Error())
		return
	}

	for i, stage := range []types.StageName{types.StageInspection, types.StageBillAnalysis} {
		if ctx.Err() != nil {
			c.failRun(run, events, fmt.Sprintf("run cancelled: %v", ctx.Err()))
			return
		}
		run.CurrentStep = 2 + i
		if err := c.runStage(callCtx, run, stage, events); err != nil {
			c.failRun(run, events, err.Error())
			return
		}
	}

	if ctx.Err() != nil {
		c.failRun(run, events, fmt.Sprintf("run cancelled: %v", ctx.Err()))
		return
	}
	run.CurrentStep = 4
	c.runFinalDecision(callCtx, run, events)

	now := time.Now()
	run.OverallStatus = types.RunStatusCompleted
	run.CompletedAt = &now
	c.emit(events, ProgressEvent{
		Type:    EventRunCompleted,
		ClaimID: run.Request.ClaimID,
		Message: "claim processing complete",
		Run:     run,
	})
}

// runStage executes one model-backed stage. It returns an error only for an
// at-most-once violation; stage-local failures are recorded on the result.
func (c *Coordinator) runStage(ctx context.Context, run *types.ClaimRun, stage types.StageName, events chan<- ProgressEvent) error {
	result := run.Stage(stage)
	if result.Status != types.StageStatusPending {
		return fmt.Errorf("stage %s started twice for claim %s", stage, run.Request.ClaimID)
	}

	c.startStage(result, run.Request.ClaimID, events)
	contextText := assemble.Context(run, stage)

	text, err := c.invoker.Invoke(ctx, stage, run.Request, contextText)
	if err != nil {
		c.finishStage(run, result, events, func(r *types.StageResult) {
			r.Status = types.StageStatusFailed
			r.Error = err.Error()
		})
		return nil
	}

	c.finishStage(run, result, events, func(r *types.StageResult) {
		r.Status = types.StageStatusCompleted
		r.RawText = text
		r.Extracted = extract.ForStage(stage, text)
	})
	return nil
}

// runFinalDecision executes the synthesis stage, which cannot fail.
func (c *Coordinator) runFinalDecision(ctx context.Context, run *types.ClaimRun, events chan<- ProgressEvent) {
	result := run.Stage(types.StageFinalDecision)
	c.startStage(result, run.Request.ClaimID, events)

	text, extracted := c.synth.Decide(ctx, run)
	c.finishStage(run, result, events, func(r *types.StageResult) {
		r.Status = types.StageStatusCompleted
		r.RawText = text
		r.Extracted = extracted
	})
}

func (c *Coordinator) startStage(result *types.StageResult, claimID string, events chan<- ProgressEvent) {
	now := time.Now()
	result.Status = types.StageStatusProcessing
	result.StartedAt = &now
	c.emit(events, ProgressEvent{
		Type:    EventStageStarted,
		ClaimID: claimID,
		Stage:   result.Stage,
		Message: fmt.Sprintf("stage %s started", result.Stage),
	})
}

// finishStage applies the outcome, persists the record and emits the stage
// event. Persistence failures are logged and never affect the run.
func (c *Coordinator) finishStage(run *types.ClaimRun, result *types.StageResult, events chan<- ProgressEvent, apply func(*types.StageResult)) {
	apply(result)
	now := time.Now()
	result.CompletedAt = &now
	if result.StartedAt != nil {
		result.DurationMs = int(now.Sub(*result.StartedAt).Milliseconds())
	}

	rec := store.FromStageResult(run.Request.ClaimID, result)
	if err := schemas.ValidateStageRecord(rec); err != nil {
		log.Printf("[pipeline] stage record for %s/%s failed schema validation: %v", run.Request.ClaimID, result.Stage, err)
	}
	if err := c.store.Put(context.Background(), rec); err != nil {
		log.Printf("[pipeline] failed to persist stage %s for claim %s: %v", result.Stage, run.Request.ClaimID, err)
	}

	ev := ProgressEvent{
		ClaimID: run.Request.ClaimID,
		Stage:   result.Stage,
	}
	if result.Status == types.StageStatusFailed {
		ev.Type = EventStageFailed
		ev.Error = result.Error
		ev.Message = fmt.Sprintf("stage %s failed", result.Stage)
	} else {
		ev.Type = EventStageCompleted
		ev.Extracted = result.Extracted
		ev.Excerpt = excerpt(result.RawText)
		ev.Message = fmt.Sprintf("stage %s completed", result.Stage)
	}
	c.emit(events, ev)
}

func (c *Coordinator) failRun(run *types.ClaimRun, events chan<- ProgressEvent, reason string) {
	now := time.Now()
	run.OverallStatus = types.RunStatusFailed
	run.CompletedAt = &now
	c.emit(events, ProgressEvent{
		Type:    EventRunFailed,
		ClaimID: run.Request.ClaimID,
		Error:   reason,
		Message: "claim processing failed",
		Run:     run,
	})
}

// emit delivers an event without ever blocking the run. The buffer holds a
// full run's worth of events, so a drop can only happen if the subscriber
// logic is broken.
func (c *Coordinator) emit(events chan<- ProgressEvent, ev ProgressEvent) {
	ev.ID = uuid.New()
	ev.Timestamp = time.Now()
	select {
	case events <- ev:
	default:
		log.Printf("[pipeline] dropped %s event for claim %s: event buffer full", ev.Type, ev.ClaimID)
	}
}

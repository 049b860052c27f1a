package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/claim-processor/internal/facts"
	"github.com/jonathan/claim-processor/internal/store"
	"github.com/jonathan/claim-processor/internal/types"
)

// scriptInvoker serves canned responses per stage and records call counts.
type scriptInvoker struct {
	mu        sync.Mutex
	responses map[types.StageName]string
	errs      map[types.StageName]error
	calls     map[types.StageName]int
	block     chan struct{} // when set, Invoke waits until closed
}

func newScriptInvoker() *scriptInvoker {
	return &scriptInvoker{
		responses: map[types.StageName]string{
			types.StagePolicyInsight:      "Policy summary. IDV: ₹5,00,000\nDeductible: ₹10,000",
			types.StageCoverageAssessment: "The damage is covered under own damage coverage.\nIDV: ₹5,00,000\nDeductible: ₹10,000",
			types.StageInspection:         "Damage is consistent with the incident.\nTotal repair estimate: ₹58,000\nNot a total loss.",
			types.StageBillAnalysis:       "Approved bill amount: ₹58,000\nConfidence: 85%",
			types.StageFinalDecision:      "DECISION: APPROVED\nAPPROVED AMOUNT: ₹48,000\nCONFIDENCE: 88%\nRISK: LOW",
		},
		errs:  map[types.StageName]error{},
		calls: map[types.StageName]int{},
	}
}

func (s *scriptInvoker) Invoke(ctx context.Context, stage types.StageName, req types.ClaimRequest, contextText string) (string, error) {
	s.mu.Lock()
	s.calls[stage]++
	block := s.block
	err := s.errs[stage]
	resp := s.responses[stage]
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return resp, nil
}

func collect(t *testing.T, events <-chan ProgressEvent) []ProgressEvent {
	t.Helper()
	var out []ProgressEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestRun_CompletesAllStages(t *testing.T) {
	inv := newScriptInvoker()
	c := New(inv, store.NewMemory())

	run, err := c.Run(context.Background(), "CLM-1", "front-end collision")
	require.NoError(t, err)

	assert.Equal(t, types.RunStatusCompleted, run.OverallStatus)
	require.NotNil(t, run.CompletedAt)
	for _, stage := range types.StageOrder {
		assert.Equal(t, types.StageStatusCompleted, run.Stage(stage).Status, "stage %s", stage)
	}

	merged := facts.Union(run)
	d, _ := facts.StringOf(merged, facts.FieldDecision)
	assert.Equal(t, facts.DecisionApproved, d)
	amount, _ := facts.AmountOf(merged, facts.FieldApprovedAmount)
	assert.Equal(t, int64(48_000), amount)
}

func TestRunStream_EventOrdering(t *testing.T) {
	inv := newScriptInvoker()
	c := New(inv, store.NewMemory())

	events, err := c.RunStream(context.Background(), "CLM-2", "collision")
	require.NoError(t, err)
	all := collect(t, events)

	require.Len(t, all, 11, "two events per stage plus one terminal event")
	assert.Equal(t, EventRunCompleted, all[len(all)-1].Type)
	require.NotNil(t, all[len(all)-1].Run)

	// The two parallel stages interleave freely, but both must be terminal
	// before any inspection event appears.
	stage1Done := 0
	for i, ev := range all {
		if ev.Stage == types.StageInspection && ev.Type == EventStageStarted {
			assert.Equal(t, 4, stage1Done, "inspection started before stage 1 finished (event %d)", i)
		}
		if ev.Stage == types.StagePolicyInsight || ev.Stage == types.StageCoverageAssessment {
			stage1Done++
		}
	}

	// Dependent stages appear strictly in order.
	var sequential []types.StageName
	for _, ev := range all {
		if ev.Type == EventStageStarted {
			switch ev.Stage {
			case types.StageInspection, types.StageBillAnalysis, types.StageFinalDecision:
				sequential = append(sequential, ev.Stage)
			}
		}
	}
	assert.Equal(t, []types.StageName{types.StageInspection, types.StageBillAnalysis, types.StageFinalDecision}, sequential)
}

func TestRun_EachStageInvokedAtMostOnce(t *testing.T) {
	inv := newScriptInvoker()
	c := New(inv, store.NewMemory())

	_, err := c.Run(context.Background(), "CLM-3", "collision")
	require.NoError(t, err)

	inv.mu.Lock()
	defer inv.mu.Unlock()
	for _, stage := range types.StageOrder {
		assert.Equal(t, 1, inv.calls[stage], "stage %s", stage)
	}
}

func TestRun_StageFailureDegradesNotAborts(t *testing.T) {
	inv := newScriptInvoker()
	inv.errs[types.StageCoverageAssessment] = errors.New("model unavailable")
	c := New(inv, store.NewMemory())

	run, err := c.Run(context.Background(), "CLM-4", "collision")
	require.NoError(t, err)

	assert.Equal(t, types.RunStatusCompleted, run.OverallStatus)
	assert.Equal(t, types.StageStatusFailed, run.Stage(types.StageCoverageAssessment).Status)
	assert.NotEmpty(t, run.Stage(types.StageCoverageAssessment).Error)
	assert.Equal(t, types.StageStatusCompleted, run.Stage(types.StageInspection).Status,
		"dependents run on defaults")
	assert.Equal(t, types.StageStatusCompleted, run.Stage(types.StageFinalDecision).Status)
}

func TestRun_AllModelFailuresStillDecide(t *testing.T) {
	inv := newScriptInvoker()
	for _, stage := range types.StageOrder {
		inv.errs[stage] = errors.New("model unavailable")
	}
	c := New(inv, store.NewMemory())

	run, err := c.Run(context.Background(), "CLM-5", "collision")
	require.NoError(t, err)

	assert.Equal(t, types.RunStatusCompleted, run.OverallStatus)
	final := run.Stage(types.StageFinalDecision)
	assert.Equal(t, types.StageStatusCompleted, final.Status)

	used, ok := facts.BoolOf(final.Extracted, facts.FieldFallbackUsed)
	require.True(t, ok)
	assert.True(t, used)
	d, _ := facts.StringOf(final.Extracted, facts.FieldDecision)
	assert.Equal(t, facts.DecisionPending, d, "no facts means nothing to approve")
}

func TestRun_PersistsEveryFinishedStage(t *testing.T) {
	inv := newScriptInvoker()
	inv.errs[types.StageInspection] = errors.New("timeout")
	st := store.NewMemory()
	c := New(inv, st)

	_, err := c.Run(context.Background(), "CLM-6", "collision")
	require.NoError(t, err)

	records, err := st.GetAll(context.Background(), "CLM-6")
	require.NoError(t, err)
	require.Len(t, records, 5, "failed stages are persisted too")
	for _, rec := range records {
		if rec.Stage == types.StageInspection {
			assert.Equal(t, types.StageStatusFailed, rec.Status)
			assert.NotEmpty(t, rec.Error)
		} else {
			assert.Equal(t, types.StageStatusCompleted, rec.Status)
		}
	}
}

func TestRunStream_InFlightClaimRejected(t *testing.T) {
	inv := newScriptInvoker()
	inv.block = make(chan struct{})
	c := New(inv, store.NewMemory())

	events, err := c.RunStream(context.Background(), "CLM-7", "collision")
	require.NoError(t, err)

	_, err = c.RunStream(context.Background(), "CLM-7", "collision resubmitted")
	assert.ErrorIs(t, err, ErrClaimInFlight)

	close(inv.block)
	collect(t, events)

	// A finished claim may be resubmitted.
	rerun, err := c.Run(context.Background(), "CLM-7", "collision rerun")
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusCompleted, rerun.OverallStatus)
}

func TestRunStream_CancellationFailsRun(t *testing.T) {
	inv := newScriptInvoker()
	c := New(inv, store.NewMemory())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events, err := c.RunStream(ctx, "CLM-8", "collision")
	require.NoError(t, err)
	all := collect(t, events)

	require.NotEmpty(t, all)
	last := all[len(all)-1]
	assert.Equal(t, EventRunFailed, last.Type)
	require.NotNil(t, last.Run)
	assert.Equal(t, types.RunStatusFailed, last.Run.OverallStatus)

	// No model call is made for a run that was cancelled before it began.
	inv.mu.Lock()
	defer inv.mu.Unlock()
	assert.Empty(t, inv.calls)
}

func TestRunStream_SlowSubscriberDoesNotStallRun(t *testing.T) {
	inv := newScriptInvoker()
	c := New(inv, store.NewMemory())

	events, err := c.RunStream(context.Background(), "CLM-9", "collision")
	require.NoError(t, err)

	// Read nothing until the run has had time to finish; the buffered
	// channel must absorb every event.
	time.Sleep(50 * time.Millisecond)
	all := collect(t, events)
	assert.Len(t, all, 11)
	assert.Equal(t, EventRunCompleted, all[len(all)-1].Type)
}

package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/claim-processor/internal/types"
)

// EventType identifies a progress event kind.
type EventType string

// Progress event types, in the order they can occur for a stage and a run.
const (
	EventStageStarted   EventType = "STAGE_STARTED"
	EventStageCompleted EventType = "STAGE_COMPLETED"
	EventStageFailed    EventType = "STAGE_FAILED"
	EventRunCompleted   EventType = "RUN_COMPLETED"
	EventRunFailed      EventType = "RUN_FAILED"
)

// ProgressEvent is one observation of run progress. Run is set only on the
// terminal RUN_COMPLETED / RUN_FAILED event, which always closes the stream.
type ProgressEvent struct {
	ID        uuid.UUID       `json:"id"`
	Type      EventType       `json:"type"`
	ClaimID   string          `json:"claim_id"`
	Stage     types.StageName `json:"stage,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Message   string          `json:"message,omitempty"`
	Extracted map[string]any  `json:"extracted,omitempty"`
	Excerpt   string          `json:"excerpt,omitempty"`
	Error     string          `json:"error,omitempty"`
	Run       *types.ClaimRun `json:"run,omitempty"`
}

// maxExcerptLen bounds the raw-text excerpt carried on completion events.
const maxExcerptLen = 240

func excerpt(text string) string {
	if len(text) <= maxExcerptLen {
		return text
	}
	return text[:maxExcerptLen] + "..."
}

// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/claim-processor/internal/facts"
	"github.com/jonathan/claim-processor/internal/pipeline"
	"github.com/jonathan/claim-processor/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintEvent outputs a single progress event as a one-liner.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintEvent(ev pipeline.ProgressEvent) {
	switch ev.Type {
	case pipeline.EventStageStarted:
		fmt.Fprintf(p.out, "→ %s\n", ev.Stage)
	case pipeline.EventStageCompleted:
		fmt.Fprintf(p.out, "✓ %s (%d facts)\n", ev.Stage, len(ev.Extracted))
	case pipeline.EventStageFailed:
		fmt.Fprintf(p.out, "✗ %s: %s\n", ev.Stage, ev.Error)
	case pipeline.EventRunFailed:
		fmt.Fprintf(p.out, "✗ run failed: %s\n", ev.Error)
	}
}

// PrintRun outputs a human-readable summary of a finished claim run.
func (p *Printer) PrintRun(run *types.ClaimRun) {
	if run == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Claim:   %s\n", run.Request.ClaimID))
	sb.WriteString(fmt.Sprintf("Status:  %s\n", run.OverallStatus))
	if run.CompletedAt != nil {
		sb.WriteString(fmt.Sprintf("Took:    %v\n", run.CompletedAt.Sub(run.StartedAt).Round(10*time.Millisecond)))
	}
	sb.WriteString("\nStages:\n")
	for _, name := range types.StageOrder {
		result := run.Stage(name)
		marker := "✓"
		if result.Status == types.StageStatusFailed {
			marker = "✗"
		}
		sb.WriteString(fmt.Sprintf("  %s %-20s %s\n", marker, name, result.Status))
	}

	p.printBox("CLAIM RUN", strings.TrimSuffix(sb.String(), "\n"))
	p.printDecision(run)
}

// printDecision outputs the final decision facts.
func (p *Printer) printDecision(run *types.ClaimRun) {
	merged := facts.Union(run)

	var sb strings.Builder
	if d, ok := facts.StringOf(merged, facts.FieldDecision); ok {
		sb.WriteString(fmt.Sprintf("Decision:        %s\n", d))
	}
	if amount, ok := facts.AmountOf(merged, facts.FieldApprovedAmount); ok {
		sb.WriteString(fmt.Sprintf("Approved amount: ₹%d\n", amount))
	}
	if conf, ok := facts.IntOf(merged, facts.FieldConfidence); ok {
		sb.WriteString(fmt.Sprintf("Confidence:      %d%%\n", conf))
	}
	if risk, ok := facts.StringOf(merged, facts.FieldRiskScore); ok {
		sb.WriteString(fmt.Sprintf("Risk:            %s\n", risk))
	}
	if used, ok := facts.BoolOf(merged, facts.FieldFallbackUsed); ok && used {
		sb.WriteString("Computed deterministically (model synthesis unavailable)\n")
	}
	if sb.Len() == 0 {
		return
	}

	p.printBox("DECISION", strings.TrimSuffix(sb.String(), "\n"))
}

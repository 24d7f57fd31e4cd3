package engine

import (
	"context"
	"fmt"

	"github.com/Digital-Shane/episode-tidy/internal/plan"
	"github.com/Digital-Shane/episode-tidy/internal/resolve"
	"github.com/Digital-Shane/episode-tidy/internal/scan"
)

// OutcomeKind is the terminal result class for one file.
type OutcomeKind string

const (
	OutcomeRenamed OutcomeKind = "renamed"
	OutcomeDeleted OutcomeKind = "deleted"
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeFailed  OutcomeKind = "failed"
)

// Outcome is the terminal result for one RawEntry, emitted exactly once per
// run.
type Outcome struct {
	Entry      scan.RawEntry
	Kind       OutcomeKind
	NewPath    string
	SkipReason plan.SkipReason
	Unresolved resolve.UnresolvedReason
	Err        error
}

// Describe renders a one-line human summary, used by instant mode and the
// progress view.
func (o Outcome) Describe() string {
	switch o.Kind {
	case OutcomeRenamed:
		return fmt.Sprintf("%s -> %s", o.Entry.Name, o.NewPath)
	case OutcomeDeleted:
		return fmt.Sprintf("deleted %s", o.Entry.Name)
	case OutcomeSkipped:
		if o.SkipReason == plan.SkipUnresolved {
			return fmt.Sprintf("skipped %s (%s: %s)", o.Entry.Name, o.SkipReason, o.Unresolved)
		}
		return fmt.Sprintf("skipped %s (%s)", o.Entry.Name, o.SkipReason)
	case OutcomeFailed:
		return fmt.Sprintf("failed %s: %v", o.Entry.Name, o.Err)
	default:
		return o.Entry.Name
	}
}

// Result aggregates a completed run for non-interactive callers.
type Result struct {
	Outcomes []Outcome
	FatalErr error
}

// ErrorCount returns the number of failed files.
func (r Result) ErrorCount() int {
	count := 0
	for _, o := range r.Outcomes {
		if o.Kind == OutcomeFailed {
			count++
		}
	}
	return count
}

// RunToCompletion drains the engine's event stream and returns the aggregate
// result. Used by instant mode, where no UI consumes the stream live.
func (e *Engine) RunToCompletion(ctx context.Context) Result {
	var result Result
	for event := range e.Start(ctx) {
		if event.Err != nil {
			result.FatalErr = event.Err
		}
		if event.Outcome != nil {
			result.Outcomes = append(result.Outcomes, *event.Outcome)
		}
	}
	return result
}

package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/Digital-Shane/episode-tidy/internal/fsops"
	"github.com/Digital-Shane/episode-tidy/internal/media"
	"github.com/Digital-Shane/episode-tidy/internal/plan"
	"github.com/Digital-Shane/episode-tidy/internal/resolve"
	"github.com/Digital-Shane/episode-tidy/internal/scan"
	"github.com/Digital-Shane/episode-tidy/internal/tvdb"
	"github.com/mhmtszr/concurrent-swiss-map"
)

// Engine drives one rename run: scan the directory, resolve files against the
// metadata client on a bounded worker pool, plan actions, then apply them
// one file at a time. Progress is exposed as an event stream plus summary
// snapshots for UI consumption.
type Engine struct {
	client      resolve.MetadataClient
	dir         string
	workerCount int

	blacklist    []string
	template     string
	preserveTags []string

	outcomes *csmap.CsMap[string, Outcome]

	summaryMu sync.RWMutex
	summary   Summary
}

// Config configures a run.
type Config struct {
	Client resolve.MetadataClient
	Dir    string
	// WorkerCount bounds concurrent resolutions. Keep it below the client's
	// rate limit so the limiter stays the single throttling point.
	WorkerCount  int
	Blacklist    []string
	Template     string
	PreserveTags []string
}

// Summary captures the state of the run at a point in time.
type Summary struct {
	TotalFiles     int
	ProcessedFiles int
	ActiveWorkers  int
	WorkerLimit    int
	Renamed        int
	Deleted        int
	Skipped        int
	Failed         int
	LastItem       string
	Done           bool
	Canceled       bool
}

// Event is one update emitted by the engine. Outcome is set when a file
// reached a terminal state; Err is set only for run-fatal failures (scan
// failure, authentication loss).
type Event struct {
	Summary Summary
	Outcome *Outcome
	Err     error
}

// New constructs an engine with sane defaults applied.
func New(cfg Config) *Engine {
	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 3
	}

	return &Engine{
		client:       cfg.Client,
		dir:          cfg.Dir,
		workerCount:  workerCount,
		blacklist:    cfg.Blacklist,
		template:     cfg.Template,
		preserveTags: cfg.PreserveTags,
		outcomes:     csmap.Create[string, Outcome](),
		summary:      Summary{WorkerLimit: workerCount},
	}
}

// Start begins the run and returns its event stream. The channel closes when
// the run finishes or is canceled. Outcomes arrive in completion order, not
// scan order; consumers key by entry path.
func (e *Engine) Start(ctx context.Context) <-chan Event {
	events := make(chan Event, 128)
	go e.run(ctx, events)
	return events
}

// Outcomes returns the per-file outcomes keyed by original path. Complete
// once the event stream has closed.
func (e *Engine) Outcomes() map[string]Outcome {
	result := make(map[string]Outcome, e.outcomes.Count())
	e.outcomes.Range(func(key string, value Outcome) bool {
		result[key] = value
		return false
	})
	return result
}

// SummarySnapshot returns the latest progress summary.
func (e *Engine) SummarySnapshot() Summary {
	e.summaryMu.RLock()
	defer e.summaryMu.RUnlock()
	return e.summary
}

// resolveResult carries one file's resolution off the worker pool.
type resolveResult struct {
	entry      scan.RawEntry
	match      *resolve.Match
	unresolved *resolve.Unresolved
	err        error
}

func (e *Engine) run(ctx context.Context, events chan<- Event) {
	defer close(events)

	entries, err := scan.Directory(e.dir)
	if err != nil {
		e.finish(false)
		e.emit(ctx, events, Event{Summary: e.SummarySnapshot(), Err: err})
		return
	}

	e.summaryMu.Lock()
	e.summary.TotalFiles = len(entries)
	e.summaryMu.Unlock()
	e.emit(ctx, events, Event{Summary: e.SummarySnapshot()})

	planner := plan.NewPlanner(e.blacklist, e.template, e.preserveTags, entries, paths(entries))

	// Blacklisted files skip parsing and resolution entirely.
	var toResolve []scan.RawEntry
	for _, entry := range entries {
		if !planner.Blacklisted(entry) {
			toResolve = append(toResolve, entry)
		}
	}

	resolutions, fatal := e.resolvePhase(ctx, toResolve)
	if fatal != nil {
		e.finish(errors.Is(fatal, context.Canceled))
		e.emit(ctx, events, Event{Summary: e.SummarySnapshot(), Err: fatal})
		return
	}
	if ctx.Err() != nil {
		e.finish(true)
		e.emit(ctx, events, Event{Summary: e.SummarySnapshot()})
		return
	}

	// Plan in scan order so collision precedence is deterministic, then
	// apply. Mutations are guarded per file; a failure never aborts
	// siblings. Cancellation is honored between files, never mid-mutation.
	for _, entry := range entries {
		if ctx.Err() != nil {
			e.finish(true)
			e.emit(ctx, events, Event{Summary: e.SummarySnapshot()})
			return
		}

		res, ok := resolutions[entry.Path]
		if !ok {
			res = resolveResult{entry: entry}
		}

		var outcome Outcome
		if res.err != nil {
			outcome = Outcome{Entry: entry, Kind: OutcomeFailed, Err: res.err}
		} else {
			p := planner.Plan(plan.Resolution{Entry: entry, Match: res.match, Unresolved: res.unresolved})
			outcome = e.apply(p)
		}

		e.record(outcome)
		e.emit(ctx, events, Event{Summary: e.SummarySnapshot(), Outcome: &outcome})
	}

	e.finish(false)
	e.emit(ctx, events, Event{Summary: e.SummarySnapshot()})
}

// resolvePhase runs candidate resolution on the worker pool. It returns the
// per-path results, or a fatal error when authentication was lost (nothing
// proceeds without a valid session).
func (e *Engine) resolvePhase(ctx context.Context, entries []scan.RawEntry) (map[string]resolveResult, error) {
	results := make(map[string]resolveResult, len(entries))
	if len(entries) == 0 {
		return results, nil
	}

	workerCount := e.workerCount
	if workerCount > len(entries) {
		workerCount = len(entries)
	}

	workCh := make(chan scan.RawEntry)
	resultCh := make(chan resolveResult)
	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go e.worker(ctx, &wg, workCh, resultCh)
	}

	e.summaryMu.Lock()
	e.summary.ActiveWorkers = workerCount
	e.summaryMu.Unlock()

	go func() {
		defer close(workCh)
		for _, entry := range entries {
			select {
			case workCh <- entry:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var fatal error
	for res := range resultCh {
		var authErr *tvdb.AuthError
		if res.err != nil && errors.As(res.err, &authErr) && fatal == nil {
			fatal = res.err
		}
		results[res.entry.Path] = res
	}

	e.summaryMu.Lock()
	e.summary.ActiveWorkers = 0
	e.summaryMu.Unlock()

	return results, fatal
}

func (e *Engine) worker(ctx context.Context, wg *sync.WaitGroup, workCh <-chan scan.RawEntry, resultCh chan<- resolveResult) {
	defer wg.Done()

	for entry := range workCh {
		if ctx.Err() != nil {
			return
		}

		candidates := media.Parse(entry.Name)
		match, err := resolve.Resolve(ctx, e.client, entry, candidates)

		res := resolveResult{entry: entry, match: match}
		if err != nil {
			var unresolved *resolve.Unresolved
			if errors.As(err, &unresolved) {
				res.unresolved = unresolved
			} else {
				res.err = err
			}
		}

		select {
		case resultCh <- res:
		case <-ctx.Done():
			return
		}
	}
}

// apply executes one plan against the filesystem. Failures are captured into
// the outcome, never propagated.
func (e *Engine) apply(p plan.Plan) Outcome {
	entry := p.Entry

	switch p.Action {
	case plan.ActionRename:
		if err := fsops.Rename(entry.Path, p.TargetPath); err != nil {
			return Outcome{Entry: entry, Kind: OutcomeFailed, Err: err}
		}
		return Outcome{Entry: entry, Kind: OutcomeRenamed, NewPath: p.TargetPath}
	case plan.ActionDelete:
		if err := fsops.Delete(entry.Path); err != nil {
			return Outcome{Entry: entry, Kind: OutcomeFailed, Err: err}
		}
		return Outcome{Entry: entry, Kind: OutcomeDeleted}
	default:
		return Outcome{Entry: entry, Kind: OutcomeSkipped, SkipReason: p.SkipReason, Unresolved: p.Unresolved}
	}
}

func (e *Engine) record(outcome Outcome) {
	e.outcomes.Store(outcome.Entry.Path, outcome)

	e.summaryMu.Lock()
	e.summary.ProcessedFiles++
	e.summary.LastItem = outcome.Entry.Name
	switch outcome.Kind {
	case OutcomeRenamed:
		e.summary.Renamed++
	case OutcomeDeleted:
		e.summary.Deleted++
	case OutcomeSkipped:
		e.summary.Skipped++
	case OutcomeFailed:
		e.summary.Failed++
	}
	e.summaryMu.Unlock()
}

func (e *Engine) finish(canceled bool) {
	e.summaryMu.Lock()
	e.summary.Done = true
	e.summary.Canceled = canceled
	e.summary.ActiveWorkers = 0
	e.summaryMu.Unlock()
}

func (e *Engine) emit(ctx context.Context, events chan<- Event, event Event) {
	select {
	case events <- event:
	case <-ctx.Done():
	}
}

func paths(entries []scan.RawEntry) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Path)
	}
	return out
}

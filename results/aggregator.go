package results

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/op-reporter/types"
)

// Phase tracks where the aggregator is in the run lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCollecting
	PhaseFinalized
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCollecting:
		return "collecting"
	case PhaseFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Counters holds the running tallies for a run in progress.
type Counters struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
	Flaky   int
}

// Config controls aggregation behavior.
type Config struct {
	// MaxFailuresToShow bounds the failure list carried into the
	// summary. The true failed count is kept regardless. Zero means
	// the default of DefaultMaxFailuresToShow.
	MaxFailuresToShow int

	// IncludeScreenshots annotates failure records with the first
	// image attachment of the failing test.
	IncludeScreenshots bool
}

// Aggregator accumulates per-test outcomes into counters and failure
// records, then produces a summary exactly once. Lifecycle calls are
// delivered serially by the runner (begin, per-test events, end), so
// no locking is needed here.
type Aggregator struct {
	log log.Logger
	cfg Config

	phase    Phase
	meta     types.RunMetadata
	counters Counters
	failures []types.TestFailure
}

// NewAggregator creates an aggregator in the idle phase.
func NewAggregator(l log.Logger, cfg Config) *Aggregator {
	if l == nil {
		l = log.Root()
	}
	return &Aggregator{
		log:   l,
		cfg:   cfg,
		phase: PhaseIdle,
	}
}

// Phase returns the current lifecycle phase.
func (a *Aggregator) Phase() Phase {
	return a.phase
}

// RunID returns the run identifier, empty before Begin.
func (a *Aggregator) RunID() string {
	return a.meta.RunID
}

// Counters returns a copy of the running tallies.
func (a *Aggregator) Counters() Counters {
	return a.counters
}

// Begin moves the aggregator into the collecting phase and captures the
// run metadata. A missing run ID or start time is filled in here so the
// rest of the pipeline can rely on both being set.
func (a *Aggregator) Begin(meta types.RunMetadata) error {
	if a.phase != PhaseIdle {
		return fmt.Errorf("cannot begin run in phase %s", a.phase)
	}
	if meta.RunID == "" {
		meta.RunID = uuid.New().String()
	}
	if meta.StartTime.IsZero() {
		meta.StartTime = time.Now()
	}
	a.meta = meta
	a.phase = PhaseCollecting
	a.log.Debug("Run started", "run_id", meta.RunID, "project", meta.ProjectName)
	return nil
}

// RecordOutcome classifies one finished test into the counters. Every
// outcome increments the total exactly once. Failed and timed-out tests
// additionally produce a failure record; interrupted tests count as
// skipped.
func (a *Aggregator) RecordOutcome(o types.TestOutcome) error {
	if a.phase != PhaseCollecting {
		return fmt.Errorf("cannot record outcome in phase %s", a.phase)
	}
	if !o.Status.Valid() {
		return fmt.Errorf("outcome %q has unknown status %q", o.Title, o.Status)
	}

	a.counters.Total++
	switch o.Status {
	case types.TestStatusPassed:
		a.counters.Passed++
		if o.IsFlaky() {
			a.counters.Flaky++
		}
	case types.TestStatusFailed, types.TestStatusTimedOut:
		a.counters.Failed++
		a.failures = append(a.failures, types.NewTestFailure(o, a.cfg.IncludeScreenshots))
	case types.TestStatusSkipped, types.TestStatusInterrupted:
		a.counters.Skipped++
	}
	return nil
}

// Finalize builds the run summary. It may be called exactly once;
// calling it again, or recording outcomes afterwards, is a caller bug
// and surfaces as an error rather than silently reordering state.
func (a *Aggregator) Finalize() (*types.TestSummary, error) {
	if a.phase == PhaseFinalized {
		return nil, fmt.Errorf("run %s already finalized", a.meta.RunID)
	}
	if a.phase != PhaseCollecting {
		return nil, fmt.Errorf("cannot finalize run in phase %s", a.phase)
	}
	if a.meta.EndTime.IsZero() {
		a.meta.EndTime = time.Now()
	}
	a.phase = PhaseFinalized

	summary := BuildSummary(a.counters, a.failures, a.meta, a.cfg.MaxFailuresToShow)
	a.log.Debug("Run finalized",
		"run_id", summary.RunID,
		"total", summary.Total,
		"passed", summary.Passed,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"flaky", summary.Flaky)
	return summary, nil
}

// SetEndTime overrides the run end time before finalization. The feed
// may carry an authoritative end timestamp from the runner.
func (a *Aggregator) SetEndTime(t time.Time) {
	if a.phase == PhaseCollecting && !t.IsZero() {
		a.meta.EndTime = t
	}
}

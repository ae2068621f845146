package results

import (
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-reporter/types"
)

// DefaultMaxFailuresToShow bounds the failure list in notifications
// unless configured otherwise.
const DefaultMaxFailuresToShow = 5

// BuildSummary converts the final counters, failure records and run
// metadata into an immutable TestSummary. The failure list is truncated
// to maxFailures entries; the true failed count stays in the counters
// so formatters can say how many more were omitted.
func BuildSummary(c Counters, failures []types.TestFailure, meta types.RunMetadata, maxFailures int) *types.TestSummary {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailuresToShow
	}

	duration := meta.EndTime.Sub(meta.StartTime)
	if duration < 0 {
		// An end time before the start time means the runner fed us
		// bad timestamps. Not worth failing the report over.
		log.Warn("Run end time precedes start time, clamping duration to zero",
			"run_id", meta.RunID, "start", meta.StartTime, "end", meta.EndTime)
		duration = 0
	}

	shown := failures
	if len(shown) > maxFailures {
		shown = shown[:maxFailures]
	}
	// Copy so the summary does not alias the aggregator's slice.
	kept := make([]types.TestFailure, len(shown))
	copy(kept, shown)

	return &types.TestSummary{
		RunID:       meta.RunID,
		ProjectName: meta.ProjectName,
		Environment: meta.Environment,
		CIRunURL:    meta.CIRunURL,
		Total:       c.Total,
		Passed:      c.Passed,
		Failed:      c.Failed,
		Skipped:     c.Skipped,
		Flaky:       c.Flaky,
		Duration:    duration,
		StartTime:   meta.StartTime,
		EndTime:     meta.EndTime,
		Failures:    kept,
	}
}

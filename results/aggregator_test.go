package results

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-reporter/types"
)

func beginRun(t *testing.T, agg *Aggregator) {
	t.Helper()
	require.NoError(t, agg.Begin(types.RunMetadata{
		RunID:     "run-1",
		StartTime: time.Now().Add(-time.Minute),
	}))
}

func TestAggregatorClassification(t *testing.T) {
	agg := NewAggregator(nil, Config{})
	beginRun(t, agg)

	// 6 clean passes, 1 pass after a retry, 1 failure.
	for i := 0; i < 6; i++ {
		require.NoError(t, agg.RecordOutcome(types.TestOutcome{
			Title:  fmt.Sprintf("test-%d", i),
			Status: types.TestStatusPassed,
		}))
	}
	require.NoError(t, agg.RecordOutcome(types.TestOutcome{
		Title:   "flaky test",
		Status:  types.TestStatusPassed,
		Retries: 1,
	}))
	require.NoError(t, agg.RecordOutcome(types.TestOutcome{
		Title:  "broken test",
		Status: types.TestStatusFailed,
		Error:  "boom",
	}))

	summary, err := agg.Finalize()
	require.NoError(t, err)

	assert.Equal(t, 8, summary.Total)
	assert.Equal(t, 7, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 1, summary.Flaky)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "broken test", summary.Failures[0].Title)
}

func TestAggregatorCountersInvariant(t *testing.T) {
	statuses := []types.TestStatus{
		types.TestStatusPassed,
		types.TestStatusFailed,
		types.TestStatusTimedOut,
		types.TestStatusSkipped,
		types.TestStatusInterrupted,
		types.TestStatusPassed,
		types.TestStatusInterrupted,
		types.TestStatusTimedOut,
		types.TestStatusSkipped,
		types.TestStatusFailed,
	}

	agg := NewAggregator(nil, Config{})
	beginRun(t, agg)
	for i, status := range statuses {
		require.NoError(t, agg.RecordOutcome(types.TestOutcome{
			Title:  fmt.Sprintf("test-%d", i),
			Status: status,
		}))
	}

	summary, err := agg.Finalize()
	require.NoError(t, err)

	// Total is partitioned exactly by the three counters; interrupted
	// counts as skipped.
	assert.Equal(t, len(statuses), summary.Total)
	assert.Equal(t, summary.Total, summary.Passed+summary.Failed+summary.Skipped)
	assert.Equal(t, 2, summary.Passed)
	assert.Equal(t, 4, summary.Failed)
	assert.Equal(t, 4, summary.Skipped)
	assert.LessOrEqual(t, summary.Flaky, summary.Passed)
	assert.LessOrEqual(t, len(summary.Failures), summary.Failed)
}

func TestAggregatorTimedOutProducesFailureRecord(t *testing.T) {
	agg := NewAggregator(nil, Config{})
	beginRun(t, agg)
	require.NoError(t, agg.RecordOutcome(types.TestOutcome{
		Title:  "stuck test",
		Status: types.TestStatusTimedOut,
	}))

	summary, err := agg.Finalize()
	require.NoError(t, err)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "test timed out", summary.Failures[0].Error)
}

func TestAggregatorLifecycleViolations(t *testing.T) {
	agg := NewAggregator(nil, Config{})

	// Recording before Begin is a caller bug.
	err := agg.RecordOutcome(types.TestOutcome{Status: types.TestStatusPassed})
	assert.ErrorContains(t, err, "idle")

	// Finalizing before Begin too.
	_, err = agg.Finalize()
	assert.Error(t, err)

	beginRun(t, agg)
	assert.ErrorContains(t, agg.Begin(types.RunMetadata{}), "cannot begin")

	_, err = agg.Finalize()
	require.NoError(t, err)

	// Second finalize is rejected explicitly.
	_, err = agg.Finalize()
	assert.ErrorContains(t, err, "already finalized")

	// No outcome may be recorded after finalize.
	err = agg.RecordOutcome(types.TestOutcome{Status: types.TestStatusPassed})
	assert.ErrorContains(t, err, "finalized")
}

func TestAggregatorRejectsUnknownStatus(t *testing.T) {
	agg := NewAggregator(nil, Config{})
	beginRun(t, agg)
	err := agg.RecordOutcome(types.TestOutcome{Title: "weird", Status: "exploded"})
	assert.ErrorContains(t, err, "unknown status")

	summary, err := agg.Finalize()
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
}

func TestAggregatorFillsRunID(t *testing.T) {
	agg := NewAggregator(nil, Config{})
	require.NoError(t, agg.Begin(types.RunMetadata{}))
	assert.NotEmpty(t, agg.RunID())
}

func TestAggregatorScreenshots(t *testing.T) {
	agg := NewAggregator(nil, Config{IncludeScreenshots: true})
	beginRun(t, agg)
	require.NoError(t, agg.RecordOutcome(types.TestOutcome{
		Title:       "with screenshot",
		Status:      types.TestStatusFailed,
		Attachments: []string{"video.webm", "shot.png"},
	}))

	summary, err := agg.Finalize()
	require.NoError(t, err)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "shot.png", summary.Failures[0].Screenshot)
}

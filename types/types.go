package types

import (
	"fmt"
	"strings"
	"time"
)

// TestStatus represents the terminal state of one executed test.
// It is a closed set; anything else must be rejected at the ingestion
// boundary via ParseStatus.
type TestStatus string

const (
	TestStatusPassed      TestStatus = "passed"
	TestStatusFailed      TestStatus = "failed"
	TestStatusTimedOut    TestStatus = "timed_out"
	TestStatusSkipped     TestStatus = "skipped"
	TestStatusInterrupted TestStatus = "interrupted"
)

// Valid reports whether the status is one of the known states.
func (s TestStatus) Valid() bool {
	switch s {
	case TestStatusPassed, TestStatusFailed, TestStatusTimedOut, TestStatusSkipped, TestStatusInterrupted:
		return true
	}
	return false
}

// IsFailure reports whether the status counts against the run
// (failed and timed-out tests both do).
func (s TestStatus) IsFailure() bool {
	return s == TestStatusFailed || s == TestStatusTimedOut
}

// ParseStatus normalizes a raw status string coming from a runner feed.
// Runners spell these differently ("timedOut", "timed-out"), so we fold
// case and separators before matching. Unknown values are an error.
func ParseStatus(raw string) (TestStatus, error) {
	folded := strings.ToLower(strings.TrimSpace(raw))
	folded = strings.NewReplacer("-", "_", " ", "_").Replace(folded)
	switch folded {
	case "passed", "pass":
		return TestStatusPassed, nil
	case "failed", "fail":
		return TestStatusFailed, nil
	case "timed_out", "timedout", "timeout":
		return TestStatusTimedOut, nil
	case "skipped", "skip":
		return TestStatusSkipped, nil
	case "interrupted":
		return TestStatusInterrupted, nil
	}
	return "", fmt.Errorf("unknown test status %q", raw)
}

// TestOutcome captures the result of a single finished test as reported
// by the runner. Outcomes are immutable once created and only held for
// the duration of the run.
type TestOutcome struct {
	Title       string        // Test title as shown by the runner
	Suite       string        // Parent suite or describe-block title
	File        string        // Source file the test lives in
	Status      TestStatus    //
	Duration    time.Duration //
	Retries     int           // Number of retries before this terminal status
	Error       string        // Error text for failing tests, empty otherwise
	Attachments []string      // Paths to artifacts (screenshots, traces)
}

// IsFlaky reports whether the outcome ultimately passed but only after
// at least one retry. This deliberately does not distinguish a test
// that failed then passed from one retried for infrastructure reasons.
func (o TestOutcome) IsFlaky() bool {
	return o.Status == TestStatusPassed && o.Retries > 0
}

// Screenshot returns the first image attachment, if any.
func (o TestOutcome) Screenshot() string {
	for _, a := range o.Attachments {
		lower := strings.ToLower(a)
		if strings.HasSuffix(lower, ".png") || strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg") {
			return a
		}
	}
	return ""
}

// TestFailure is the subset of a failing outcome that ends up in
// notifications.
type TestFailure struct {
	Title      string
	File       string
	Error      string
	Duration   time.Duration
	Screenshot string // Optional path, populated only when screenshot reporting is enabled
}

// NewTestFailure derives a failure record from a failed or timed-out
// outcome.
func NewTestFailure(o TestOutcome, includeScreenshot bool) TestFailure {
	f := TestFailure{
		Title:    o.Title,
		File:     o.File,
		Error:    o.Error,
		Duration: o.Duration,
	}
	if o.Status == TestStatusTimedOut && f.Error == "" {
		f.Error = "test timed out"
	}
	if includeScreenshot {
		f.Screenshot = o.Screenshot()
	}
	return f
}

// RunMetadata describes the run being reported on, independent of any
// individual test.
type RunMetadata struct {
	RunID       string
	ProjectName string
	Environment string
	CIRunURL    string
	StartTime   time.Time
	EndTime     time.Time
}

// TestSummary is the finalized, immutable aggregate for an entire run.
// It is built exactly once, at run end.
type TestSummary struct {
	RunID       string
	ProjectName string
	Environment string
	CIRunURL    string

	Total   int
	Passed  int
	Failed  int
	Skipped int
	Flaky   int

	Duration  time.Duration
	StartTime time.Time
	EndTime   time.Time

	// Failures is ordered by execution and may be truncated for
	// display; Failed always carries the true count.
	Failures []TestFailure
}

// Status collapses the summary into a single run status. Skips alone do
// not fail a run.
func (s *TestSummary) Status() TestStatus {
	if s.Failed > 0 {
		return TestStatusFailed
	}
	if s.Total > 0 && s.Passed == 0 && s.Skipped == s.Total {
		return TestStatusSkipped
	}
	return TestStatusPassed
}

// String returns a compact single-line description of the run.
func (s *TestSummary) String() string {
	return fmt.Sprintf("run %s: %d total, %d passed, %d failed, %d skipped, %d flaky (%s)",
		s.RunID, s.Total, s.Passed, s.Failed, s.Skipped, s.Flaky, s.Duration.Truncate(time.Millisecond))
}

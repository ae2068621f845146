// Package feed decodes the test runner's outcome stream. The runner is
// an external collaborator; it emits one JSON object per line with a
// run-begin signal, one event per finished test, and a run-end signal.
// This package is the ingestion boundary: unknown statuses and
// malformed lines are rejected here instead of propagating further.
package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-reporter/metrics"
	"github.com/ethereum-optimism/infra/op-reporter/types"
)

// Action discriminates the event kinds in the feed.
type Action string

const (
	ActionBegin Action = "begin"
	ActionTest  Action = "test"
	ActionEnd   Action = "end"
)

// Event is one line of the feed.
type Event struct {
	Action      Action     `json:"action"`
	Time        time.Time  `json:"time,omitempty"`
	RunID       string     `json:"runId,omitempty"`
	Project     string     `json:"project,omitempty"`
	Environment string     `json:"environment,omitempty"`
	CIRunURL    string     `json:"ciRunUrl,omitempty"`
	Test        *TestEvent `json:"test,omitempty"`
}

// TestEvent carries the outcome fields of a finished test.
type TestEvent struct {
	Title       string   `json:"title"`
	Suite       string   `json:"suite,omitempty"`
	File        string   `json:"file,omitempty"`
	Status      string   `json:"status"`
	DurationMS  int64    `json:"durationMs"`
	Retries     int      `json:"retries,omitempty"`
	Error       string   `json:"error,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

// Handler receives the decoded lifecycle calls in feed order.
type Handler interface {
	Begin(meta types.RunMetadata) error
	OnTestEnd(outcome types.TestOutcome) error
	End(ctx context.Context, endTime time.Time) error
}

// Decoder reads a feed stream and drives a Handler.
type Decoder struct {
	log log.Logger
}

// NewDecoder creates a feed decoder.
func NewDecoder(l log.Logger) *Decoder {
	if l == nil {
		l = log.Root()
	}
	return &Decoder{log: l}
}

// Decode reads events until EOF or the end signal, forwarding them to
// the handler. Malformed lines and unknown statuses are logged,
// counted, and skipped; handler errors are contract violations and
// abort decoding.
func (d *Decoder) Decode(ctx context.Context, r io.Reader, h Handler) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		lineNo    int
		sawBegin  bool
		sawEnd    bool
		skipCount int
	)
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			d.log.Warn("Skipping malformed feed line", "line", lineNo, "err", err)
			metrics.RecordError("malformed feed line")
			skipCount++
			continue
		}

		switch ev.Action {
		case ActionBegin:
			if err := h.Begin(types.RunMetadata{
				RunID:       ev.RunID,
				ProjectName: ev.Project,
				Environment: ev.Environment,
				CIRunURL:    ev.CIRunURL,
				StartTime:   ev.Time,
			}); err != nil {
				return fmt.Errorf("feed line %d: %w", lineNo, err)
			}
			sawBegin = true

		case ActionTest:
			outcome, err := d.decodeTest(ev)
			if err != nil {
				d.log.Warn("Skipping feed test event", "line", lineNo, "err", err)
				metrics.RecordErrorDetails("feed test event", err)
				skipCount++
				continue
			}
			if err := h.OnTestEnd(outcome); err != nil {
				return fmt.Errorf("feed line %d: %w", lineNo, err)
			}

		case ActionEnd:
			if err := h.End(ctx, ev.Time); err != nil {
				return fmt.Errorf("feed line %d: %w", lineNo, err)
			}
			sawEnd = true

		default:
			d.log.Warn("Skipping feed event with unknown action", "line", lineNo, "action", ev.Action)
			metrics.RecordError("unknown feed action")
			skipCount++
		}

		if sawEnd {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading feed: %w", err)
	}

	if !sawBegin {
		return fmt.Errorf("feed contained no begin event")
	}
	// A truncated feed (runner crashed mid-run) still gets reported.
	if !sawEnd {
		d.log.Warn("Feed ended without an end event, finalizing with current time")
		if err := h.End(ctx, time.Time{}); err != nil {
			return err
		}
	}
	if skipCount > 0 {
		d.log.Warn("Feed contained skipped events", "count", skipCount)
	}
	return nil
}

// decodeTest normalizes a test event into a TestOutcome, rejecting
// unknown statuses.
func (d *Decoder) decodeTest(ev Event) (types.TestOutcome, error) {
	if ev.Test == nil {
		return types.TestOutcome{}, fmt.Errorf("test event missing test payload")
	}
	status, err := types.ParseStatus(ev.Test.Status)
	if err != nil {
		return types.TestOutcome{}, err
	}
	return types.TestOutcome{
		Title:       ev.Test.Title,
		Suite:       ev.Test.Suite,
		File:        ev.Test.File,
		Status:      status,
		Duration:    time.Duration(ev.Test.DurationMS) * time.Millisecond,
		Retries:     ev.Test.Retries,
		Error:       ev.Test.Error,
		Attachments: ev.Test.Attachments,
	}, nil
}

package reporter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-reporter/metrics"
	"github.com/ethereum-optimism/infra/op-reporter/notify"
	"github.com/ethereum-optimism/infra/op-reporter/results"
	"github.com/ethereum-optimism/infra/op-reporter/types"
)

// Reporter ties the aggregation pipeline to the notification channels.
// It is driven by externally-timed lifecycle calls, delivered serially:
// Begin, then any number of OnTestEnd, then End exactly once. A
// reporting failure never propagates into the run's own outcome; only
// lifecycle contract violations surface as errors.
type Reporter struct {
	cfg       *Config
	log       log.Logger
	agg       *results.Aggregator
	client    *notify.Client
	notifiers []*notify.Notifier

	summary *types.TestSummary
	ended   bool
}

// New creates a Reporter wired to every channel the config enables.
func New(cfg *Config) (*Reporter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	l := cfg.Log
	if l == nil {
		l = log.Root()
	}

	client := notify.NewClient(l, notify.ClientConfig{
		MaxAttempts: cfg.DeliveryMaxAttempts,
		BackoffBase: cfg.DeliveryBackoffBase,
	})

	var notifiers []*notify.Notifier
	if cfg.SlackWebhookURL != "" {
		notifiers = append(notifiers, notify.NewNotifier(l, notify.NewSlackFormatter(), client, cfg.SlackWebhookURL))
	} else {
		l.Info("No Slack webhook configured, channel disabled")
	}
	if cfg.TeamsWebhookURL != "" {
		notifiers = append(notifiers, notify.NewNotifier(l, notify.NewTeamsFormatter(), client, cfg.TeamsWebhookURL))
	} else {
		l.Info("No Teams webhook configured, channel disabled")
	}

	return &Reporter{
		cfg:    cfg,
		log:    l,
		client: client,
		agg: results.NewAggregator(l, results.Config{
			MaxFailuresToShow:  cfg.MaxFailuresToShow,
			IncludeScreenshots: cfg.IncludeScreenshots,
		}),
		notifiers: notifiers,
	}, nil
}

// Begin starts a run. Metadata the feed did not carry is filled in from
// the configuration.
func (r *Reporter) Begin(meta types.RunMetadata) error {
	if meta.ProjectName == "" {
		meta.ProjectName = r.cfg.ProjectName
	}
	if meta.Environment == "" {
		meta.Environment = r.cfg.Environment
	}
	if meta.CIRunURL == "" {
		meta.CIRunURL = r.cfg.CIRunURL
	}
	return r.agg.Begin(meta)
}

// OnTestEnd records one finished test.
func (r *Reporter) OnTestEnd(outcome types.TestOutcome) error {
	if err := r.agg.RecordOutcome(outcome); err != nil {
		return err
	}
	metrics.RecordOutcome(r.agg.RunID(), string(outcome.Status))
	return nil
}

// End finalizes the run, prints the console summary, and attempts
// delivery to every configured channel. Channels are independent: each
// runs in its own goroutine, and a failure in one neither blocks nor
// fails the others. Delivery errors are logged and swallowed.
func (r *Reporter) End(ctx context.Context, endTime time.Time) error {
	if r.ended {
		return fmt.Errorf("run already ended")
	}
	r.ended = true

	if !endTime.IsZero() {
		r.agg.SetEndTime(endTime)
	}
	summary, err := r.agg.Finalize()
	if err != nil {
		return err
	}
	r.summary = summary

	r.printSummaryTable(summary)
	fmt.Println(summary.String())

	metrics.RecordRun(
		summary.ProjectName,
		summary.RunID,
		string(summary.Status()),
		summary.Total,
		summary.Passed,
		summary.Failed,
		summary.Flaky,
		summary.Duration,
	)

	r.deliver(ctx, summary)
	r.log.Info("Run reported", "run_id", summary.RunID, "status", summary.Status())
	return nil
}

// Summary returns the finalized summary, nil before End.
func (r *Reporter) Summary() *types.TestSummary {
	return r.summary
}

// deliver fans the summary out to all configured channels and waits for
// them within the configured delivery budget.
func (r *Reporter) deliver(ctx context.Context, summary *types.TestSummary) {
	if len(r.notifiers) == 0 {
		r.log.Info("No notification channels configured, skipping delivery")
		return
	}
	if r.cfg.OnlyOnFailure && summary.Failed == 0 {
		r.log.Info("Run passed and only-on-failure is set, skipping delivery")
		return
	}

	if r.cfg.DeliveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.DeliveryTimeout)
		defer cancel()
	}

	var wg sync.WaitGroup
	for _, n := range r.notifiers {
		wg.Add(1)
		go func(n *notify.Notifier) {
			defer wg.Done()
			if err := n.Send(ctx, summary); err != nil {
				// Best-effort notification semantics: log and move on.
				r.log.Error("Notification delivery failed", "channel", n.Channel(), "err", err)
				metrics.RecordErrorDetails(fmt.Sprintf("%s notification", n.Channel()), err)
			}
		}(n)
	}
	wg.Wait()
}

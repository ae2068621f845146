package reporter

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/ethereum-optimism/infra/op-reporter/feed"
	"github.com/ethereum-optimism/infra/op-reporter/types"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// App implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &App{}

// App runs the reporter as a one-shot service: it consumes the runner
// feed, reports the run, and asks the host to shut down.
type App struct {
	cfg      *Config
	version  string
	reporter *Reporter

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

// NewApp creates the reporter application.
func NewApp(cfg *Config, version string, shutdownCallback func(error)) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg.Log.Debug("Creating reporter app",
		"feed", cfg.FeedPath,
		"slack", cfg.SlackWebhookURL != "",
		"teams", cfg.TeamsWebhookURL != "",
		"onlyOnFailure", cfg.OnlyOnFailure,
		"maxFailures", cfg.MaxFailuresToShow)

	rep, err := New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create reporter: %w", err)
	}
	return &App{
		cfg:              cfg,
		version:          version,
		reporter:         rep,
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start consumes the feed and reports the run.
// Start implements the cliapp.Lifecycle interface.
func (a *App) Start(ctx context.Context) error {
	a.running.Store(true)
	a.cfg.Log.Info("Starting op-reporter", "version", a.version, "feed", a.cfg.FeedPath)

	in, closeIn, err := a.openFeed()
	if err != nil {
		return NewRuntimeError(fmt.Errorf("failed to open feed: %w", err))
	}
	defer closeIn()

	decoder := feed.NewDecoder(a.cfg.Log)
	if err := decoder.Decode(ctx, in, a.reporter); err != nil {
		return NewRuntimeError(fmt.Errorf("failed to consume feed: %w", err))
	}

	summary := a.reporter.Summary()
	a.cfg.Log.Info("Reporting complete, exiting")
	if summary != nil && summary.Status() == types.TestStatusFailed {
		// Mirror the run's verdict in the exit code without blaming
		// the reporter for it.
		return NewTestFailureError(summary.String())
	}

	go func() {
		a.shutdownCallback(nil)
	}()
	return nil
}

// Stop stops the op-reporter service.
// Stop implements the cliapp.Lifecycle interface.
func (a *App) Stop(ctx context.Context) error {
	a.cfg.Log.Info("Stopping op-reporter")
	a.running.Store(false)
	return nil
}

// Stopped returns true if the op-reporter service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (a *App) Stopped() bool {
	return !a.running.Load()
}

// openFeed resolves the configured feed path to a reader, handling the
// stdin convention.
func (a *App) openFeed() (io.Reader, func(), error) {
	if a.cfg.FeedPath == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(a.cfg.FeedPath)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

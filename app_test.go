package reporter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feed.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestApp(t *testing.T, cfg *Config, shutdown func(error)) *App {
	t.Helper()
	cfg.Log = log.New()
	cfg.MaxFailuresToShow = 5
	cfg.DeliveryMaxAttempts = 1
	if shutdown == nil {
		shutdown = func(error) {}
	}
	app, err := NewApp(cfg, "test", shutdown)
	require.NoError(t, err)
	return app
}

func TestAppPassingRun(t *testing.T) {
	path := writeFeedFile(t, `{"action":"begin","runId":"run-1"}
{"action":"test","test":{"title":"a","status":"passed","durationMs":10}}
{"action":"end"}
`)
	shutdownCalled := make(chan error, 1)
	app := newTestApp(t, &Config{FeedPath: path}, func(err error) { shutdownCalled <- err })

	require.NoError(t, app.Start(context.Background()))
	assert.Equal(t, 1, app.reporter.Summary().Passed)

	select {
	case err := <-shutdownCalled:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown callback was not invoked")
	}
}

func TestAppFailingRunExitsWithTestFailure(t *testing.T) {
	path := writeFeedFile(t, `{"action":"begin","runId":"run-1"}
{"action":"test","test":{"title":"a","status":"failed","durationMs":10,"error":"boom"}}
{"action":"end"}
`)
	app := newTestApp(t, &Config{FeedPath: path}, nil)

	err := app.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsTestFailureError(err))
	assert.False(t, IsRuntimeError(err))
}

func TestAppMissingFeedIsRuntimeError(t *testing.T) {
	app := newTestApp(t, &Config{FeedPath: filepath.Join(t.TempDir(), "nope.jsonl")}, nil)

	err := app.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err))
}

func TestAppBrokenFeedIsRuntimeError(t *testing.T) {
	// A feed with no begin event is a contract violation, not a test
	// failure.
	path := writeFeedFile(t, `{"action":"end"}
`)
	app := newTestApp(t, &Config{FeedPath: path}, nil)

	err := app.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err))
}

func TestAppStopLifecycle(t *testing.T) {
	app := newTestApp(t, &Config{FeedPath: "-"}, nil)
	assert.True(t, app.Stopped())

	require.NoError(t, app.Stop(context.Background()))
	assert.True(t, app.Stopped())
}

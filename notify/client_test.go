package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastClientConfig() ClientConfig {
	return ClientConfig{
		MaxAttempts:    3,
		BackoffBase:    time.Millisecond,
		RequestTimeout: time.Second,
	}
}

func TestDeliverFirstAttemptSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(log.New(), fastClientConfig())
	err := client.Deliver(context.Background(), ChannelSlack, srv.URL, map[string]string{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "success must end the attempt loop")
}

func TestDeliverRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(log.New(), fastClientConfig())
	err := client.Deliver(context.Background(), ChannelSlack, srv.URL, map[string]string{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDeliverExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such channel", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(log.New(), fastClientConfig())
	err := client.Deliver(context.Background(), ChannelTeams, srv.URL, map[string]string{"text": "hi"})
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load(), "attempt budget must be respected exactly")

	require.True(t, IsDeliveryError(err))
	var deliveryErr *DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, ChannelTeams, deliveryErr.Channel)
	assert.Equal(t, 3, deliveryErr.Attempts)
	assert.Contains(t, deliveryErr.Err.Error(), "status 404")
	assert.Contains(t, deliveryErr.Err.Error(), "no such channel")
}

func TestDeliverAccepts2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(log.New(), fastClientConfig())
	err := client.Deliver(context.Background(), ChannelSlack, srv.URL, map[string]string{"text": "hi"})
	assert.NoError(t, err)
}

func TestDeliverRequestShape(t *testing.T) {
	var contentType, userAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		userAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(log.New(), fastClientConfig())
	require.NoError(t, client.Deliver(context.Background(), ChannelSlack, srv.URL, map[string]string{"text": "hi"}))
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "op-reporter", userAgent)
}

func TestDeliverStopsOnCanceledContext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := fastClientConfig()
	cfg.BackoffBase = time.Minute
	client := NewClient(log.New(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- client.Deliver(ctx, ChannelSlack, srv.URL, map[string]string{"text": "hi"})
	}()

	// Let the first attempt fail, then cancel during the backoff sleep.
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, int32(1), calls.Load(), "cancellation must not burn further attempts")

		var deliveryErr *DeliveryError
		require.ErrorAs(t, err, &deliveryErr)
		assert.Equal(t, 1, deliveryErr.Attempts, "error must report the attempts actually made")
	case <-time.After(5 * time.Second):
		t.Fatal("Deliver did not return after context cancellation")
	}
}

func TestClientConfigDefaults(t *testing.T) {
	client := NewClient(nil, ClientConfig{})
	assert.Equal(t, DefaultMaxAttempts, client.cfg.MaxAttempts)
	assert.Equal(t, DefaultBackoffBase, client.cfg.BackoffBase)
	assert.Equal(t, DefaultRequestTimeout, client.cfg.RequestTimeout)
}

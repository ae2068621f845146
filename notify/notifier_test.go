package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// webhookRecorder captures every payload a test webhook receives and
// lets each request's status be scripted in order.
type webhookRecorder struct {
	mu       sync.Mutex
	statuses []int
	bodies   [][]byte
}

func (r *webhookRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.bodies = append(r.bodies, body)
		status := http.StatusOK
		if len(r.statuses) > 0 {
			status = r.statuses[0]
			r.statuses = r.statuses[1:]
		}
		r.mu.Unlock()
		w.WriteHeader(status)
	}
}

func (r *webhookRecorder) received() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.bodies...)
}

func newTestNotifier(webhookURL string, maxAttempts int) *Notifier {
	client := NewClient(log.New(), ClientConfig{
		MaxAttempts:    maxAttempts,
		BackoffBase:    time.Millisecond,
		RequestTimeout: time.Second,
	})
	return NewNotifier(log.New(), NewSlackFormatter(), client, webhookURL)
}

func TestNotifierSendsFullMessage(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	n := newTestNotifier(srv.URL, 2)
	require.NoError(t, n.Send(context.Background(), testSummary()))

	bodies := rec.received()
	require.Len(t, bodies, 1)

	var msg SlackMessage
	require.NoError(t, json.Unmarshal(bodies[0], &msg))
	assert.Equal(t, "❌ storefront test run failed", msg.Text)
	assert.NotEmpty(t, msg.Blocks, "full message carries blocks")
}

func TestNotifierFallsBackWhenFullFails(t *testing.T) {
	// The full message exhausts both attempts, the fallback succeeds.
	rec := &webhookRecorder{statuses: []int{500, 500}}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	n := newTestNotifier(srv.URL, 2)
	require.NoError(t, n.Send(context.Background(), testSummary()))

	bodies := rec.received()
	require.Len(t, bodies, 3)

	var fallback SlackMessage
	require.NoError(t, json.Unmarshal(bodies[2], &fallback))
	assert.Empty(t, fallback.Blocks, "fallback must be the reduced variant")
	assert.Contains(t, fallback.Text, "2 failed")
}

func TestNotifierErrorsWhenBothVariantsFail(t *testing.T) {
	rec := &webhookRecorder{statuses: []int{500, 500, 500, 500}}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	n := newTestNotifier(srv.URL, 2)
	err := n.Send(context.Background(), testSummary())
	require.Error(t, err)
	assert.True(t, IsDeliveryError(err))
	assert.Len(t, rec.received(), 4, "two attempts each for full and fallback")
}

func TestNotifierChannel(t *testing.T) {
	n := NewNotifier(log.New(), NewTeamsFormatter(), NewClient(log.New(), ClientConfig{}), "https://example.com")
	assert.Equal(t, ChannelTeams, n.Channel())
}

func TestCheckWebhookURL(t *testing.T) {
	tests := []struct {
		name    string
		channel Channel
		url     string
		wantErr bool
	}{
		{"slack well-formed", ChannelSlack, "https://hooks.slack.com/services/T000/B000/XXXX", false},
		{"slack wrong host", ChannelSlack, "https://example.com/services/T000/B000/XXXX", true},
		{"slack not https", ChannelSlack, "http://hooks.slack.com/services/T000/B000/XXXX", true},
		{"teams office host", ChannelTeams, "https://contoso.webhook.office.com/webhookb2/abc", false},
		{"teams powerautomate path", ChannelTeams, "https://prod.westus.logic.azure.com/webhookb2/abc", false},
		{"teams unrelated", ChannelTeams, "https://example.com/hook", true},
		{"empty", ChannelSlack, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckWebhookURL(tt.channel, tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

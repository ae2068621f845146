package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-reporter/metrics"
)

const (
	// DefaultMaxAttempts is how many times a payload is sent before
	// giving up.
	DefaultMaxAttempts = 3

	// DefaultBackoffBase is the unit for the exponential backoff
	// between attempts: after attempt n fails the client waits
	// base * 2^n (2s, then 4s, with the defaults).
	DefaultBackoffBase = time.Second

	// DefaultRequestTimeout bounds a single webhook POST.
	DefaultRequestTimeout = 10 * time.Second
)

// DeliveryError is returned when all delivery attempts for a payload
// have been exhausted. It carries the last underlying cause.
type DeliveryError struct {
	Channel  Channel
	Attempts int
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed after %d attempts: %v", e.Channel, e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsDeliveryError checks if the error is or wraps a DeliveryError.
func IsDeliveryError(err error) bool {
	var deliveryErr *DeliveryError
	return err != nil && errors.As(err, &deliveryErr)
}

// ClientConfig tunes the delivery client. Zero values take the
// defaults above.
type ClientConfig struct {
	MaxAttempts    int
	BackoffBase    time.Duration
	RequestTimeout time.Duration
}

// Client posts JSON payloads to chat webhooks with bounded retries and
// exponential backoff. One client is shared by all channels so the
// retry semantics cannot diverge between them.
type Client struct {
	log    log.Logger
	cfg    ClientConfig
	http   *http.Client
	tracer trace.Tracer
}

// NewClient creates a delivery client.
func NewClient(l log.Logger, cfg ClientConfig) *Client {
	if l == nil {
		l = log.Root()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return &Client{
		log:    l,
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.RequestTimeout},
		tracer: otel.Tracer("op-reporter/notify"),
	}
}

// Deliver POSTs the payload as JSON to the webhook URL. Any 2xx status
// is success and ends the attempt loop immediately; everything else
// (including transport errors) is retried up to the attempt budget,
// sleeping base*2^attempt between attempts. Exhausting the budget
// returns a *DeliveryError wrapping the last cause.
func (c *Client) Deliver(ctx context.Context, channel Channel, webhookURL string, payload any) error {
	ctx, span := c.tracer.Start(ctx, "notify.deliver",
		trace.WithAttributes(attribute.String("channel", string(channel))))
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshaling webhook payload")
	}

	var lastErr error
	var attempts int
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		attempts = attempt
		metrics.RecordDeliveryAttempt(string(channel))
		lastErr = c.post(ctx, webhookURL, body)
		if lastErr == nil {
			c.log.Debug("Webhook delivery succeeded", "channel", channel, "attempt", attempt)
			metrics.RecordDelivery(string(channel), "success")
			return nil
		}

		c.log.Warn("Webhook delivery attempt failed",
			"channel", channel, "attempt", attempt, "max_attempts", c.cfg.MaxAttempts, "err", lastErr)
		if attempt == c.cfg.MaxAttempts {
			break
		}
		if err := sleepCtx(ctx, c.cfg.BackoffBase*(1<<attempt)); err != nil {
			lastErr = err
			break
		}
	}

	span.RecordError(lastErr)
	metrics.RecordDelivery(string(channel), "failure")
	// Attempts is how many POSTs actually went out; a canceled backoff
	// ends the loop before the budget is spent.
	return &DeliveryError{Channel: channel, Attempts: attempts, Err: lastErr}
}

// post performs a single webhook POST attempt.
func (c *Client) post(ctx context.Context, webhookURL string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "building webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "op-reporter")

	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "posting webhook")
	}
	defer res.Body.Close()

	// Drain a bounded amount so the connection can be reused and the
	// error carries the webhook's own explanation.
	resBody, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return errors.Errorf("webhook returned status %d: %s", res.StatusCode, bytes.TrimSpace(resBody))
	}
	return nil
}

// sleepCtx waits for d or until the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

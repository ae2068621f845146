package notify

import (
	"context"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-reporter/types"
)

// Notifier binds a channel formatter to the shared delivery client and
// implements the full-then-fallback delivery policy for one webhook.
type Notifier struct {
	log        log.Logger
	formatter  Formatter
	client     *Client
	webhookURL string
}

// NewNotifier creates a notifier for one configured channel.
func NewNotifier(l log.Logger, formatter Formatter, client *Client, webhookURL string) *Notifier {
	if l == nil {
		l = log.Root()
	}
	return &Notifier{
		log:        l.New("channel", formatter.Channel()),
		formatter:  formatter,
		client:     client,
		webhookURL: webhookURL,
	}
}

// Channel returns the destination channel type.
func (n *Notifier) Channel() Channel {
	return n.formatter.Channel()
}

// Send delivers the full notification for the summary, downgrading to
// exactly one fallback attempt if the full payload cannot be delivered.
// The returned error means both variants failed; callers log it and
// move on, a reporting failure must never fail the run itself.
func (n *Notifier) Send(ctx context.Context, summary *types.TestSummary) error {
	if err := CheckWebhookURL(n.formatter.Channel(), n.webhookURL); err != nil {
		// Heuristic check only; still attempt the delivery.
		n.log.Warn("Webhook URL looks suspicious", "err", err)
	}

	err := n.client.Deliver(ctx, n.formatter.Channel(), n.webhookURL, n.formatter.BuildFullMessage(summary))
	if err == nil {
		return nil
	}
	n.log.Warn("Full notification failed to deliver, sending fallback", "err", err)

	if err := n.client.Deliver(ctx, n.formatter.Channel(), n.webhookURL, n.formatter.BuildFallbackMessage(summary)); err != nil {
		return err
	}
	return nil
}

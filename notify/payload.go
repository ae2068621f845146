package notify

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ethereum-optimism/infra/op-reporter/types"
)

// Channel identifies a notification destination type.
type Channel string

const (
	ChannelSlack Channel = "slack"
	ChannelTeams Channel = "teams"
)

// Formatter maps a run summary into a channel-specific payload. Both
// variants must be deterministic: the same summary always yields the
// same payload, aside from embedded human-readable timestamps.
type Formatter interface {
	Channel() Channel

	// BuildFullMessage renders the complete notification including
	// failure detail and the CI report link.
	BuildFullMessage(s *types.TestSummary) any

	// BuildFallbackMessage renders the reduced counts-only variant
	// used when the full payload fails to deliver.
	BuildFallbackMessage(s *types.TestSummary) any
}

// CheckWebhookURL applies the per-channel shape heuristics to a webhook
// URL. The rules are heuristic, so a non-nil error is only worth a
// warning; the URL is still attempted.
func CheckWebhookURL(channel Channel, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("webhook URL does not parse: %w", err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("webhook URL scheme is %q, expected https", u.Scheme)
	}
	switch channel {
	case ChannelSlack:
		if u.Host != "hooks.slack.com" || !strings.HasPrefix(u.Path, "/services/") {
			return fmt.Errorf("URL %q does not look like a Slack incoming webhook", u.Host+u.Path)
		}
	case ChannelTeams:
		if !strings.HasSuffix(u.Host, "webhook.office.com") && !strings.Contains(u.Path, "/webhookb2/") {
			return fmt.Errorf("URL %q does not look like a Teams incoming webhook", u.Host+u.Path)
		}
	}
	return nil
}

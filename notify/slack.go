package notify

import (
	"fmt"
	"time"

	"github.com/ethereum-optimism/infra/op-reporter/types"
)

// SlackMessage is the Block Kit payload posted to a Slack incoming
// webhook. Text carries the notification fallback shown in previews.
type SlackMessage struct {
	Text   string       `json:"text"`
	Blocks []SlackBlock `json:"blocks,omitempty"`
}

// SlackBlock is a single Block Kit block. Only the block kinds we emit
// are modeled. Elements holds SlackText values for context blocks and
// SlackElement values for actions blocks; the two kinds marshal
// differently on the wire (context elements are flat text objects,
// buttons nest their label).
type SlackBlock struct {
	Type     string      `json:"type"`
	Text     *SlackText  `json:"text,omitempty"`
	Fields   []SlackText `json:"fields,omitempty"`
	Elements []any       `json:"elements,omitempty"`
}

// SlackText is a text object, either plain_text or mrkdwn.
type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SlackElement is an interactive block element; we only emit link
// buttons.
type SlackElement struct {
	Type string     `json:"type"`
	Text *SlackText `json:"text,omitempty"`
	URL  string     `json:"url,omitempty"`
}

// SlackFormatter builds Slack Block Kit payloads from run summaries.
type SlackFormatter struct{}

func NewSlackFormatter() *SlackFormatter {
	return &SlackFormatter{}
}

func (f *SlackFormatter) Channel() Channel {
	return ChannelSlack
}

// BuildFullMessage renders the complete Slack notification: header,
// count fields in fixed order, one section per shown failure, an
// omitted-failures line when the list was truncated, and a report
// button when a CI URL is configured.
func (f *SlackFormatter) BuildFullMessage(s *types.TestSummary) any {
	blocks := []SlackBlock{
		{
			Type: "header",
			Text: &SlackText{Type: "plain_text", Text: messageTitle(s)},
		},
		{
			Type:   "section",
			Fields: summaryFields(s),
		},
	}

	if s.Failed > 0 && len(s.Failures) > 0 {
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{Type: "mrkdwn", Text: "*Failures:*"},
		})
		for i, failure := range s.Failures {
			blocks = append(blocks, SlackBlock{
				Type: "section",
				Text: &SlackText{Type: "mrkdwn", Text: slackFailureEntry(i, failure)},
			})
		}
		if n := omittedFailures(s); n > 0 {
			blocks = append(blocks, SlackBlock{
				Type: "context",
				Elements: []any{
					SlackText{Type: "mrkdwn", Text: fmt.Sprintf("…and %d more failures", n)},
				},
			})
		}
	}

	if s.CIRunURL != "" {
		blocks = append(blocks, SlackBlock{
			Type: "actions",
			Elements: []any{
				SlackElement{
					Type: "button",
					Text: &SlackText{Type: "plain_text", Text: "View full report"},
					URL:  s.CIRunURL,
				},
			},
		})
	}

	blocks = append(blocks, SlackBlock{
		Type: "context",
		Elements: []any{
			SlackText{Type: "mrkdwn", Text: "Finished " + s.EndTime.Format(time.RFC1123)},
		},
	})

	return &SlackMessage{
		Text:   messageTitle(s),
		Blocks: blocks,
	}
}

// BuildFallbackMessage renders the reduced variant: counts, duration
// and status only. No failure detail, no CI link.
func (f *SlackFormatter) BuildFallbackMessage(s *types.TestSummary) any {
	return &SlackMessage{
		Text: fmt.Sprintf("%s %d total, %d passed, %d failed, %d skipped in %s",
			messageTitle(s), s.Total, s.Passed, s.Failed, s.Skipped, formatDuration(s.Duration)),
	}
}

// summaryFields returns the count fields in the fixed display order.
// Flaky appears only when non-zero, Environment only when configured.
func summaryFields(s *types.TestSummary) []SlackText {
	fields := []SlackText{
		{Type: "mrkdwn", Text: fmt.Sprintf("*Total:* %d", s.Total)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Passed:* %d", s.Passed)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Failed:* %d", s.Failed)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Skipped:* %d", s.Skipped)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Duration:* %s", formatDuration(s.Duration))},
	}
	if s.Flaky > 0 {
		fields = append(fields, SlackText{Type: "mrkdwn", Text: fmt.Sprintf("*Flaky:* %d", s.Flaky)})
	}
	if s.Environment != "" {
		fields = append(fields, SlackText{Type: "mrkdwn", Text: fmt.Sprintf("*Environment:* %s", s.Environment)})
	}
	return fields
}

// slackFailureEntry renders one failure as a single mrkdwn block:
// 1-based index, title, file basename, cleaned error text.
func slackFailureEntry(i int, f types.TestFailure) string {
	entry := fmt.Sprintf("*%d. %s* (`%s`)", i+1, f.Title, fileBasename(f.File))
	if errText := cleanErrorText(f.Error, maxErrorChars); errText != "" {
		entry += "\n" + errText
	}
	if f.Screenshot != "" {
		entry += "\n📷 screenshot available"
	}
	return entry
}

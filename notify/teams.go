package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-reporter/types"
)

// TeamsMessage is the legacy MessageCard payload accepted by Microsoft
// Teams incoming webhooks.
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor"`
	Summary    string         `json:"summary"`
	Title      string         `json:"title"`
	Sections   []TeamsSection `json:"sections,omitempty"`
	Actions    []TeamsAction  `json:"potentialAction,omitempty"`
}

// TeamsSection groups facts and free text inside a card.
type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Text          string      `json:"text,omitempty"`
	Markdown      bool        `json:"markdown"`
}

// TeamsFact is one name/value row in a card section.
type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TeamsAction models an OpenUri action (the "view report" button).
type TeamsAction struct {
	Type    string        `json:"@type"`
	Name    string        `json:"name"`
	Targets []TeamsTarget `json:"targets"`
}

// TeamsTarget is a single URI target of an OpenUri action.
type TeamsTarget struct {
	OS  string `json:"os"`
	URI string `json:"uri"`
}

// TeamsFormatter builds MessageCard payloads from run summaries.
type TeamsFormatter struct{}

func NewTeamsFormatter() *TeamsFormatter {
	return &TeamsFormatter{}
}

func (f *TeamsFormatter) Channel() Channel {
	return ChannelTeams
}

// BuildFullMessage renders the complete Teams card: counts as facts in
// fixed order, a failure section when there are failures to show, and
// an OpenUri action when a CI URL is configured.
func (f *TeamsFormatter) BuildFullMessage(s *types.TestSummary) any {
	msg := f.baseCard(s)
	msg.Sections = []TeamsSection{
		{
			Facts:    summaryFacts(s),
			Markdown: true,
		},
	}

	if s.Failed > 0 && len(s.Failures) > 0 {
		var b strings.Builder
		for i, failure := range s.Failures {
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(teamsFailureEntry(i, failure))
		}
		if n := omittedFailures(s); n > 0 {
			fmt.Fprintf(&b, "\n\n…and %d more failures", n)
		}
		msg.Sections = append(msg.Sections, TeamsSection{
			ActivityTitle: "Failures",
			Text:          b.String(),
			Markdown:      true,
		})
	}

	msg.Sections = append(msg.Sections, TeamsSection{
		Text:     "Finished " + s.EndTime.Format(time.RFC1123),
		Markdown: true,
	})

	if s.CIRunURL != "" {
		msg.Actions = []TeamsAction{
			{
				Type: "OpenUri",
				Name: "View full report",
				Targets: []TeamsTarget{
					{OS: "default", URI: s.CIRunURL},
				},
			},
		}
	}
	return msg
}

// BuildFallbackMessage renders the reduced card: counts, duration and
// status only.
func (f *TeamsFormatter) BuildFallbackMessage(s *types.TestSummary) any {
	msg := f.baseCard(s)
	msg.Sections = []TeamsSection{
		{
			Text: fmt.Sprintf("%d total, %d passed, %d failed, %d skipped in %s",
				s.Total, s.Passed, s.Failed, s.Skipped, formatDuration(s.Duration)),
			Markdown: true,
		},
	}
	return msg
}

func (f *TeamsFormatter) baseCard(s *types.TestSummary) *TeamsMessage {
	return &TeamsMessage{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		ThemeColor: statusColor(s),
		Summary:    messageTitle(s),
		Title:      messageTitle(s),
	}
}

// summaryFacts mirrors summaryFields for the Teams card.
func summaryFacts(s *types.TestSummary) []TeamsFact {
	facts := []TeamsFact{
		{Name: "Total", Value: fmt.Sprintf("%d", s.Total)},
		{Name: "Passed", Value: fmt.Sprintf("%d", s.Passed)},
		{Name: "Failed", Value: fmt.Sprintf("%d", s.Failed)},
		{Name: "Skipped", Value: fmt.Sprintf("%d", s.Skipped)},
		{Name: "Duration", Value: formatDuration(s.Duration)},
	}
	if s.Flaky > 0 {
		facts = append(facts, TeamsFact{Name: "Flaky", Value: fmt.Sprintf("%d", s.Flaky)})
	}
	if s.Environment != "" {
		facts = append(facts, TeamsFact{Name: "Environment", Value: s.Environment})
	}
	return facts
}

// teamsFailureEntry renders one failure as a single markdown paragraph.
func teamsFailureEntry(i int, f types.TestFailure) string {
	entry := fmt.Sprintf("**%d. %s** (`%s`)", i+1, f.Title, fileBasename(f.File))
	if errText := cleanErrorText(f.Error, maxErrorChars); errText != "" {
		entry += "<br>" + errText
	}
	if f.Screenshot != "" {
		entry += "<br>📷 screenshot available"
	}
	return entry
}

package notify

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/acarl005/stripansi"

	"github.com/ethereum-optimism/infra/op-reporter/types"
)

// maxErrorChars is the character budget for a single failure entry's
// error text. Chat messages get unreadable past this.
const maxErrorChars = 180

const (
	colorSuccess = "2EB67D"
	colorFailure = "E01E5A"
)

// formatDuration renders a duration the way it reads best in a chat
// message: sub-second durations as milliseconds, everything else as
// hours/minutes/seconds with leading zero units dropped.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// cleanErrorText prepares runner error output for a single-block chat
// entry: ANSI escape codes stripped, newlines collapsed to spaces, and
// the whole thing truncated to limit characters with an ellipsis. The
// limit counts runes, not bytes, so multi-byte text is never split
// mid-character.
func cleanErrorText(text string, limit int) string {
	text = stripansi.Strip(text)
	text = strings.Join(strings.Fields(text), " ")
	if limit > 0 && utf8.RuneCountInString(text) > limit {
		runes := []rune(text)
		text = string(runes[:limit]) + "…"
	}
	return text
}

// fileBasename strips the directory from a test file path. Runner feeds
// may carry Windows separators, so both kinds are handled.
func fileBasename(path string) string {
	if idx := strings.LastIndexAny(path, `/\`); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// statusColor returns the theme color for a summary: green only when
// nothing failed. Skips alone do not redden the status.
func statusColor(s *types.TestSummary) string {
	if s.Failed > 0 {
		return colorFailure
	}
	return colorSuccess
}

// statusEmoji mirrors statusColor for channels that lead with an emoji.
func statusEmoji(s *types.TestSummary) string {
	if s.Failed > 0 {
		return "❌"
	}
	return "✅"
}

// statusText is the human-readable run verdict.
func statusText(s *types.TestSummary) string {
	if s.Failed > 0 {
		return "failed"
	}
	return "passed"
}

// messageTitle builds the notification headline, including the project
// name when one is configured.
func messageTitle(s *types.TestSummary) string {
	name := s.ProjectName
	if name == "" {
		name = "Test run"
	} else {
		name += " test run"
	}
	return fmt.Sprintf("%s %s %s", statusEmoji(s), name, statusText(s))
}

// omittedFailures returns how many failures were cut from the summary's
// failure list, zero when nothing was truncated.
func omittedFailures(s *types.TestSummary) int {
	if n := s.Failed - len(s.Failures); n > 0 {
		return n
	}
	return 0
}

package reporter

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-reporter/types"
)

// printSummaryTable prints the run summary and failure detail to the
// console.
func (r *Reporter) printSummaryTable(summary *types.TestSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	title := "Test Run Results"
	if summary.ProjectName != "" {
		title = fmt.Sprintf("%s (%s)", title, summary.ProjectName)
	}
	t.SetTitle(title)

	t.AppendHeader(table.Row{
		"Test", "File", "Duration", "Status", "Error",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Error", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, failure := range summary.Failures {
		t.AppendRow(table.Row{
			failure.Title,
			failure.File,
			failure.Duration.Truncate(1e6),
			getResultString(types.TestStatusFailed),
			firstLine(failure.Error),
		})
	}
	if omitted := summary.Failed - len(summary.Failures); omitted > 0 {
		t.AppendRow(table.Row{
			fmt.Sprintf("…and %d more failures", omitted), "", "", "", "",
		})
	}

	if summary.Failed > 0 {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	t.AppendFooter(table.Row{
		fmt.Sprintf("TOTAL %d", summary.Total),
		fmt.Sprintf("passed %d / skipped %d / flaky %d", summary.Passed, summary.Skipped, summary.Flaky),
		summary.Duration.Truncate(1e6),
		getResultString(summary.Status()),
		"",
	})

	t.Render()
}

// getResultString returns a colored string representing the run status
func getResultString(status types.TestStatus) string {
	switch status {
	case types.TestStatusPassed:
		return "✓ pass"
	case types.TestStatusSkipped:
		return "- skip"
	default:
		return "✗ fail"
	}
}

// firstLine trims an error message to its first line for table display.
func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}

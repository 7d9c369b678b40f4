package report

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderSummary prints the run overview and the per-status lifetime table.
func RenderSummary(out io.Writer, summary RunSummary, statistics []Stat) {
	header := color.New(color.Bold)
	header.Fprintf(out, "reviewfang: %s\n\n", summary.Repository)

	overview := table.NewWriter()
	overview.SetOutputMirror(out)
	overview.AppendHeader(table.Row{"Metric", "Value"})
	overview.AppendRows([]table.Row{
		{"Commits replayed", humanize.Comma(int64(summary.Commits))},
		{"Failed diffs", humanize.Comma(int64(summary.FailedDiffs))},
		{"Ledger records", humanize.Comma(int64(summary.LedgerRecords))},
		{"Live lines", humanize.Comma(int64(summary.LiveLines))},
		{"Died lines", humanize.Comma(int64(summary.DiedLines))},
		{"Binary paths", humanize.Comma(int64(summary.BinaryPaths))},
		{"Untracked removals", humanize.Comma(int64(summary.Untracked))},
		{"Pull requests", humanize.Comma(int64(summary.PullRequests))},
		{"Reviewed commits", humanize.Comma(int64(summary.Reviewed))},
		{"Unreviewed commits", humanize.Comma(int64(summary.Unreviewed))},
		{"Mean reply gap", summary.MeanReplyGap.Round(summaryRounding).String()},
		{"Elapsed", summary.Elapsed.Round(summaryRounding).String()},
	})
	overview.Render()

	if lifetimes := findLifetimesByStatus(statistics); len(lifetimes) > 0 {
		fmt.Fprintln(out)
		renderLifetimes(out, lifetimes)
	}
}

const summaryRounding = time.Second

// findLifetimesByStatus pulls the per-status lifetime summaries out of the
// computed statistics.
func findLifetimesByStatus(statistics []Stat) []GroupSummary {
	for _, stat := range statistics {
		if stat.Name != "line_lifetime_by_status" {
			continue
		}

		if groups, ok := stat.Data.([]GroupSummary); ok {
			return groups
		}
	}

	return nil
}

func renderLifetimes(out io.Writer, groups []GroupSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Status", "Died lines", "Mean (h)", "Median (h)", "P90 (h)"})

	for _, group := range groups {
		status := ""
		if len(group.Key) > 0 {
			status = group.Key[0]
		}

		t.AppendRow(table.Row{
			status,
			humanize.Comma(int64(group.Count)),
			fmt.Sprintf("%.1f", group.Mean),
			fmt.Sprintf("%.1f", group.Median),
			fmt.Sprintf("%.1f", group.P90),
		})
	}

	t.Render()
}

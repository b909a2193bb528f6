package snapshot

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ternarybob/paperdb/internal/models"
)

// issueSampleLimit caps how many example details are printed per issue kind.
const issueSampleLimit = 3

// WriteReport renders a human-readable build summary: headline counts plus
// one row per issue kind with sample details.
func WriteReport(w io.Writer, result *Result) {
	fmt.Fprintf(w, "\nSnapshot %s\n", result.BuildID)
	fmt.Fprintf(w, "  papers:   %s\n", humanize.Comma(int64(result.Papers)))
	fmt.Fprintf(w, "  issues:   %s\n", humanize.Comma(int64(len(result.Issues))))
	fmt.Fprintf(w, "  output:   %s\n", result.OutputDB)
	fmt.Fprintf(w, "  duration: %s\n", result.Duration.Round(time.Millisecond))

	if len(result.Issues) == 0 {
		return
	}

	byKind := make(map[models.BuildIssueKind][]models.BuildIssue)
	for _, issue := range result.Issues {
		byKind[issue.Kind] = append(byKind[issue.Kind], issue)
	}
	kinds := make([]string, 0, len(byKind))
	for kind := range byKind {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Issue", "Count", "Samples"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, kind := range kinds {
		issues := byKind[models.BuildIssueKind(kind)]
		samples := ""
		for i, issue := range issues {
			if i == issueSampleLimit {
				samples += fmt.Sprintf("... and %d more\n", len(issues)-issueSampleLimit)
				break
			}
			samples += issue.Detail + "\n"
		}
		t.AppendRow(table.Row{kind, humanize.Comma(int64(len(issues))), samples})
	}
	t.Render()
}

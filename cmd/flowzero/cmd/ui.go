package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/orchestrator"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/reconciler"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#D29922"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F85149"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8B949E"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#5B8DEF")).Padding(0, 1)
)

// newTable aligns tab-terminated cells. tabwriter counts ANSI escape bytes as
// width, so only the last cell of a row, which is not tab-terminated, may be
// styled.
func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func heading(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf(format, args...)))
}

// stateStyle colours a provider or ledger state.
func stateStyle(state string) lipgloss.Style {
	switch state {
	case "success", "partial", string(reconciler.StateCompleted), string(orchestrator.KindSubmitted):
		return okStyle
	case "failed", "cancelled", string(reconciler.StateError):
		return errStyle
	case "queued", "running", string(reconciler.StatePending), string(orchestrator.KindNoValidScenes), string(reconciler.StateUntracked):
		return warnStyle
	default:
		return dimStyle
	}
}

func printRunResult(w io.Writer, result *orchestrator.Result) {
	if result.BatchID != "" {
		heading(w, "Batch %s", result.BatchID)
	}

	sections := []struct {
		title string
		kind  orchestrator.Kind
	}{
		{"Submitted", orchestrator.KindSubmitted},
		{"Would submit (dry run)", orchestrator.KindWouldSubmit},
		{"No valid scenes", orchestrator.KindNoValidScenes},
		{"Failed", orchestrator.KindFailed},
	}
	for _, s := range sections {
		outcomes := result.ByKind(s.kind)
		if len(outcomes) == 0 {
			continue
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, stateStyle(string(s.kind)).Render(fmt.Sprintf("%s (%d)", s.title, len(outcomes))))

		tw := newTable(w)
		switch s.kind {
		case orchestrator.KindSubmitted:
			fmt.Fprintln(tw, "  ENTRY\tGAGE\tAOI\tRANGE\tORDER ID\tSCENES\tBUNDLE")
			for _, o := range outcomes {
				fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\t%d\t%s\n", o.Entry, dash(o.GageID), o.AOIName, o.Range, o.OrderID, len(o.SceneIDs), o.ProductBundle)
			}
		case orchestrator.KindWouldSubmit:
			fmt.Fprintln(tw, "  ENTRY\tGAGE\tAOI\tRANGE\tSCENES\tBUNDLE\tSCENE IDS")
			for _, o := range outcomes {
				fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%d\t%s\t%s\n", o.Entry, dash(o.GageID), o.AOIName, o.Range, len(o.SceneIDs), o.ProductBundle, strings.Join(o.SceneIDs, ","))
			}
		case orchestrator.KindNoValidScenes:
			fmt.Fprintln(tw, "  ENTRY\tGAGE\tAOI\tRANGE\tFOUND\tELIGIBLE")
			for _, o := range outcomes {
				fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%d\t%d\n", o.Entry, dash(o.GageID), o.AOIName, o.Range, o.Found, o.Eligible)
			}
		case orchestrator.KindFailed:
			fmt.Fprintln(tw, "  ENTRY\tGAGE\tAOI\tRANGE\tREASON")
			for _, o := range outcomes {
				fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\n", o.Entry, dash(o.GageID), o.AOIName, o.Range, o.Reason)
			}
		}
		tw.Flush()
	}

	if warnings := result.PaginationWarnings(); len(warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("Pagination warnings (%d): these searches returned a full page, so better scenes may have been missed. Use a shorter --max-months window.", len(warnings))))
		for _, o := range warnings {
			fmt.Fprintf(w, "  %s\n", o.Label())
		}
	}

	counts := result.Counts()
	fmt.Fprintln(w)
	fmt.Fprintln(w, boxStyle.Render(fmt.Sprintf("%d submitted, %d would submit, %d no valid scenes, %d failed",
		counts[orchestrator.KindSubmitted], counts[orchestrator.KindWouldSubmit],
		counts[orchestrator.KindNoValidScenes], counts[orchestrator.KindFailed])))
}

func printOutcomes(w io.Writer, outcomes []reconciler.Outcome) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ORDER ID\tAOI\tPROVIDER\tFILES\tDETAIL\tRESULT")
	for _, o := range outcomes {
		detail := o.Message
		if o.ArchivePath != "" {
			detail = o.ArchivePath
		}
		if o.Err != nil {
			detail = o.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			o.OrderID, dash(o.AOIName), dash(o.ProviderState), o.ArchivedFiles, dash(detail),
			stateStyle(string(o.State)).Render(string(o.State)))
	}
	tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"devsetup/internal/provision"
	"devsetup/internal/tui"
)

// kindOrder fixes the order of the counts line.
var kindOrder = []provision.Kind{
	provision.KindAlreadyPresent,
	provision.KindInstalled,
	provision.KindPlanned,
	provision.KindSkippedDependencyMissing,
	provision.KindDeclined,
	provision.KindFailed,
}

func writeJSON(out io.Writer, result runResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run json: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

// writeSummary prints the outcome table (omitted when the progress table
// already showed it), the counts line and the follow-up list.
func writeSummary(out io.Writer, result runResult, tableShown bool) {
	if !tableShown {
		fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "ITEM\tOUTCOME\tATTEMPTS\tDETAIL")
		for _, o := range result.Tools {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				o.DisplayName,
				o.Kind,
				attemptsText(o.Attempts),
				tui.NonEmptyOrDash(o.Reason),
			)
		}
		for _, s := range result.PostInstall {
			fmt.Fprintf(w, "  %s\t%s\t-\t%s\n", s.Name, s.Status, tui.NonEmptyOrDash(s.Reason))
		}
		w.Flush()
	}

	printCounts(out, result.Summary)
	printAttention(out, result)
	fmt.Fprintf(out, "Logs: %s\n", result.LogDir)
}

func printCounts(out io.Writer, s provision.Summary) {
	fmt.Fprintf(out, "\n%d tools:", s.Total)
	for _, kind := range kindOrder {
		if n := s.Counts[kind]; n > 0 {
			fmt.Fprintf(out, " %d %s", n, kind)
		}
	}
	fmt.Fprintln(out)
}

func printAttention(out io.Writer, result runResult) {
	tools := provision.NeedsAttention(result.Tools)
	var steps []provision.StepResult
	for _, s := range result.PostInstall {
		if s.Status == provision.StepWarned {
			steps = append(steps, s)
		}
	}
	if len(tools) == 0 && len(steps) == 0 {
		return
	}

	fmt.Fprintln(out, "\nNeeds attention:")
	for _, o := range tools {
		line := fmt.Sprintf("  - %s: %s", o.DisplayName, o.Kind)
		if o.Reason != "" {
			line += " (" + o.Reason + ")"
		}
		if o.LogPath != "" {
			line += ", see " + o.LogPath
		}
		fmt.Fprintln(out, line)
	}
	for _, s := range steps {
		fmt.Fprintf(out, "  - %s: %s (%s)\n", s.Name, s.Status, s.Reason)
	}
}

func attemptsText(n int) string {
	if n == 0 {
		return "-"
	}
	return fmt.Sprint(n)
}

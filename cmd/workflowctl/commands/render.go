package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewRenderCommand creates the render subcommand: it renders a signals
// JSON file (as produced by `workflowctl run --output`) as a colorized,
// human-readable table. Unlike the dashboard's live feed (an external
// collaborator per spec §1), this is a static, read-only operator view.
func NewRenderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <signals.json>",
		Short: "Render a captured run's signals as a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runRender(args[0])
		},
	}

	return cmd
}

func runRender(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied CLI path
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var records []signalRecord

	if unmarshalErr := json.Unmarshal(data, &records); unmarshalErr != nil {
		return fmt.Errorf("parsing %s: %w", path, unmarshalErr)
	}

	w := table.NewWriter()
	w.SetOutputMirror(os.Stdout)
	w.AppendHeader(table.Row{"Age", "Source", "Signal", "Confidence", "Value"})

	for _, r := range records {
		w.AppendRow(table.Row{
			renderAge(r.EmittedAt),
			r.Source,
			colorSignalName(r.Name),
			fmt.Sprintf("%.2f", r.Confidence),
			fmt.Sprintf("%v", r.Value),
		})
	}

	w.Render()

	fmt.Printf("%s signals\n", humanize.Comma(int64(len(records))))

	return nil
}

func renderAge(emittedAt string) string {
	t, err := time.Parse(time.RFC3339Nano, emittedAt)
	if err != nil {
		return emittedAt
	}

	return humanize.Time(t)
}

func colorSignalName(name string) string {
	switch {
	case strings.HasPrefix(name, "atom.error") || strings.HasPrefix(name, "atom.quarantined"):
		return color.RedString(name)
	case strings.HasPrefix(name, "atom.throttled") || strings.HasPrefix(name, "license."):
		return color.YellowString(name)
	case strings.HasPrefix(name, "system.") || strings.HasPrefix(name, "workunit."):
		return color.CyanString(name)
	default:
		return name
	}
}

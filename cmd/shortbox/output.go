package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"shortbox/internal/jobstore"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// newTable returns a table writer styled for w. Pipes get plain ASCII so
// the output stays greppable.
func newTable(w io.Writer, headers ...string) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	if isTerminal(w) {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleDefault)
		tw.Style().Options.DrawBorder = false
		tw.Style().Options.SeparateColumns = false
		tw.Style().Options.SeparateHeader = false
	}
	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	return tw
}

// alignRight right-aligns the given 1-based columns.
func alignRight(tw table.Writer, columns ...int) {
	configs := make([]table.ColumnConfig, 0, len(columns))
	for _, n := range columns {
		configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
}

var stepColors = map[jobstore.Step]text.Colors{
	jobstore.StepComplete:       {text.FgGreen},
	jobstore.StepError:          {text.FgRed},
	jobstore.StepSeriesApproval: {text.FgYellow},
	jobstore.StepFileReview:     {text.FgYellow},
	jobstore.StepApplying:       {text.FgCyan},
}

// stepLabel colors a step name when writing to a terminal.
func stepLabel(w io.Writer, step jobstore.Step) string {
	if colors, ok := stepColors[step]; ok && isTerminal(w) {
		return colors.Sprint(string(step))
	}
	return string(step)
}

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"shortbox/internal/api"
	"shortbox/internal/client"
	"shortbox/internal/fileutil"
	"shortbox/internal/grouping"
)

// scanReport is the JSON form of a scan preview.
type scanReport struct {
	Files    int              `json:"files"`
	Groups   []grouping.Group `json:"groups"`
	Warnings []string         `json:"warnings,omitempty"`
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var (
		mixed  bool
		asJSON bool
		submit bool
	)

	cmd := &cobra.Command{
		Use:   "scan <path>...",
		Short: "Preview how archives would be grouped into series",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := fileutil.ScanArchives(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no .cbz or .zip archives found")
			}
			files := make([]grouping.File, len(paths))
			for i, path := range paths {
				files[i] = grouping.File{ID: strconv.Itoa(i + 1), Path: path}
			}
			res := grouping.Partition(files, grouping.Options{MixedSeries: mixed})

			if submit {
				return ctx.withClient(func(c *client.Client) error {
					job, err := c.CreateJob(cmd.Context(), api.CreateJobRequest{Files: files})
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Created job %s with %d files in %d groups\n", job.ID, len(files), len(res.Groups))
					return nil
				})
			}
			if asJSON {
				return writeJSON(cmd, scanReport{Files: len(files), Groups: res.Groups, Warnings: res.Warnings})
			}

			out := cmd.OutOrStdout()
			tw := newTable(out, "#", "Series", "Year", "Files", "Folder", "Notes")
			alignRight(tw, 1, 3, 4)
			for i, g := range res.Groups {
				year := ""
				if g.Query.Year > 0 {
					year = strconv.Itoa(g.Query.Year)
				}
				notes := ""
				switch {
				case g.Marker != nil:
					notes = "series.json"
				case g.ParseFailed:
					notes = "filename not parsed"
				}
				tw.AppendRow([]any{i + 1, g.Query.Series, year, len(g.Members), g.Folder, notes})
			}
			tw.Render()
			for _, w := range res.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			fmt.Fprintf(out, "%d files in %d groups\n", len(files), len(res.Groups))
			return nil
		},
	}

	cmd.Flags().BoolVar(&mixed, "mixed", false, "Ignore series.json markers and group every file by its own name")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the grouping as JSON")
	cmd.Flags().BoolVar(&submit, "submit", false, "Create a job on the running server for the scanned files")
	return cmd
}

package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"shortbox/internal/changeset"
	"shortbox/internal/client"
	"shortbox/internal/jobstore"
	"shortbox/internal/logs"
)

const defaultActivityLines = 10

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage jobs on the running server",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsLogCommand(ctx))
	jobsCmd.AddCommand(newJobsIDCommand(ctx, "start", "Confirm a job's options and start grouping", func(cmd *cobra.Command, c *client.Client, id string) error {
		job, err := c.StartJob(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Job %s started (%s)\n", job.ID, job.Step)
		return nil
	}))
	jobsCmd.AddCommand(newJobsIDCommand(ctx, "cancel", "Cancel a job's running step", func(cmd *cobra.Command, c *client.Client, id string) error {
		job, err := c.CancelJob(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for job %s (%s)\n", job.ID, job.Step)
		return nil
	}))
	jobsCmd.AddCommand(newJobsIDCommand(ctx, "abandon", "Delete a job and its working files", func(cmd *cobra.Command, c *client.Client, id string) error {
		if err := c.AbandonJob(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Job %s abandoned\n", id)
		return nil
	}))
	return jobsCmd
}

func newJobsIDCommand(ctx *commandContext, use, short string, fn func(*cobra.Command, *client.Client, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <job-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				return fn(cmd, c, args[0])
			})
		},
	}
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var archived, asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				jobs, err := c.ListJobs(cmd.Context(), archived)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, jobs)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				renderJobList(out, jobs)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&archived, "archived", false, "Include archived jobs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func renderJobList(out io.Writer, jobs []jobstore.Summary) {
	tw := newTable(out, "ID", "Step", "Files", "Groups", "Updated", "Archived")
	alignRight(tw, 1, 3, 4)
	for _, j := range jobs {
		tw.AppendRow([]any{
			j.ID,
			stepLabel(out, j.Step),
			j.FileCount,
			j.GroupCount,
			j.UpdatedAt.Local().Format(time.DateTime),
			yesNo(j.ArchivedAt != nil),
		})
	}
	tw.Render()
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var activity int
	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job's groups, files, and recent activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				job, err := c.GetJob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, job)
				}
				renderJob(cmd.OutOrStdout(), job, activity)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full job document")
	cmd.Flags().IntVar(&activity, "activity", defaultActivityLines, "Number of activity entries to show")
	return cmd
}

func renderJob(out io.Writer, job *jobstore.Job, activity int) {
	fmt.Fprintf(out, "Job %s: %s\n", job.ID, stepLabel(out, job.Step))
	if job.Error != "" {
		fmt.Fprintf(out, "Error: %s (resume from %s)\n", job.Error, job.ResumeStep)
	}
	fmt.Fprintf(out, "Files: %d  Cleanup: %s  Primary: %s\n", len(job.Files), job.Options.CleanupMode, job.Options.PrimarySource)

	if len(job.Groups) > 0 {
		tw := newTable(out, "#", "Group", "Status", "Files", "Selected")
		alignRight(tw, 1, 4)
		for i, g := range job.Groups {
			marker := ""
			if i == job.CurrentGroup {
				marker = "*"
			}
			selected := ""
			if g.Selected != nil {
				selected = fmt.Sprintf("%s (%s %s, %.0f%%)", g.Selected.Name, g.Selected.Source, g.Selected.SourceID, g.Selected.Confidence*100)
			}
			tw.AppendRow([]any{strconv.Itoa(i+1) + marker, g.Name, string(g.Status), g.FileCount(), selected})
		}
		tw.Render()
	}

	if len(job.ChangeSets) > 0 {
		counts := make(map[changeset.FileStatus]int)
		pending := 0
		for _, cs := range job.ChangeSets {
			counts[cs.Status]++
			if cs.Pending() {
				pending++
			}
		}
		fmt.Fprintf(out, "Change sets: %d matched, %d unmatched, %d manual, %d rejected; %d with pending writes\n",
			counts[changeset.StatusMatched], counts[changeset.StatusUnmatched], counts[changeset.StatusManual], counts[changeset.StatusRejected], pending)
	}
	if job.Progress != nil && job.Step == jobstore.StepApplying {
		fmt.Fprintf(out, "Applying: %d/%d\n", job.Progress.Current, job.Progress.Total)
	}
	if job.Result != nil {
		fmt.Fprintf(out, "Applied: %d succeeded, %d failed\n", job.Result.Successful, job.Result.Failed)
	}

	entries := job.Activity
	if activity >= 0 && len(entries) > activity {
		entries = entries[len(entries)-activity:]
	}
	if len(entries) > 0 {
		fmt.Fprintln(out, "Recent activity:")
		for _, a := range entries {
			fmt.Fprintf(out, "  %s [%s] %s\n", a.At.Local().Format(time.TimeOnly), a.Kind, a.Message)
		}
	}
}

func newJobsLogCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		level  string
		follow bool
	)
	cmd := &cobra.Command{
		Use:   "log <job-id>",
		Short: "Print a job's log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				out := cmd.OutOrStdout()
				q := logs.Query{Offset: -1, Limit: lines, MinLevel: level}
				for {
					page, err := c.JobLog(cmd.Context(), args[0], q)
					if err != nil {
						return err
					}
					for _, e := range page.Entries {
						fmt.Fprintln(out, formatEntry(e))
					}
					if !follow {
						return nil
					}
					q = logs.Query{Offset: page.Offset, MinLevel: level, Wait: 10 * time.Second}
				}
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of entries to show")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new entries")
	return cmd
}

func formatEntry(e logs.Entry) string {
	line := e.Message
	if e.Level != "" {
		line = fmt.Sprintf("%-5s %s", e.Level, line)
	}
	if e.Time != "" {
		line = e.Time + " " + line
	}
	for _, key := range []string{"source", "group_index", "file_id", "error"} {
		if v, ok := e.Fields[key]; ok {
			line += fmt.Sprintf(" %s=%v", key, v)
		}
	}
	return line
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"shortbox/internal/services"
	"shortbox/internal/sources"
	"shortbox/internal/sources/providers"
)

type sourceCheck struct {
	Name    string        `json:"name"`
	Ready   bool          `json:"ready"`
	Problem string        `json:"problem,omitempty"`
	Results int           `json:"results,omitempty"`
	Total   int           `json:"total,omitempty"`
	Elapsed time.Duration `json:"elapsed_ns,omitempty"`
}

func newSourcesCommand(ctx *commandContext) *cobra.Command {
	sourcesCmd := &cobra.Command{
		Use:   "sources",
		Short: "Metadata source utilities",
	}
	sourcesCmd.AddCommand(newSourcesCheckCommand(ctx))
	return sourcesCmd
}

func newSourcesCheckCommand(ctx *commandContext) *cobra.Command {
	var query string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check source credentials and optionally run a live search",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			registry, err := providers.Build(cfg, nil)
			if err != nil {
				return err
			}
			timeout := time.Duration(cfg.Matching.SourceTimeoutSeconds) * time.Second
			if timeout <= 0 {
				timeout = 15 * time.Second
			}
			checks := checkSources(cmd.Context(), registry, query, timeout)
			if asJSON {
				return writeJSON(cmd, checks)
			}

			out := cmd.OutOrStdout()
			tw := newTable(out, "Source", "Ready", "Results", "Elapsed", "Problem")
			alignRight(tw, 3, 4)
			for _, c := range checks {
				results, elapsed := "", ""
				if query != "" && c.Ready && c.Problem == "" {
					results = fmt.Sprintf("%d of %d", c.Results, c.Total)
					elapsed = c.Elapsed.Round(time.Millisecond).String()
				}
				tw.AppendRow([]any{c.Name, yesNo(c.Ready), results, elapsed, c.Problem})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Series name to search every ready source for")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

// checkSources validates every source and, with a query, searches the ready
// ones in parallel. A failing source never stops the others.
func checkSources(ctx context.Context, registry *sources.Registry, query string, timeout time.Duration) []sourceCheck {
	names := registry.Names()
	checks := make([]sourceCheck, len(names))
	var g errgroup.Group
	for i, name := range names {
		adapter, _ := registry.Get(name)
		checks[i] = sourceCheck{Name: name, Ready: true}
		if err := adapter.Validate(); err != nil {
			checks[i].Ready = false
			checks[i].Problem = err.Error()
			continue
		}
		if query == "" {
			continue
		}
		g.Go(func() error {
			searchCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			start := time.Now()
			res, err := adapter.Search(searchCtx, sources.SearchRequest{Query: query, Limit: 10})
			checks[i].Elapsed = time.Since(start)
			if err != nil {
				checks[i].Problem = fmt.Sprintf("%s: %v", services.Kind(err), err)
				return nil
			}
			checks[i].Results = len(res.Results)
			checks[i].Total = res.Pagination.Total
			return nil
		})
	}
	_ = g.Wait()
	return checks
}

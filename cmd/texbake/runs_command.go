package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"texbake/internal/config"
	"texbake/internal/hashstore"
	"texbake/internal/packager"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded export runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *hashstore.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprintln(out, renderRuns(runs))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show (0 for all)")
	return cmd
}

func renderRuns(runs []hashstore.Run) string {
	headers := []string{"Run", "Started", "Duration", "Mode", "Descriptors", "Groups", "Files", "Errors", "Status"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		id := run.ID
		if len(id) > 8 {
			id = id[:8]
		}
		status := run.Status
		if run.Message != "" {
			status += ": " + run.Message
		}
		rows = append(rows, []string{
			id,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Duration().Round(time.Millisecond).String(),
			packager.Mode(run.Mode).String(),
			strconv.Itoa(run.Descriptors),
			strconv.Itoa(run.Groups),
			strconv.Itoa(run.Files),
			strconv.Itoa(run.Errors),
			status,
		})
	}
	return renderTable(headers, rows, aligns)
}

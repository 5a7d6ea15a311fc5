package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/orginsights/insights/cmd/insights/internal/format"
	"github.com/orginsights/insights/pkg/engine"
	"github.com/orginsights/insights/pkg/job"
	"github.com/orginsights/insights/pkg/jobstore"
)

// storeRunner is a runner that only talks to the job store, for commands
// that act on jobs owned by another process.
func storeRunner(ctx context.Context, a *app) (*job.Runner, func(), error) {
	store, err := jobstore.New(ctx, a.cfg.Store, log.Logger)
	if err != nil {
		return nil, nil, err
	}
	r := job.NewRunner(engine.NewRegistry(log.Logger), engine.NewOrchestrator(log.Logger), nil, log.Logger).WithStore(store)
	return r, func() { _ = store.Close() }, nil
}

func newCancelCommand(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:     "cancel <job-id>",
		Short:   "Cancel a running job",
		Long:    "Raises the job's cancel flag in the job store. The running process stops reporting at the next module boundary.",
		GroupID: "run",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			r, closeStore, err := storeRunner(ctx, a)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := r.Cancel(ctx, args[0]); err != nil {
				return err
			}
			f := a.formatter(cmd, format.ParseMode(output), false)
			if format.ParseMode(output) == format.ModeJSON {
				return f.PrintJSON(map[string]any{"success": true, "job_id": args[0], "cancelled": true})
			}
			return f.PrintSummary(fmt.Sprintf("✓ Cancel requested for job %s", args[0]))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, json")
	return cmd
}

func newStatusCommand(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:     "status <job-id>",
		Short:   "Show the stored state of a job",
		GroupID: "run",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			r, closeStore, err := storeRunner(ctx, a)
			if err != nil {
				return err
			}
			defer closeStore()

			rec, err := r.Status(ctx, args[0])
			if err != nil {
				return err
			}
			mode := format.ParseMode(output)
			f := a.formatter(cmd, mode, false)
			if mode == format.ModeJSON {
				return f.PrintJSON(rec)
			}
			finished := "-"
			if !rec.FinishedAt.IsZero() {
				finished = rec.FinishedAt.Format(time.RFC3339)
			}
			return f.PrintTable(
				[]string{"Job", "Owner", "Customer", "State", "Succeeded", "Failed", "Started", "Finished"},
				[][]string{{
					rec.ID, rec.Owner, rec.Customer, string(rec.State),
					fmt.Sprint(rec.Succeeded), fmt.Sprint(rec.Failed),
					rec.StartedAt.Format(time.RFC3339), finished,
				}},
			)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, json")
	return cmd
}

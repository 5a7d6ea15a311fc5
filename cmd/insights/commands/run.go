// Copyright 2026 Insights Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/orginsights/insights/cmd/insights/internal/bind"
	"github.com/orginsights/insights/cmd/insights/internal/format"
	"github.com/orginsights/insights/pkg/engine"
	"github.com/orginsights/insights/pkg/job"
	"github.com/orginsights/insights/pkg/jobstore"
	"github.com/orginsights/insights/pkg/output"
	"github.com/orginsights/insights/pkg/output/subscribers"
	"github.com/orginsights/insights/pkg/paths"
)

func newRunCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run extraction modules against the signed-in Setup tab",
		GroupID: "run",
		Example: `  insights run --customer Acme
  insights run --customer "Acme Corp" --modules licenses,profiles --tab lightning/setup
  insights run --customer Acme --output json --quiet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := bind.BindRunOptions(cmd)
			if err != nil {
				return job.InvalidRequest(err)
			}
			return runExtraction(cmd, a, opts)
		},
	}

	cmd.Flags().String("customer", "", "Customer name; names the <Customer>_<date> run folder")
	cmd.Flags().StringSlice("modules", nil, "Module ids in run order (default: all, in ordinal order)")
	cmd.Flags().String("owner", "", "Run owner; one active run per owner (default: OS user)")
	cmd.Flags().String("tab", "", "Tab id or URL substring (overrides browser.tab_match)")
	cmd.Flags().String("lock-dir", "", "Owner lock directory (default: <data dir>/insights/locks)")
	cmd.Flags().Bool("abort-on-cancel", false, "Also stop the module in flight when the job is cancelled")
	cmd.Flags().Bool("no-files", false, "Do not write the run folder")
	cmd.Flags().StringP("output", "o", "table", "Summary format: table, json")
	cmd.Flags().BoolP("quiet", "q", false, "Suppress progress and summary output")

	return cmd
}

func runExtraction(cmd *cobra.Command, a *app, opts bind.RunOptions) error {
	ctx := cmd.Context()
	cfg := a.cfg
	f := a.formatter(cmd, opts.Output, opts.Quiet)

	registry := engine.NewDefaultRegistry(log.Logger)
	if err := registry.Configure(cfg.ModuleOptions); err != nil {
		return job.InvalidRequest(err)
	}

	p, err := openProbe(ctx, cfg.Browser)
	if err != nil {
		return err
	}
	defer p.Close()

	match := opts.TabMatch
	if match == "" {
		match = cfg.Browser.TabMatch
	}
	tab, err := selectTab(ctx, p, match)
	if err != nil {
		return err
	}

	store, err := jobstore.New(ctx, cfg.Store, log.Logger)
	if err != nil {
		return err
	}
	defer store.Close()

	lockDir := opts.LockDir
	if lockDir == "" {
		lockDir = paths.LockDir()
	}
	orchestrator := engine.NewOrchestrator(log.Logger).
		WithModuleDelay(cfg.Pacing.BetweenModules).
		WithDefaultTimeout(cfg.Modules.Timeout)
	runner := job.NewRunner(registry, orchestrator, p, log.Logger).
		WithStore(store).
		WithLockDir(lockDir).
		WithAbortOnCancel(opts.AbortOnCancel)

	j, err := runner.Start(ctx, job.Request{
		Owner:    opts.Owner,
		Customer: opts.Customer,
		Modules:  opts.Modules,
		Tab:      tab,
	})
	if err != nil {
		return err
	}
	_ = f.PrintSummary(fmt.Sprintf("Job %s started on %q; cancel with: %s cancel %s", j.ID, tab.Title, cliExecutable, j.ID))

	stream := output.NewStream(subscribers.NewLogSubscriber(log.Logger))
	if !opts.Quiet && opts.Output == format.ModeTable {
		stream.Subscribe(subscribers.NewSpinnerSubscriber(cmd.ErrOrStderr()))
	}
	var files *output.FileWriter
	if !opts.NoFiles {
		files = output.NewFileWriter(cfg.Output.Dir, opts.Customer, j.ID, log.Logger)
		stream.Subscribe(files)
	}

	stopSignals := cancelOnSignal(ctx, runner, j.ID)
	out := runner.Execute(ctx, j, stream)
	stopSignals()

	summary := format.RunSummary{Outcome: out}
	if files != nil {
		if ferr := files.Err(); ferr != nil {
			log.Warn().Err(ferr).Str("dir", files.Dir()).Msg("Some run output could not be written")
		}
		summary.Dir = files.Dir()
	}
	if err := f.PrintRunSummary(summary); err != nil {
		return err
	}
	return out.Err()
}

// cancelOnSignal turns SIGINT/SIGTERM into a job cancel. The module in
// flight finishes unless the runner aborts on cancel.
func cancelOnSignal(ctx context.Context, runner *job.Runner, id string) (stop func()) {
	sigCtx, stopNotify := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCtx.Done():
			if ctx.Err() == nil {
				log.Warn().Str("job_id", id).Msg("Interrupted, cancelling job")
				if err := runner.Cancel(context.WithoutCancel(ctx), id); err != nil {
					log.Error().Err(err).Str("job_id", id).Msg("Cancel failed")
				}
			}
		case <-done:
		}
	}()
	return func() {
		close(done)
		stopNotify()
	}
}

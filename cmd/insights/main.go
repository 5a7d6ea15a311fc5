// cmd/insights/main.go
package main

import (
	"errors"
	"os"

	"github.com/fatih/color"

	"github.com/orginsights/insights/cmd/insights/commands"
	"github.com/orginsights/insights/cmd/insights/internal/format"
	"github.com/orginsights/insights/pkg/job"
)

func main() {
	cmd := commands.NewCommand()
	if err := cmd.Execute(); err != nil {
		// An all-failed run already printed its summary.
		if !errors.Is(err, job.ErrAllModulesFailed) {
			f := format.New(os.Stdout, os.Stderr, format.ModeTable, false, !color.NoColor)
			_ = f.PrintError(err, job.Suggestions(err))
		}
		os.Exit(job.ExitCode(err))
	}
}

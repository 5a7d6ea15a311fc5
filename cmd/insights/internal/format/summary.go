// Copyright 2026 Insights Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/orginsights/insights/pkg/engine"
	"github.com/orginsights/insights/pkg/job"
)

// RunSummary is a finished run as the CLI reports it.
type RunSummary struct {
	Outcome job.Outcome
	Dir     string // run folder, empty when nothing was written
}

// ModuleLine is one module in the JSON summary.
type ModuleLine struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Filename  string  `json:"filename"`
	Success   bool    `json:"success"`
	Error     string  `json:"error,omitempty"`
	ErrorCode string  `json:"error_code,omitempty"`
	Seconds   float64 `json:"seconds"`
}

func moduleLine(r engine.Result) ModuleLine {
	return ModuleLine{
		ID:        r.ModuleID,
		Name:      r.ModuleName,
		Filename:  r.Filename,
		Success:   r.Success,
		Error:     r.Error,
		ErrorCode: r.ErrorCode,
		Seconds:   r.Duration().Round(10 * time.Millisecond).Seconds(),
	}
}

// PrintRunSummary prints the run breakdown.
// Example output:
//
//	Run 6f1c... for Acme
//	  ✓ Succeeded: 7
//	  ✗ Failed:    2
//
//	Failed modules:
//	  - storage: click "Storage Usage": link not found
//
//	Output: insights-output/Acme_2026-10-16
func (f *formatter) PrintRunSummary(s RunSummary) error {
	out := s.Outcome

	if f.mode == ModeJSON {
		modules := make([]ModuleLine, 0, len(out.Results))
		for _, r := range out.Results {
			modules = append(modules, moduleLine(r))
		}
		return f.PrintJSON(map[string]any{
			"success":   out.Err() == nil,
			"job_id":    out.JobID,
			"customer":  out.Customer,
			"cancelled": out.Cancelled,
			"succeeded": out.Succeeded,
			"failed":    out.Failed,
			"dir":       s.Dir,
			"modules":   modules,
		})
	}
	if f.quiet {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\nRun %s for %s\n", out.JobID, out.Customer))
	f.count(&sb, color.GreenString, "  ✓ Succeeded: %d\n", out.Succeeded)
	if out.Failed > 0 {
		f.count(&sb, color.RedString, "  ✗ Failed:    %d\n", out.Failed)
	}
	if out.Cancelled {
		f.count(&sb, color.YellowString, "  ⚠ Cancelled: %d module(s) reported\n", out.Delivered)
	}

	var failed []engine.Result
	for _, r := range out.Results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	if len(failed) > 0 {
		sb.WriteString("\nFailed modules:\n")
		for _, r := range failed {
			sb.WriteString(fmt.Sprintf("  - %s: %s\n", r.ModuleID, r.Error))
		}
		if out.Succeeded == 0 {
			writeSuggestions(&sb, job.Suggestions(out.Err()))
		}
	}
	if s.Dir != "" {
		sb.WriteString(fmt.Sprintf("\nOutput: %s\n", s.Dir))
	}

	_, err := f.stdout.Write([]byte(sb.String()))
	return err
}

func (f *formatter) count(sb *strings.Builder, paint func(string, ...any) string, format string, n int) {
	if f.color {
		sb.WriteString(paint(format, n))
		return
	}
	sb.WriteString(fmt.Sprintf(format, n))
}

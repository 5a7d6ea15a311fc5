// Copyright 2026 Insights Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package subscribers

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/lipgloss"

	"github.com/orginsights/insights/pkg/engine"
)

var (
	// Module finished - green
	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	// Module failed - red
	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	// Step status - gray
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	// Error detail - dimmed
	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// SpinnerSubscriber renders run progress on a terminal: a spinner while a
// module runs, then one styled line per finished module.
type SpinnerSubscriber struct {
	writer  io.Writer
	spinner *spinner.Spinner
	current string

	mu sync.Mutex
}

// NewSpinnerSubscriber writes progress to w. The spinner only animates when
// w is a terminal; finished lines are always written.
func NewSpinnerSubscriber(w io.Writer) *SpinnerSubscriber {
	opts := []spinner.Option{spinner.WithWriter(w), spinner.WithHiddenCursor(true)}
	if f, ok := w.(*os.File); ok {
		opts = append(opts, spinner.WithWriterFile(f))
	}
	return &SpinnerSubscriber{
		writer:  w,
		spinner: spinner.New(spinner.CharSets[14], 100*time.Millisecond, opts...),
	}
}

func (s *SpinnerSubscriber) Name() string { return "spinner-subscriber" }

func (s *SpinnerSubscriber) ShouldHandle(engine.Event) bool { return true }

func (s *SpinnerSubscriber) Handle(e engine.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Kind {
	case engine.EventModuleStarted:
		s.current = fmt.Sprintf("[%d/%d] %s", e.Current, e.Total, e.ModuleName)
		s.setSuffix(" " + s.current)
		s.spinner.Start()
	case engine.EventModuleProgress:
		s.setSuffix(fmt.Sprintf(" %s %s", s.current, statusStyle.Render(fmt.Sprintf("%3d%% %s", e.Percentage, e.Status))))
	case engine.EventModuleCompleted:
		s.spinner.Stop()
		line := fmt.Sprintf("  ✓ [%d/%d] %s", e.Current, e.Total, e.ModuleName)
		if e.Result != nil {
			line += fmt.Sprintf(" (%s)", e.Result.Duration().Round(100*time.Millisecond))
		}
		fmt.Fprintln(s.writer, doneStyle.Render(line))
	case engine.EventModuleError:
		s.spinner.Stop()
		fmt.Fprintln(s.writer, failStyle.Render(fmt.Sprintf("  ✗ [%d/%d] %s", e.Current, e.Total, e.ModuleName)))
		if e.Err != nil {
			fmt.Fprintln(s.writer, detailStyle.Render("    "+e.Err.Error()))
		}
	case engine.EventRunComplete:
		s.spinner.Stop()
	}
}

func (s *SpinnerSubscriber) setSuffix(suffix string) {
	s.spinner.Lock()
	s.spinner.Suffix = suffix
	s.spinner.Unlock()
}

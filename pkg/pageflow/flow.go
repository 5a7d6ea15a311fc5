// Copyright 2026 Insights Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package pageflow holds the scraping protocol shared by every module:
// search, a three-tier click fallback, fixed delays, readiness polling,
// scrape retries and the tab-delimited report format.
package pageflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/orginsights/insights/pkg/engine"
	"github.com/orginsights/insights/pkg/probe"
)

// NavigationError names the protocol step whose target was never found.
type NavigationError struct {
	Step   string
	Target string
	Reason string
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Step, e.Target, e.Reason)
}

func (e *NavigationError) Unwrap() error { return engine.ErrNavigation }

// Target describes a navigation link. Selector is the primary (exact) match,
// Label the visible text used by the semantic sweep and Attr the needle for
// the loose attribute match. Empty Attr falls back to Label.
type Target struct {
	Label    string
	Selector string
	Attr     string
}

// Flow drives one tab through the scraping protocol.
type Flow struct {
	probe  probe.Probe
	tab    probe.Tab
	pacing Pacing
	retry  RetryConfig
	logger zerolog.Logger
}

// New binds a flow to the execution context's tab.
func New(ec engine.ExecutionContext, pacing Pacing, logger zerolog.Logger) *Flow {
	return &Flow{
		probe:  ec.Probe,
		tab:    ec.Tab,
		pacing: pacing,
		retry:  DefaultRetryConfig(),
		logger: logger,
	}
}

// On returns a copy of the flow that drives tab instead, typically an
// auxiliary surface.
func (f *Flow) On(tab probe.Tab) *Flow {
	c := *f
	c.tab = tab
	return &c
}

// Tab is the tab the flow drives.
func (f *Flow) Tab() probe.Tab { return f.tab }

// Pacing returns the flow's delays.
func (f *Flow) Pacing() Pacing { return f.pacing }

// Run evaluates routine r with args, retrying navigation races.
func (f *Flow) Run(ctx context.Context, r Routine, args any, out any) error {
	call := r.Call(args)
	return WithRetry(ctx, f.retry, func(ctx context.Context) error {
		return f.probe.Eval(ctx, f.tab, call, out)
	})
}

// Search types term into the Quick Find box and waits for results to render.
func (f *Flow) Search(ctx context.Context, term string) error {
	var res struct {
		Found bool `json:"found"`
	}
	if err := f.Run(ctx, RoutineSearch, map[string]any{"term": term}, &res); err != nil {
		return err
	}
	if !res.Found {
		return &NavigationError{Step: "search", Target: term, Reason: "search input not found"}
	}
	f.logger.Debug().Str("term", term).Msg("Searched setup")
	return Sleep(ctx, f.pacing.SearchDelay)
}

type clickTier struct {
	routine Routine
	args    map[string]any
}

// Click tries the exact selector, then a visible-text sweep, then a loose
// attribute match, in that order. A probe error aborts at once; only "not
// found" moves on to the next tier. After a click it waits for navigation.
func (f *Flow) Click(ctx context.Context, t Target) error {
	attr := t.Attr
	if attr == "" {
		attr = t.Label
	}
	tiers := []clickTier{
		{RoutineClickExact, map[string]any{"selector": t.Selector, "label": t.Label}},
		{RoutineClickText, map[string]any{"label": t.Label}},
		{RoutineClickAttr, map[string]any{"attr": attr, "label": t.Label}},
	}

	for _, tier := range tiers {
		var res struct {
			Clicked bool   `json:"clicked"`
			Text    string `json:"text"`
		}
		if err := f.Run(ctx, tier.routine, tier.args, &res); err != nil {
			return err
		}
		if res.Clicked {
			f.logger.Debug().Str("target", t.Label).Str("tier", tier.routine.Name).Str("text", res.Text).Msg("Clicked navigation target")
			return Sleep(ctx, f.pacing.NavigationDelay)
		}
		f.logger.Debug().Str("target", t.Label).Str("tier", tier.routine.Name).Msg("Navigation target not found, falling back")
	}
	return &NavigationError{Step: "click", Target: t.Label, Reason: "link not found"}
}

// Navigate runs Search followed by Click for a Setup page.
func (f *Flow) Navigate(ctx context.Context, term string, t Target) error {
	if err := f.Search(ctx, term); err != nil {
		return err
	}
	return f.Click(ctx, t)
}

// Readiness is the outcome of WaitFor.
type Readiness struct {
	Ready    bool
	Attempts int
	Rows     int
}

// WaitFor polls until a table with the header signature shows up or the
// poll budget is spent. Running out of attempts is not an error: the caller
// scrapes whatever is present. Routine exceptions count as "not ready yet".
func (f *Flow) WaitFor(ctx context.Context, headers []string) (Readiness, error) {
	attempts := f.pacing.PollAttempts
	if attempts < 1 {
		attempts = 1
	}
	var r Readiness
	for r.Attempts < attempts {
		r.Attempts++
		var res struct {
			Ready bool `json:"ready"`
			Rows  int  `json:"rows"`
		}
		err := f.Run(ctx, RoutineReady, map[string]any{"headers": headers}, &res)
		switch {
		case err == nil && res.Ready:
			r.Ready, r.Rows = true, res.Rows
			return r, nil
		case err != nil && !errors.Is(err, probe.ErrRoutine):
			return r, err
		}
		if r.Attempts < attempts {
			if err := Sleep(ctx, f.pacing.PollInterval); err != nil {
				return r, err
			}
		}
	}
	f.logger.Warn().Strs("headers", headers).Int("attempts", r.Attempts).Msg("Content not ready, scraping anyway")
	return r, nil
}

// Expand opens collapsed sections and waits for them to settle.
func (f *Flow) Expand(ctx context.Context) (int, error) {
	var res struct {
		Expanded int `json:"expanded"`
	}
	if err := f.Run(ctx, RoutineExpand, nil, &res); err != nil {
		return 0, err
	}
	return res.Expanded, Sleep(ctx, f.pacing.SettleDelay)
}

// TableData is one table read from the page.
type TableData struct {
	Caption string     `json:"caption"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
	Links   []string   `json:"links"` // first link of each row, "" when none
}

// Column returns the index of the first header containing name
// (case-insensitive), or -1.
func (t TableData) Column(name string) int {
	want := strings.ToLower(name)
	for i, h := range t.Headers {
		if strings.Contains(strings.ToLower(h), want) {
			return i
		}
	}
	return -1
}

// Value returns row's cell under the header matching name, or "".
func (t TableData) Value(row []string, name string) string {
	i := t.Column(name)
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// Link returns the first link of row i, or "".
func (t TableData) Link(i int) string {
	if i < 0 || i >= len(t.Links) {
		return ""
	}
	return t.Links[i]
}

// Tables reads every table whose header row contains all of headers.
func (f *Flow) Tables(ctx context.Context, headers []string) ([]TableData, error) {
	var res struct {
		Tables []TableData `json:"tables"`
	}
	if err := f.Run(ctx, RoutineTables, map[string]any{"headers": headers}, &res); err != nil {
		return nil, err
	}
	return res.Tables, nil
}

// Table reads the first matching table. A missing table yields an empty
// TableData, not an error.
func (f *Flow) Table(ctx context.Context, headers []string) (TableData, error) {
	tables, err := f.Tables(ctx, headers)
	if err != nil || len(tables) == 0 {
		return TableData{Headers: headers}, err
	}
	return tables[0], nil
}

// Fields reads the label/value pairs of a detail page.
func (f *Flow) Fields(ctx context.Context) (map[string]string, error) {
	var res struct {
		Fields map[string]string `json:"fields"`
	}
	if err := f.Run(ctx, RoutineFields, nil, &res); err != nil {
		return nil, err
	}
	if res.Fields == nil {
		res.Fields = map[string]string{}
	}
	return res.Fields, nil
}

// Text returns the text of the first visible element matching selector.
func (f *Flow) Text(ctx context.Context, selector string) (string, bool, error) {
	var res struct {
		Found bool   `json:"found"`
		Text  string `json:"text"`
	}
	if err := f.Run(ctx, RoutineText, map[string]any{"selector": selector}, &res); err != nil {
		return "", false, err
	}
	return res.Text, res.Found, nil
}

// Field looks a label up in fields, case-insensitively, ignoring a trailing
// colon.
func Field(fields map[string]string, label string) string {
	if v, ok := fields[label]; ok {
		return v
	}
	want := strings.ToLower(strings.TrimSuffix(label, ":"))
	for k, v := range fields {
		if strings.ToLower(strings.TrimSuffix(strings.TrimSpace(k), ":")) == want {
			return v
		}
	}
	return ""
}

// Copyright 2026 Insights Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package probe is the page-probe RPC layer: it runs a named extraction
// routine inside a browser tab and hands back the routine's JSON result.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTabNotFound is returned when no tab matches a requested reference.
	ErrTabNotFound = errors.New("tab not found")
	// ErrClosed is returned by calls made after the probe or surface was closed.
	ErrClosed = errors.New("probe closed")
	// ErrRoutine wraps exceptions thrown by the page routine itself.
	ErrRoutine = errors.New("page routine failed")
)

// Tab identifies one browser page.
type Tab struct {
	ID    string `json:"id" yaml:"id"`
	URL   string `json:"url" yaml:"url"`
	Title string `json:"title" yaml:"title"`
}

// IsZero reports whether the tab reference is unset.
func (t Tab) IsZero() bool { return t.ID == "" }

// Call is one routine invocation. Script is a JavaScript function expression
// that receives Args as its single argument and may return a promise.
type Call struct {
	Name   string
	Script string
	Args   any
}

// Expression renders the call as a self-invoking expression.
func (c Call) Expression() (string, error) {
	args, err := json.Marshal(c.Args)
	if err != nil {
		return "", fmt.Errorf("encode args for %s: %w", c.Name, err)
	}
	return fmt.Sprintf("(%s)(%s)", strings.TrimSpace(c.Script), args), nil
}

// Probe executes routines against browser tabs. A call may block for an
// unbounded time; callers bound it through ctx.
type Probe interface {
	// Eval runs call in tab and decodes the JSON result into out (which may be nil).
	Eval(ctx context.Context, tab Tab, call Call, out any) error
	// Open creates an auxiliary page at url owned by the caller.
	Open(ctx context.Context, url string) (Surface, error)
	// Tabs lists the page targets of the browser.
	Tabs(ctx context.Context) ([]Tab, error)
	Close() error
}

// Surface is an auxiliary page. Close must be called on every exit path.
type Surface interface {
	Tab() Tab
	Close() error
}

// FindTab returns the first tab whose URL contains match, or the tab whose ID
// equals match.
func FindTab(tabs []Tab, match string) (Tab, error) {
	for _, t := range tabs {
		if t.ID == match {
			return t, nil
		}
	}
	for _, t := range tabs {
		if match != "" && strings.Contains(t.URL, match) {
			return t, nil
		}
	}
	return Tab{}, fmt.Errorf("%w: %q", ErrTabNotFound, match)
}

// Decode copies a raw JSON routine result into out.
func Decode(raw []byte, out any) error {
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode routine result: %w", err)
	}
	return nil
}

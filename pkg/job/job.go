// Copyright 2026 Insights Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package job turns a start-run request into one orchestrated extraction run
// and owns its cancellation.
package job

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/orginsights/insights/pkg/engine"
	"github.com/orginsights/insights/pkg/probe"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Request is a start-run request.
type Request struct {
	Owner    string    `validate:"required"`
	Customer string    `validate:"required,max=120"`
	Modules  []string  `validate:"dive,required"`
	Tab      probe.Tab `validate:"-"`
}

// check rejects requests that can never produce a run.
func (r Request) check() error {
	if len(r.Modules) == 0 {
		return WithErrorCode(ErrNoModules, errorCodeNoModules)
	}
	if r.Tab.IsZero() {
		return WithErrorCode(ErrNoTarget, errorCodeNoTarget)
	}
	if err := validate.Struct(r); err != nil {
		return InvalidRequest(err)
	}
	return nil
}

// Job is one extraction run. The cancelled flag may be raised from any
// goroutine; only the caller side of the run reacts to it.
type Job struct {
	ID        string
	Owner     string
	Customer  string
	Modules   []string
	Tab       probe.Tab
	StartedAt time.Time

	cancelled atomic.Bool

	mu    sync.Mutex
	abort context.CancelFunc
}

func newJob(req Request, now time.Time) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Owner:     req.Owner,
		Customer:  req.Customer,
		Modules:   append([]string(nil), req.Modules...),
		Tab:       req.Tab,
		StartedAt: now,
	}
}

// Cancel raises the cancelled flag. It is idempotent.
func (j *Job) Cancel() {
	j.cancelled.Store(true)
}

// Cancelled reports whether Cancel was called.
func (j *Job) Cancelled() bool {
	return j.cancelled.Load()
}

// bindAbort attaches the cancel func of the run context.
func (j *Job) bindAbort(cancel context.CancelFunc) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.abort = cancel
}

// stopInFlight cancels the run context, if one is bound.
func (j *Job) stopInFlight() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.abort != nil {
		j.abort()
	}
}

// Outcome is the caller's view of a finished run.
type Outcome struct {
	JobID      string
	Customer   string
	Results    []engine.Result // every result, in module order
	Delivered  int             // results forwarded before cancellation
	Succeeded  int
	Failed     int
	Cancelled  bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Err is nil when at least one module succeeded.
func (o Outcome) Err() error {
	if o.Succeeded > 0 {
		return nil
	}
	return ErrAllModulesFailed
}

// ExitCode is 0 when at least one module succeeded and 1 otherwise.
func (o Outcome) ExitCode() int {
	return ExitCode(o.Err())
}

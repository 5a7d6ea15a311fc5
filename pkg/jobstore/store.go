// Copyright 2026 Insights Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package jobstore keeps extraction job records and their cancel flags where
// more than one process can see them.
package jobstore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/orginsights/insights/pkg/config"
)

// State is the lifecycle state of a job record.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// DefaultTTL is how long records live when no TTL is configured.
const DefaultTTL = 24 * time.Hour

// Record is the externally visible state of one extraction job.
type Record struct {
	ID         string    `json:"id"`
	Owner      string    `json:"owner"`
	Customer   string    `json:"customer"`
	Modules    []string  `json:"modules"`
	State      State     `json:"state"`
	Cancelled  bool      `json:"cancelled"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

func (r Record) validate() error {
	if r.ID == "" {
		return &InvalidInputError{Field: "id", Reason: "must not be empty"}
	}
	return nil
}

// Store persists job records. Cancel only raises the flag; the running
// process observes it through Cancelled.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	Cancel(ctx context.Context, id string) error
	Cancelled(ctx context.Context, id string) (bool, error)
	Close() error
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) (Store, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      ttl,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown job store driver %q", cfg.Driver)
	}
}

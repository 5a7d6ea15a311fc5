// Copyright 2026 Insights Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package pageflow

// This file implements the two retry loops of the scraping protocol.
//
// WithRetry re-runs a probe call that failed because the page was mid
// navigation (the JavaScript execution context was torn down under it).
// Any other error fails immediately.
//
// RetryWhileEmpty re-runs a complete scrape while its result still reads as
// "no data yet". It never fails because the page stayed empty: after the
// last attempt the caller gets whatever the page produced.

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig defines retry behavior for probe calls.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts; 0 behaves like 1.
	MaxAttempts int

	// InitialWait is the wait before the second attempt.
	InitialWait time.Duration

	// MaxWait caps the wait between attempts (0 = uncapped).
	MaxWait time.Duration

	// Multiplier for exponential backoff (must be >= 1.0).
	Multiplier float64

	// Jitter adds up to ±25% randomness to each wait.
	Jitter bool
}

// DefaultRetryConfig is used for transient probe failures.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// FixedRetry waits the same duration between every attempt.
func FixedRetry(attempts int, wait time.Duration) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialWait: wait, MaxWait: wait, Multiplier: 1.0}
}

// NoRetry returns a config that disables retries.
func NoRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 0}
}

// Validate checks if the retry config is valid.
func (rc RetryConfig) Validate() error {
	if rc.MaxAttempts < 0 {
		return fmt.Errorf("MaxAttempts must be >= 0, got %d", rc.MaxAttempts)
	}
	if rc.MaxAttempts <= 1 {
		return nil
	}
	if rc.InitialWait < 0 {
		return fmt.Errorf("InitialWait must be >= 0, got %v", rc.InitialWait)
	}
	if rc.MaxWait < 0 {
		return fmt.Errorf("MaxWait must be >= 0, got %v", rc.MaxWait)
	}
	if rc.Multiplier < 1.0 {
		return fmt.Errorf("multiplier must be >= 1.0, got %f", rc.Multiplier)
	}
	if rc.MaxWait > 0 && rc.InitialWait > rc.MaxWait {
		return fmt.Errorf("InitialWait (%v) must be <= MaxWait (%v)", rc.InitialWait, rc.MaxWait)
	}
	return nil
}

func (rc RetryConfig) attempts() int {
	if rc.MaxAttempts < 1 {
		return 1
	}
	return rc.MaxAttempts
}

// calculateWait computes the wait before the given retry (1-based).
func (rc RetryConfig) calculateWait(retry int) time.Duration {
	if retry <= 0 {
		return 0
	}

	wait := float64(rc.InitialWait) * math.Pow(rc.Multiplier, float64(retry-1))
	if rc.MaxWait > 0 && wait > float64(rc.MaxWait) {
		wait = float64(rc.MaxWait)
	}
	if rc.Jitter {
		jitterRange := wait * 0.25
		wait += (rand.Float64() * 2 * jitterRange) - jitterRange
	}
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}

// RetryFunc is a function that may fail and should be retried.
type RetryFunc func(ctx context.Context) error

// transientMarkers are the messages browsers produce when a script raced a
// navigation.
var transientMarkers = []string{
	"execution context was destroyed",
	"cannot find context with specified id",
	"inspected target navigated or closed",
	"target closed while evaluating",
	"frame was detached",
}

// isRetryableError reports whether err is a navigation race worth retrying.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// WithRetry executes fn, retrying navigation races according to config.
// Non-retryable errors are returned unchanged.
func WithRetry(ctx context.Context, config RetryConfig, fn RetryFunc) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid retry config: %w", err)
	}

	var lastErr error
	maxAttempts := config.attempts()
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryableError(err) {
			return err
		}

		if attempt < maxAttempts-1 {
			if err := Sleep(ctx, config.calculateWait(attempt+1)); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("max attempts (%d) exceeded: %w", maxAttempts, lastErr)
}

// RetryWhileEmpty runs scrape until empty reports false or the attempts are
// used up, waiting between attempts. It returns the last result and the
// number of attempts made. An error from scrape stops the loop at once.
func RetryWhileEmpty[T any](ctx context.Context, config RetryConfig, scrape func(context.Context) (T, error), empty func(T) bool) (T, int, error) {
	var (
		result T
		err    error
	)
	if err = config.Validate(); err != nil {
		return result, 0, fmt.Errorf("invalid retry config: %w", err)
	}

	maxAttempts := config.attempts()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err = scrape(ctx)
		if err != nil {
			return result, attempt, err
		}
		if !empty(result) || attempt == maxAttempts {
			return result, attempt, nil
		}
		if err = Sleep(ctx, config.calculateWait(attempt)); err != nil {
			return result, attempt, err
		}
	}
	return result, maxAttempts, nil
}

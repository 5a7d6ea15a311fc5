// pkg/engine/orchestrator.go
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status is the lifecycle state of one module within a run.
type Status int

const (
	StatusPending Status = iota
	StatusInitializing
	StatusValidating
	StatusScraping
	StatusFormatting
	StatusCompleted
	StatusFailed
)

// String returns the string representation of the Status value.
func (s Status) String() string {
	if s < StatusPending || s > StatusFailed {
		return "Unknown"
	}
	return [...]string{"Pending", "Initializing", "Validating", "Scraping", "Formatting", "Completed", "Failed"}[s]
}

const (
	// DefaultModuleDelay separates two modules so the page is not hammered
	// with back-to-back navigation.
	DefaultModuleDelay = 500 * time.Millisecond

	// DefaultModuleTimeout bounds Scrape for modules without their own timeout.
	DefaultModuleTimeout = 90 * time.Second
)

// Orchestrator runs modules strictly one after another against a shared
// execution context.
type Orchestrator struct {
	delay          time.Duration
	defaultTimeout time.Duration
	logger         zerolog.Logger
	now            func() time.Time
}

// runtimeNode tracks one module through a run.
type runtimeNode struct {
	module    Module
	desc      Descriptor
	index     int
	status    Status
	startTime time.Time
	endTime   time.Time
	err       error
}

// NewOrchestrator builds an orchestrator with default pacing.
func NewOrchestrator(logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		delay:          DefaultModuleDelay,
		defaultTimeout: DefaultModuleTimeout,
		logger:         logger.With().Str("component", "engine.orchestrator").Logger(),
		now:            time.Now,
	}
}

// WithModuleDelay overrides the pause between modules.
func (o *Orchestrator) WithModuleDelay(d time.Duration) *Orchestrator {
	if d >= 0 {
		o.delay = d
	}
	return o
}

// WithDefaultTimeout overrides the Scrape bound used when a module sets none.
func (o *Orchestrator) WithDefaultTimeout(d time.Duration) *Orchestrator {
	if d > 0 {
		o.defaultTimeout = d
	}
	return o
}

// WithClock overrides the time source, for tests.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	if now != nil {
		o.now = now
	}
	return o
}

// Run executes modules in order and returns exactly one Result per module,
// in the same order. A failing module never stops the run. Run does not
// look at any job cancellation state; ctx only bounds in-flight probe work.
func (o *Orchestrator) Run(ctx context.Context, ec ExecutionContext, modules []Module, sink EventSink) []Result {
	if sink == nil {
		sink = Discard
	}
	total := len(modules)
	results := make([]Result, 0, total)

	o.logger.Info().Int("modules", total).Str("customer", ec.Customer).Msg("Starting run")

	for i, m := range modules {
		if i > 0 {
			o.pause(ctx)
		}
		node := &runtimeNode{module: m, desc: m.Descriptor(), index: i + 1, status: StatusPending}
		res := o.runModule(ctx, ec, node, total, sink)
		results = append(results, res)

		if !res.Success {
			sink.OnEvent(Event{
				Kind:       EventModuleError,
				ModuleID:   node.desc.ID,
				ModuleName: node.desc.Name,
				Current:    node.index,
				Total:      total,
				Err:        res.cause,
				Timestamp:  o.now(),
			})
		}
		completed := res
		sink.OnEvent(Event{
			Kind:       EventModuleCompleted,
			ModuleID:   node.desc.ID,
			ModuleName: node.desc.Name,
			Current:    node.index,
			Total:      total,
			Result:     &completed,
			Timestamp:  o.now(),
		})
	}

	succeeded, failed := Tally(results)
	o.logger.Info().Int("succeeded", succeeded).Int("failed", failed).Msg("Run finished")

	final := make([]Result, len(results))
	copy(final, results)
	sink.OnEvent(Event{Kind: EventRunComplete, Total: total, Results: final, Timestamp: o.now()})
	return results
}

// pause waits the inter-module delay. A cancelled ctx shortens the wait but
// the loop still continues.
func (o *Orchestrator) pause(ctx context.Context) {
	if o.delay <= 0 {
		return
	}
	t := time.NewTimer(o.delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (o *Orchestrator) runModule(ctx context.Context, ec ExecutionContext, node *runtimeNode, total int, sink EventSink) Result {
	desc := node.desc
	logger := o.logger.With().Str("module", desc.ID).Int("index", node.index).Logger()

	sink.OnEvent(Event{
		Kind:       EventModuleStarted,
		ModuleID:   desc.ID,
		ModuleName: desc.Name,
		Current:    node.index,
		Total:      total,
		Timestamp:  o.now(),
	})
	node.startTime = o.now()
	logger.Info().Msg("Executing module")

	// Forward module progress in emission order. Percentages are clamped to
	// 0..100; everything else passes through unchanged. Once execute returns,
	// the module's handling is over and late calls from an abandoned scrape
	// are dropped.
	var progressMu sync.Mutex
	closed := false
	moduleEC := ec
	moduleEC.Progress = func(percentage int, status string) {
		progressMu.Lock()
		defer progressMu.Unlock()
		if closed {
			logger.Debug().Int("percentage", percentage).Str("status", status).Msg("Dropping progress from finished module")
			return
		}
		sink.OnEvent(Event{
			Kind:       EventModuleProgress,
			ModuleID:   desc.ID,
			ModuleName: desc.Name,
			Current:    node.index,
			Total:      total,
			Percentage: clampPercent(percentage),
			Status:     status,
			Timestamp:  o.now(),
		})
		if ec.Progress != nil {
			ec.Progress(percentage, status)
		}
	}

	raw, err := o.execute(ctx, moduleEC, node, logger)
	progressMu.Lock()
	closed = true
	progressMu.Unlock()
	if err != nil {
		return o.fail(node, err, logger)
	}

	node.status = StatusFormatting
	formatted, payload, err := o.render(node, raw)
	if err != nil {
		return o.fail(node, err, logger)
	}

	node.status = StatusCompleted
	node.endTime = o.now()
	logger.Info().Dur("duration", node.endTime.Sub(node.startTime)).Msg("Module completed")
	return Result{
		ModuleID:   desc.ID,
		ModuleName: desc.Name,
		Formatted:  formatted,
		Payload:    payload,
		Filename:   node.module.Filename(),
		Success:    true,
		Raw:        raw,
		Status:     StatusCompleted,
		StartedAt:  node.startTime,
		FinishedAt: node.endTime,
	}
}

// execute runs initialize, validate and scrape. Scrape runs under the
// module's hard timeout in its own goroutine so a probe call that never
// returns cannot stall the run.
func (o *Orchestrator) execute(ctx context.Context, ec ExecutionContext, node *runtimeNode, logger zerolog.Logger) (raw any, err error) {
	if err := o.guard(node, StatusInitializing, func() error { node.module.Initialize(); return nil }); err != nil {
		return nil, err
	}

	if err := o.guard(node, StatusValidating, func() error { return node.module.Validate(ec) }); err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) && !errors.Is(err, ErrInternal) {
			err = &ValidationError{Reason: err.Error()}
		}
		return nil, err
	}

	node.status = StatusScraping
	limit := node.desc.Timeout
	if limit <= 0 {
		limit = o.defaultTimeout
	}
	scrapeCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	type outcome struct {
		raw any
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		var out outcome
		defer func() {
			if r := recover(); r != nil {
				out = outcome{err: NewInternalError(StatusScraping, r)}
			}
			done <- out
		}()
		out.raw, out.err = node.module.Scrape(scrapeCtx, ec)
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(scrapeCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, NewTimeoutError(node.desc.ID, limit)
		}
		return out.raw, out.err
	case <-scrapeCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn().Dur("timeout", limit).Msg("Module exceeded its timeout, abandoning scrape")
		return nil, NewTimeoutError(node.desc.ID, limit)
	}
}

// render calls Format and StructuredPayload. Both are expected to be pure
// and total; a panic is converted into an internal error.
func (o *Orchestrator) render(node *runtimeNode, raw any) (formatted string, payload any, err error) {
	err = o.guard(node, StatusFormatting, func() error {
		formatted = node.module.Format(raw)
		payload = node.module.StructuredPayload(raw)
		return nil
	})
	return formatted, payload, err
}

// guard runs fn as step, converting a panic into an internal error.
func (o *Orchestrator) guard(node *runtimeNode, step Status, fn func() error) (err error) {
	node.status = step
	defer func() {
		if r := recover(); r != nil {
			err = NewInternalError(step, r)
		}
	}()
	return fn()
}

func (o *Orchestrator) fail(node *runtimeNode, err error, logger zerolog.Logger) Result {
	failedAt := node.status
	node.status = StatusFailed
	node.err = err
	node.endTime = o.now()

	logger.Error().Err(err).Str("step", failedAt.String()).Str("code", ErrorCode(err)).Msg("Module failed")
	return Result{
		ModuleID:   node.desc.ID,
		ModuleName: node.desc.Name,
		Formatted:  failedPayload(err),
		Filename:   node.module.Filename(),
		Success:    false,
		Error:      err.Error(),
		ErrorCode:  ErrorCode(err),
		Status:     StatusFailed,
		FailedAt:   failedAt,
		StartedAt:  node.startTime,
		FinishedAt: node.endTime,
		cause:      err,
	}
}

func clampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

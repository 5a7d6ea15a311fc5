// pkg/engine/module.go
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cast"

	"github.com/orginsights/insights/pkg/probe"
)

// Descriptor holds common information for all extraction modules.
type Descriptor struct {
	ID          string        `json:"id" yaml:"id"`                   // Unique identifier, e.g. "health-check"
	Name        string        `json:"name" yaml:"name"`               // Human-readable name, e.g. "Health Check"
	Description string        `json:"description" yaml:"description"` // What the module extracts
	Version     string        `json:"version" yaml:"version"`         // Semantic version of the module implementation
	Enabled     bool          `json:"enabled" yaml:"enabled"`         // Set by Registry.Descriptors for the last Enable call
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`         // Hard wall clock bound for Scrape; zero uses the orchestrator default
}

// ProgressFunc receives fine-grained progress from a running module.
// The orchestrator normalises percentage to 0..100 before it reaches any
// sink; the caller's own ExecutionContext.Progress still sees the raw value.
// Calls made after the module's Scrape was abandoned are dropped.
type ProgressFunc func(percentage int, status string)

// ExecutionContext is the read-only, run-scoped state shared by every module
// of a run. Modules read it and invoke Progress; they never modify it.
type ExecutionContext struct {
	Probe    probe.Probe
	Tab      probe.Tab
	Customer string
	Progress ProgressFunc
}

// Report emits a progress update when a callback is attached.
func (ec ExecutionContext) Report(percentage int, status string) {
	if ec.Progress != nil {
		ec.Progress(percentage, status)
	}
}

// Module is the capability set every extraction module implements.
type Module interface {
	// Descriptor returns descriptive information about the module.
	Descriptor() Descriptor

	// Initialize resets per-run state. It is idempotent.
	Initialize()

	// Validate is a cheap pre-flight check; it must not navigate.
	// A non-nil error marks the module invalid for this run.
	Validate(ec ExecutionContext) error

	// Scrape drives the page probe and returns module specific raw data.
	Scrape(ctx context.Context, ec ExecutionContext) (any, error)

	// Format renders raw data as a tab-delimited text report. It is pure.
	Format(raw any) string

	// StructuredPayload maps raw data to the machine-readable contract.
	StructuredPayload(raw any) any

	// Filename is the canonical output base name, see FilenameFor.
	Filename() string
}

// Configurable is implemented by modules that accept options from the
// configuration layer.
type Configurable interface {
	Configure(options map[string]any) error
}

// Base provides the default behaviour shared by modules. Embed it and
// implement Scrape and Format.
type Base struct {
	desc Descriptor
}

// NewBase builds a Base around desc.
func NewBase(desc Descriptor) Base {
	return Base{desc: desc}
}

func (b *Base) Descriptor() Descriptor { return b.desc }

// Initialize is a no-op for modules without per-run state.
func (b *Base) Initialize() {}

// Validate requires a probe and a target tab.
func (b *Base) Validate(ec ExecutionContext) error {
	if ec.Probe == nil {
		return Invalid("no page probe attached")
	}
	if ec.Tab.IsZero() {
		return Invalid("no target tab selected")
	}
	return nil
}

// StructuredPayload returns raw unchanged.
func (b *Base) StructuredPayload(raw any) any { return raw }

// Filename looks the module up in the central ordinal table.
func (b *Base) Filename() string { return FilenameFor(b.desc.ID) }

// Configure applies the options every module understands ("timeout").
func (b *Base) Configure(options map[string]any) error {
	if v, ok := options["timeout"]; ok {
		d, err := cast.ToDurationE(v)
		if err != nil {
			return fmt.Errorf("module %s: invalid timeout option: %w", b.desc.ID, err)
		}
		if d > 0 {
			b.desc.Timeout = d
		}
	}
	return nil
}

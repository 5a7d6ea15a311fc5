// pkg/pageflow/base.go
package pageflow

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/orginsights/insights/pkg/engine"
)

// Base extends engine.Base with the pacing and logger every page-driven
// module carries. Embed it and implement Scrape and Format.
type Base struct {
	engine.Base
	Pacing Pacing
	Logger zerolog.Logger
}

// NewBase returns a Base with default pacing and a module component logger.
func NewBase(desc engine.Descriptor) Base {
	return Base{
		Base:   engine.NewBase(desc),
		Pacing: DefaultPacing(),
		Logger: log.With().Str("component", "module."+desc.ID).Logger(),
	}
}

// Configure applies the timeout and pacing options.
func (b *Base) Configure(options map[string]any) error {
	if err := b.Base.Configure(options); err != nil {
		return err
	}
	p, err := b.Pacing.Configure(options)
	if err != nil {
		return err
	}
	b.Pacing = p
	return nil
}

// Flow binds the scraping protocol to the run's tab.
func (b *Base) Flow(ec engine.ExecutionContext) *Flow {
	return New(ec, b.Pacing, b.Logger)
}

// ScrapeRetry is the "no data yet" retry policy derived from pacing.
func (b *Base) ScrapeRetry() RetryConfig {
	return FixedRetry(b.Pacing.RetryAttempts, b.Pacing.RetryWait)
}

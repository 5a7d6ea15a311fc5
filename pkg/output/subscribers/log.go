package subscribers

import (
	"github.com/rs/zerolog"

	"github.com/orginsights/insights/pkg/engine"
)

// LogSubscriber writes every run event to a structured logger.
type LogSubscriber struct {
	logger zerolog.Logger
}

// NewLogSubscriber logs through logger under the "output.events" component.
func NewLogSubscriber(logger zerolog.Logger) *LogSubscriber {
	return &LogSubscriber{logger: logger.With().Str("component", "output.events").Logger()}
}

func (s *LogSubscriber) Name() string { return "log-subscriber" }

func (s *LogSubscriber) ShouldHandle(engine.Event) bool { return true }

func (s *LogSubscriber) Handle(e engine.Event) {
	switch e.Kind {
	case engine.EventModuleStarted:
		s.logger.Info().Str("module", e.ModuleID).Int("current", e.Current).Int("total", e.Total).Msg("Module started")
	case engine.EventModuleProgress:
		s.logger.Debug().Str("module", e.ModuleID).Int("percentage", e.Percentage).Str("status", e.Status).Msg("Module progress")
	case engine.EventModuleCompleted:
		ev := s.logger.Info()
		if e.Result != nil {
			ev = ev.Str("filename", e.Result.Filename).Dur("duration", e.Result.Duration())
		}
		ev.Str("module", e.ModuleID).Msg("Module completed")
	case engine.EventModuleError:
		s.logger.Error().Err(e.Err).Str("module", e.ModuleID).Str("code", engine.ErrorCode(e.Err)).Msg("Module failed")
	case engine.EventRunComplete:
		ok, failed := engine.Tally(e.Results)
		s.logger.Info().Int("succeeded", ok).Int("failed", failed).Int("total", e.Total).Msg("Run complete")
	}
}

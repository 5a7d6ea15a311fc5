package job

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/orginsights/insights/pkg/engine"
	"github.com/orginsights/insights/pkg/jobstore"
)

// gate is the caller-side cancellation check. It sits between the
// orchestrator and the caller's sinks and stops forwarding once the job is
// cancelled, locally or through the job store. The orchestrator itself
// never sees the flag.
type gate struct {
	job       *Job
	store     jobstore.Store
	next      engine.EventSink
	logger    zerolog.Logger
	abort     bool
	delivered []engine.Result
	dropped   int
}

func (g *gate) cancelled() bool {
	if g.job.Cancelled() {
		return true
	}
	if g.store == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	flag, err := g.store.Cancelled(ctx, g.job.ID)
	if err != nil {
		g.logger.Warn().Err(err).Str("job_id", g.job.ID).Msg("Could not read cancel flag")
		return false
	}
	if flag {
		g.job.Cancel()
	}
	return flag
}

func (g *gate) OnEvent(e engine.Event) {
	switch e.Kind {
	case engine.EventModuleStarted, engine.EventModuleCompleted:
		// Module boundaries are where the flag is consulted.
		if g.cancelled() {
			if g.abort {
				g.job.stopInFlight()
			}
			g.dropped++
			return
		}
		if e.Kind == engine.EventModuleCompleted && e.Result != nil {
			g.delivered = append(g.delivered, *e.Result)
		}
	case engine.EventRunComplete:
		// The caller only ever sees the results it reacted to.
		e.Results = append([]engine.Result(nil), g.delivered...)
	default:
		if g.job.Cancelled() {
			g.dropped++
			return
		}
	}
	g.next.OnEvent(e)
}

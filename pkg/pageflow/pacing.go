// pkg/pageflow/pacing.go
package pageflow

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cast"
)

// Pacing holds the delays and bounds of the scraping protocol. The zero
// value disables every delay and polls exactly once.
type Pacing struct {
	SearchDelay     time.Duration // after typing into the search box
	NavigationDelay time.Duration // after clicking a navigation target
	PollInterval    time.Duration // between readiness probes
	PollAttempts    int           // readiness probes before giving up
	SettleDelay     time.Duration // after expanding collapsed sections
	RetryAttempts   int           // total scrape attempts while the page reads as empty
	RetryWait       time.Duration // between scrape attempts
}

// DefaultPacing matches the timings the admin console needs in practice.
func DefaultPacing() Pacing {
	return Pacing{
		SearchDelay:     2 * time.Second,
		NavigationDelay: 8 * time.Second,
		PollInterval:    time.Second,
		PollAttempts:    20,
		SettleDelay:     2 * time.Second,
		RetryAttempts:   3,
		RetryWait:       3 * time.Second,
	}
}

// Configure overlays option values on p. Keys are the pacing.* config keys
// without their prefix; unknown keys are ignored.
func (p Pacing) Configure(opts map[string]any) (Pacing, error) {
	durations := map[string]*time.Duration{
		"search_delay":     &p.SearchDelay,
		"navigation_delay": &p.NavigationDelay,
		"poll_interval":    &p.PollInterval,
		"settle_delay":     &p.SettleDelay,
		"retry_wait":       &p.RetryWait,
	}
	for key, dst := range durations {
		v, ok := opts[key]
		if !ok {
			continue
		}
		d, err := cast.ToDurationE(v)
		if err != nil {
			return p, fmt.Errorf("invalid %s: %w", key, err)
		}
		if d < 0 {
			return p, fmt.Errorf("invalid %s: must not be negative", key)
		}
		*dst = d
	}

	counts := map[string]*int{
		"poll_attempts":  &p.PollAttempts,
		"retry_attempts": &p.RetryAttempts,
	}
	for key, dst := range counts {
		v, ok := opts[key]
		if !ok {
			continue
		}
		n, err := cast.ToIntE(v)
		if err != nil {
			return p, fmt.Errorf("invalid %s: %w", key, err)
		}
		if n < 0 {
			return p, fmt.Errorf("invalid %s: must not be negative", key)
		}
		*dst = n
	}
	return p, nil
}

// Sleep waits for d or until ctx ends, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

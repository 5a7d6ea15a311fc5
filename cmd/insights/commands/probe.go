package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/orginsights/insights/pkg/config"
	"github.com/orginsights/insights/pkg/job"
	"github.com/orginsights/insights/pkg/probe"
)

// openProbe connects the configured page probe backend.
func openProbe(ctx context.Context, cfg config.BrowserConfig) (probe.Probe, error) {
	switch cfg.Driver {
	case "", "chromedp":
		p, err := probe.NewCDP(ctx, probe.CDPOptions{RemoteURL: cfg.RemoteURL, Headless: cfg.Headless, Logger: log.Logger})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "playwright":
		p, err := probe.NewPlaywright(probe.PlaywrightOptions{RemoteURL: cfg.RemoteURL, Headless: cfg.Headless, Logger: log.Logger})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Driver)
	}
}

// selectTab picks the run's target tab by id or URL substring.
func selectTab(ctx context.Context, p probe.Probe, match string) (probe.Tab, error) {
	tabs, err := p.Tabs(ctx)
	if err != nil {
		return probe.Tab{}, fmt.Errorf("list tabs: %w", err)
	}
	tab, err := probe.FindTab(tabs, match)
	if err != nil {
		return probe.Tab{}, fmt.Errorf("%w: %w", job.ErrNoTarget, err)
	}
	return tab, nil
}

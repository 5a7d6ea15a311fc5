// Copyright 2026 Insights Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// CDPOptions configures the Chrome DevTools backend.
type CDPOptions struct {
	// RemoteURL attaches to a running browser (the one holding the admin
	// session). When empty a local browser is launched.
	RemoteURL string
	Headless  bool
	Logger    zerolog.Logger
}

// CDP drives tabs over the Chrome DevTools Protocol using chromedp.
type CDP struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	logger        zerolog.Logger

	mu     sync.Mutex
	tabs   map[string]context.Context
	closed bool
}

// NewCDP connects to (or launches) a browser and returns a ready probe.
func NewCDP(ctx context.Context, opts CDPOptions) (*CDP, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	} else {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.DisableGPU,
			chromedp.NoSandbox,
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, allocOpts...)
	}

	logger := opts.Logger.With().Str("component", "probe.cdp").Logger()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) { logger.Debug().Msgf(format, args...) }),
	)
	// An empty Run allocates the browser connection.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	logger.Info().Str("remote", opts.RemoteURL).Msg("browser connected")
	return &CDP{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		logger:        logger,
		tabs:          make(map[string]context.Context),
	}, nil
}

// Tabs lists page targets.
func (c *CDP) Tabs(ctx context.Context) ([]Tab, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	infos, err := chromedp.Targets(c.browserCtx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	var tabs []Tab
	for _, info := range infos {
		if info.Type != "page" {
			continue
		}
		tabs = append(tabs, Tab{ID: string(info.TargetID), URL: info.URL, Title: info.Title})
	}
	return tabs, nil
}

// Eval runs call inside tab. Promises are awaited.
func (c *CDP) Eval(ctx context.Context, tab Tab, call Call, out any) error {
	tabCtx, err := c.attach(tab)
	if err != nil {
		return err
	}
	expr, err := call.Expression()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var raw []byte
	err = chromedp.Run(runCtx, chromedp.Evaluate(expr, &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true).WithReturnByValue(true)
	}))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var exc *runtime.ExceptionDetails
		if errors.As(err, &exc) {
			return fmt.Errorf("%w: %s: %s", ErrRoutine, call.Name, exc.Error())
		}
		return fmt.Errorf("%s: %w", call.Name, err)
	}
	return Decode(raw, out)
}

// Open creates a new tab at url. Closing the surface closes the tab.
func (c *CDP) Open(ctx context.Context, url string) (Surface, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	tabCtx, tabCancel := chromedp.NewContext(c.browserCtx)

	runCtx, cancel := context.WithCancel(tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		tabCancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("open %s: %w", url, err)
	}

	id := string(chromedp.FromContext(tabCtx).Target.TargetID)
	c.mu.Lock()
	c.tabs[id] = tabCtx
	c.mu.Unlock()

	c.logger.Debug().Str("tab", id).Str("url", url).Msg("auxiliary tab opened")
	return &cdpSurface{owner: c, tab: Tab{ID: id, URL: url}, cancel: tabCancel}, nil
}

// Close detaches from every tab and releases the browser connection.
func (c *CDP) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.tabs = map[string]context.Context{}
	c.mu.Unlock()

	c.browserCancel()
	c.allocCancel()
	return nil
}

func (c *CDP) check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// attach returns a chromedp context bound to an existing target. Contexts
// are cached for the probe's lifetime; chromedp does not close targets it
// merely attached to.
func (c *CDP) attach(tab Tab) (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if tab.IsZero() {
		return nil, fmt.Errorf("%w: empty tab reference", ErrTabNotFound)
	}
	if tabCtx, ok := c.tabs[tab.ID]; ok {
		return tabCtx, nil
	}
	tabCtx, _ := chromedp.NewContext(c.browserCtx, chromedp.WithTargetID(target.ID(tab.ID)))
	c.tabs[tab.ID] = tabCtx
	return tabCtx, nil
}

func (c *CDP) release(id string) {
	c.mu.Lock()
	delete(c.tabs, id)
	c.mu.Unlock()
}

type cdpSurface struct {
	owner  *CDP
	tab    Tab
	cancel context.CancelFunc
	once   sync.Once
}

func (s *cdpSurface) Tab() Tab { return s.tab }

func (s *cdpSurface) Close() error {
	s.once.Do(func() {
		s.owner.release(s.tab.ID)
		s.cancel()
		s.owner.logger.Debug().Str("tab", s.tab.ID).Msg("auxiliary tab closed")
	})
	return nil
}

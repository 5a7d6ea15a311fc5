// Copyright 2026 Insights Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"
)

// PlaywrightOptions configures the Playwright backend.
type PlaywrightOptions struct {
	// RemoteURL is a CDP endpoint; when set the probe attaches to that
	// browser instead of launching one.
	RemoteURL string
	Headless  bool
	Logger    zerolog.Logger
}

// Playwright drives pages through playwright-go.
type Playwright struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	logger  zerolog.Logger

	mu     sync.Mutex
	pages  map[string]playwright.Page
	ids    map[playwright.Page]string
	nextID int
	closed bool
}

// NewPlaywright starts the Playwright driver and connects to a browser.
func NewPlaywright(opts PlaywrightOptions) (*Playwright, error) {
	pw, err := playwright.Run(&playwright.RunOptions{
		SkipInstallBrowsers: opts.RemoteURL != "",
	})
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	var browser playwright.Browser
	if opts.RemoteURL != "" {
		browser, err = pw.Chromium.ConnectOverCDP(opts.RemoteURL)
	} else {
		browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(opts.Headless),
		})
	}
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	logger := opts.Logger.With().Str("component", "probe.playwright").Logger()
	logger.Info().Str("remote", opts.RemoteURL).Msg("browser connected")
	return &Playwright{
		pw:      pw,
		browser: browser,
		logger:  logger,
		pages:   make(map[string]playwright.Page),
		ids:     make(map[playwright.Page]string),
	}, nil
}

// Tabs lists every page of every browser context. IDs are assigned on first
// sight and stay stable for the probe's lifetime.
func (p *Playwright) Tabs(ctx context.Context) ([]Tab, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}

	var tabs []Tab
	for _, bc := range p.browser.Contexts() {
		for _, page := range bc.Pages() {
			title, _ := page.Title()
			tabs = append(tabs, Tab{ID: p.idFor(page), URL: page.URL(), Title: title})
		}
	}
	return tabs, nil
}

// Eval runs call on the page behind tab.
func (p *Playwright) Eval(ctx context.Context, tab Tab, call Call, out any) error {
	page, err := p.page(tab)
	if err != nil {
		return err
	}
	expr, err := call.Expression()
	if err != nil {
		return err
	}

	type result struct {
		value any
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := page.Evaluate(expr)
		done <- result{value: v, err: err}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-done:
		if res.err != nil {
			return evalError(call.Name, res.err, page.IsClosed())
		}
		raw, err := json.Marshal(res.value)
		if err != nil {
			return fmt.Errorf("encode %s result: %w", call.Name, err)
		}
		return Decode(raw, out)
	}
}

// evalError maps a failed page.Evaluate onto the probe errors. Only an
// exception raised by the script is ErrRoutine; a closed page is ErrClosed
// and timeouts or transport failures pass through wrapped.
func evalError(name string, err error, pageClosed bool) error {
	if pageClosed || errors.Is(err, playwright.ErrTargetClosed) {
		return fmt.Errorf("%w: %s: %v", ErrClosed, name, err)
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%s: %w", name, err)
	}
	var scriptErr *playwright.Error
	if errors.As(err, &scriptErr) {
		return fmt.Errorf("%w: %s: %s", ErrRoutine, name, scriptErr.Message)
	}
	return fmt.Errorf("%s: %w", name, err)
}

// Open creates a page in the first browser context.
func (p *Playwright) Open(ctx context.Context, url string) (Surface, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	var (
		bc  playwright.BrowserContext
		err error
	)
	if contexts := p.browser.Contexts(); len(contexts) > 0 {
		bc = contexts[0]
	} else if bc, err = p.browser.NewContext(); err != nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("new browser context: %w", err)
	}
	p.mu.Unlock()

	page, err := bc.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	surface := &playwrightSurface{owner: p, page: page}

	nav := make(chan error, 1)
	go func() {
		_, err := page.Goto(url, playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateDomcontentloaded})
		nav <- err
	}()
	select {
	case <-ctx.Done():
		_ = surface.Close()
		return nil, ctx.Err()
	case err := <-nav:
		if err != nil {
			_ = surface.Close()
			return nil, fmt.Errorf("open %s: %w", url, err)
		}
	}

	p.mu.Lock()
	surface.tab = Tab{ID: p.idFor(page), URL: url}
	p.mu.Unlock()
	p.logger.Debug().Str("tab", surface.tab.ID).Str("url", url).Msg("auxiliary page opened")
	return surface, nil
}

// Close disconnects from the browser and stops the driver.
func (p *Playwright) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if err := p.browser.Close(); err != nil {
		p.logger.Warn().Err(err).Msg("browser close failed")
	}
	return p.pw.Stop()
}

func (p *Playwright) page(tab Tab) (playwright.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	page, ok := p.pages[tab.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTabNotFound, tab.ID)
	}
	return page, nil
}

// idFor must be called with p.mu held.
func (p *Playwright) idFor(page playwright.Page) string {
	if id, ok := p.ids[page]; ok {
		return id
	}
	p.nextID++
	id := fmt.Sprintf("pw-%d", p.nextID)
	p.ids[page] = id
	p.pages[id] = page
	return id
}

func (p *Playwright) forget(page playwright.Page) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.ids[page]; ok {
		delete(p.pages, id)
		delete(p.ids, page)
	}
}

type playwrightSurface struct {
	owner *Playwright
	page  playwright.Page
	tab   Tab
	once  sync.Once
	err   error
}

func (s *playwrightSurface) Tab() Tab { return s.tab }

func (s *playwrightSurface) Close() error {
	s.once.Do(func() {
		s.owner.forget(s.page)
		s.err = s.page.Close()
	})
	return s.err
}

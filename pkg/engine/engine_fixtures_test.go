package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/orginsights/insights/pkg/probe"
	"github.com/orginsights/insights/pkg/probe/probetest"
)

// fakeModule is a scriptable module used across the engine tests.
type fakeModule struct {
	Base

	mu          sync.Mutex
	initCount   int
	validateErr error
	scrape      func(ctx context.Context, ec ExecutionContext) (any, error)
	format      func(raw any) string
	payload     func(raw any) any
}

func newFake(id, name string) *fakeModule {
	return &fakeModule{
		Base: NewBase(Descriptor{ID: id, Name: name, Version: "1.0.0"}),
		scrape: func(context.Context, ExecutionContext) (any, error) {
			return map[string]any{"id": id}, nil
		},
	}
}

func (m *fakeModule) Initialize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initCount++
}

func (m *fakeModule) Validate(ec ExecutionContext) error {
	if m.validateErr != nil {
		return m.validateErr
	}
	return m.Base.Validate(ec)
}

func (m *fakeModule) Scrape(ctx context.Context, ec ExecutionContext) (any, error) {
	return m.scrape(ctx, ec)
}

func (m *fakeModule) Format(raw any) string {
	if m.format != nil {
		return m.format(raw)
	}
	return fmt.Sprintf("%s\t%v", m.Descriptor().Name, raw)
}

func (m *fakeModule) StructuredPayload(raw any) any {
	if m.payload != nil {
		return m.payload(raw)
	}
	return raw
}

func (m *fakeModule) inits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initCount
}

func failing(id string, err error) *fakeModule {
	m := newFake(id, id)
	m.scrape = func(context.Context, ExecutionContext) (any, error) { return nil, err }
	return m
}

// eventLog records every event a run emits.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) OnEvent(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) all() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func (l *eventLog) kinds() []string {
	var out []string
	for _, e := range l.all() {
		if e.ModuleID != "" {
			out = append(out, string(e.Kind)+":"+e.ModuleID)
		} else {
			out = append(out, string(e.Kind))
		}
	}
	return out
}

func testContext(p probe.Probe) ExecutionContext {
	return ExecutionContext{Probe: p, Tab: probetest.DefaultTab, Customer: "Acme"}
}

var errLinkNotFound = errors.New("link not found")

func fastOrchestrator() *Orchestrator {
	return NewOrchestrator(testLogger()).WithModuleDelay(0).WithDefaultTimeout(2 * time.Second)
}

func probeCall(name string) probe.Call {
	return probe.Call{Name: name, Script: "() => null"}
}

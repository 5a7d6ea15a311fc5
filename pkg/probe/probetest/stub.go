// Package probetest provides a scripted in-memory probe.Probe for tests.
package probetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/orginsights/insights/pkg/probe"
)

// Handler answers one routine call.
type Handler func(ctx context.Context, tab probe.Tab, call probe.Call) (any, error)

// Record is one observed Eval.
type Record struct {
	Tab  probe.Tab
	Name string
	Args any
}

// DefaultTab is the tab returned by Tabs when none were configured.
var DefaultTab = probe.Tab{ID: "tab-1", URL: "https://example.my.salesforce-setup.com/lightning/setup/SetupOneHome/home", Title: "Setup"}

// Stub is a probe whose routines are answered by registered handlers.
// Unknown routines fail with an error naming the routine.
type Stub struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []Record
	tabs     []probe.Tab
	openErr  error
	opened   int
	closed   int
	nextID   int
	shut     bool
}

// New returns an empty stub.
func New() *Stub {
	return &Stub{handlers: make(map[string]Handler)}
}

// On registers h for routine name.
func (s *Stub) On(name string, h Handler) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = h
	return s
}

// Return answers routine name with v.
func (s *Stub) Return(name string, v any) *Stub {
	return s.On(name, func(context.Context, probe.Tab, probe.Call) (any, error) { return v, nil })
}

// Fail answers routine name with err.
func (s *Stub) Fail(name string, err error) *Stub {
	return s.On(name, func(context.Context, probe.Tab, probe.Call) (any, error) { return nil, err })
}

// Sequence answers successive calls with values in order, repeating the last one.
func (s *Stub) Sequence(name string, values ...any) *Stub {
	var (
		mu sync.Mutex
		i  int
	)
	return s.On(name, func(context.Context, probe.Tab, probe.Call) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		v := values[i]
		if i < len(values)-1 {
			i++
		}
		return v, nil
	})
}

// Block makes routine name hang until the caller's context ends.
func (s *Stub) Block(name string) *Stub {
	return s.On(name, func(ctx context.Context, _ probe.Tab, _ probe.Call) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
}

// WithTabs sets the tabs reported by Tabs.
func (s *Stub) WithTabs(tabs ...probe.Tab) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs = tabs
	return s
}

// FailOpen makes Open return err.
func (s *Stub) FailOpen(err error) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openErr = err
	return s
}

// Eval dispatches call to its handler and round-trips the result through
// JSON the way a browser would.
func (s *Stub) Eval(ctx context.Context, tab probe.Tab, call probe.Call, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.shut {
		s.mu.Unlock()
		return probe.ErrClosed
	}
	s.calls = append(s.calls, Record{Tab: tab, Name: call.Name, Args: call.Args})
	h, ok := s.handlers[call.Name]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: no handler for %s", probe.ErrRoutine, call.Name)
	}
	v, err := h(ctx, tab, call)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return probe.Decode(raw, out)
}

// Open returns a new auxiliary surface and counts it as open until closed.
func (s *Stub) Open(ctx context.Context, url string) (probe.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.nextID++
	s.opened++
	return &surface{owner: s, tab: probe.Tab{ID: fmt.Sprintf("aux-%d", s.nextID), URL: url}}, nil
}

// Tabs returns the configured tabs, or DefaultTab.
func (s *Stub) Tabs(ctx context.Context) ([]probe.Tab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tabs) == 0 {
		return []probe.Tab{DefaultTab}, nil
	}
	return append([]probe.Tab(nil), s.tabs...), nil
}

// Close marks the stub closed.
func (s *Stub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shut = true
	return nil
}

// Calls returns a copy of every recorded Eval.
func (s *Stub) Calls() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.calls...)
}

// Names returns the routine names in call order.
func (s *Stub) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.calls))
	for i, c := range s.calls {
		names[i] = c.Name
	}
	return names
}

// Count returns how often routine name was called.
func (s *Stub) Count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

// Opened is the number of surfaces ever opened.
func (s *Stub) Opened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// Leaked is the number of surfaces opened but not closed.
func (s *Stub) Leaked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened - s.closed
}

type surface struct {
	owner *Stub
	tab   probe.Tab
	once  sync.Once
}

func (f *surface) Tab() probe.Tab { return f.tab }

func (f *surface) Close() error {
	f.once.Do(func() {
		f.owner.mu.Lock()
		f.owner.closed++
		f.owner.mu.Unlock()
	})
	return nil
}

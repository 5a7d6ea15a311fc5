package engine

import "time"

// EventKind names a lifecycle event emitted by the orchestrator.
type EventKind string

const (
	EventModuleStarted   EventKind = "module-started"
	EventModuleProgress  EventKind = "module-progress"
	EventModuleCompleted EventKind = "module-completed"
	EventModuleError     EventKind = "module-error"
	EventRunComplete     EventKind = "run-complete"
)

// Event is one lifecycle notification. Fields not relevant to Kind are zero.
type Event struct {
	Kind       EventKind
	ModuleID   string
	ModuleName string
	Current    int // 1-based position of the module in the run
	Total      int
	Percentage int // module-reported value clamped to 0..100
	Status     string
	Result     *Result
	Err        error
	Results    []Result
	Timestamp  time.Time
}

// EventSink receives events. OnEvent is called synchronously from the run
// loop; the loop does not continue until it returns.
type EventSink interface {
	OnEvent(Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event)

func (f SinkFunc) OnEvent(e Event) { f(e) }

// Discard drops every event.
var Discard EventSink = SinkFunc(func(Event) {})

// Sinks fans an event out to several sinks in order.
type Sinks []EventSink

func (s Sinks) OnEvent(e Event) {
	for _, sink := range s {
		if sink != nil {
			sink.OnEvent(e)
		}
	}
}

// Copyright 2026 Insights Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package output fans run events out to the CLI, the log and the run folder.
package output

import (
	"sync"

	"github.com/orginsights/insights/pkg/engine"
)

// Subscriber handles run events.
// Subscribers implement one rendering or persistence concern each
// (structured log, terminal progress, files on disk).
type Subscriber interface {
	// Handle processes an event.
	// Called synchronously by Stream.OnEvent.
	Handle(event engine.Event)

	// Name returns a unique identifier for this subscriber.
	Name() string

	// ShouldHandle decides if this subscriber cares about this event.
	ShouldHandle(event engine.Event) bool
}

// Stream is a minimal, synchronous event dispatcher. It is an
// engine.EventSink, so the orchestrator (or the job gate in front of it)
// can emit into it directly.
//
// Dispatch is synchronous to keep terminal output in emission order.
type Stream struct {
	subscribers []Subscriber
	mu          sync.RWMutex
}

// NewStream creates a stream with no subscribers.
func NewStream(subs ...Subscriber) *Stream {
	s := &Stream{subscribers: make([]Subscriber, 0, 4)}
	for _, sub := range subs {
		s.Subscribe(sub)
	}
	return s
}

// Subscribe registers a subscriber. Subscribers are called in registration
// order. Nil subscribers are ignored.
func (s *Stream) Subscribe(sub Subscriber) {
	if sub == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, sub)
}

// OnEvent dispatches an event to every subscriber whose ShouldHandle
// accepts it.
func (s *Stream) OnEvent(event engine.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscribers {
		if sub.ShouldHandle(event) {
			sub.Handle(event)
		}
	}
}

// SubscriberCount returns the number of registered subscribers.
func (s *Stream) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

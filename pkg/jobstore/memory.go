package jobstore

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Records live as long as the process.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
	closed  bool
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

// Put stores rec. A cancel flag already raised for the job is kept.
func (m *Memory) Put(_ context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if prev, ok := m.records[rec.ID]; ok && prev.Cancelled {
		rec.Cancelled = true
	}
	m.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Record{}, ErrClosed
	}
	rec, ok := m.records[id]
	if !ok {
		return Record{}, &NotFoundError{JobID: id}
	}
	return cloneRecord(rec), nil
}

func (m *Memory) Cancel(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	rec, ok := m.records[id]
	if !ok {
		return &NotFoundError{JobID: id}
	}
	rec.Cancelled = true
	m.records[id] = rec
	return nil
}

func (m *Memory) Cancelled(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrClosed
	}
	rec, ok := m.records[id]
	if !ok {
		return false, &NotFoundError{JobID: id}
	}
	return rec.Cancelled, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func cloneRecord(r Record) Record {
	if r.Modules != nil {
		r.Modules = append([]string(nil), r.Modules...)
	}
	return r
}

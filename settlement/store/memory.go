// Package store provides in-memory SessionStore and EventLog implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/settlement-engine/settlement"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	snapshots map[string]settlement.Snapshot
	events    map[string][]settlement.Event
}

func NewMemory() *Memory {
	return &Memory{
		snapshots: make(map[string]settlement.Snapshot),
		events:    make(map[string][]settlement.Event),
	}
}

var (
	_ settlement.SessionStore = (*Memory)(nil)
	_ settlement.EventLog     = (*Memory)(nil)
)

// Save stores a copy of snap, replacing any earlier one.
func (m *Memory) Save(_ context.Context, snap settlement.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.Lines = append([]settlement.PayableLine(nil), snap.Lines...)
	m.snapshots[snap.ID] = snap
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*settlement.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[id]
	if !ok {
		return nil, settlement.ErrSessionNotFound
	}
	snap.Lines = append([]settlement.PayableLine(nil), snap.Lines...)
	return &snap, nil
}

func (m *Memory) List(_ context.Context) ([]settlement.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]settlement.Snapshot, 0, len(m.snapshots))
	for _, snap := range m.snapshots {
		result = append(result, snap)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, id)
	delete(m.events, id)
	return nil
}

// AppendEvent adds e to its session's history. Append-only.
func (m *Memory) AppendEvent(_ context.Context, e settlement.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.SessionID] = append(m.events[e.SessionID], e)
	return nil
}

func (m *Memory) Events(_ context.Context, sessionID string) ([]settlement.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]settlement.Event, len(m.events[sessionID]))
	copy(result, m.events[sessionID])
	return result, nil
}

// Reset drops every session and event.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = make(map[string]settlement.Snapshot)
	m.events = make(map[string][]settlement.Event)
	return nil
}

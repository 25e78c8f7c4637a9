package userdata

import (
	"context"
	"sync"
)

// MemoryAdapter is an in-memory persistence backend.
// It is the default for tests and for the guest store in ephemeral
// deployments where device state lives on the client.
type MemoryAdapter struct {
	mu      sync.RWMutex
	records map[string]*Record
	closed  bool
}

// NewMemoryAdapter creates a new in-memory adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		records: make(map[string]*Record),
	}
}

// Load retrieves the record for an identity, or (nil, nil) if absent.
func (m *MemoryAdapter) Load(ctx context.Context, identityID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrAdapterClosed{}
	}

	rec, ok := m.records[identityID]
	if !ok {
		return nil, nil
	}

	// Clone so callers can't mutate stored state.
	return rec.Clone(), nil
}

// Save stores a copy of the record for an identity.
func (m *MemoryAdapter) Save(ctx context.Context, identityID string, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrAdapterClosed{}
	}

	m.records[identityID] = rec.Clone()
	return nil
}

// Delete removes the record for an identity.
func (m *MemoryAdapter) Delete(ctx context.Context, identityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrAdapterClosed{}
	}

	delete(m.records, identityID)
	return nil
}

// Close shuts down the adapter and releases resources.
func (m *MemoryAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	m.records = nil
	return nil
}

// Count returns the number of stored records.
// This is for monitoring/testing purposes.
func (m *MemoryAdapter) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

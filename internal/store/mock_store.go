// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu        sync.RWMutex
	exchanges map[string]*Exchange

	// SaveErr, when set, is returned by SaveExchange
	SaveErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		exchanges: make(map[string]*Exchange),
	}
}

// SaveExchange records a completed chat round trip
func (m *MockStore) SaveExchange(ctx context.Context, ex *Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}

	stored := *ex
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	m.exchanges[stored.ID] = &stored
	return nil
}

// GetExchange retrieves an exchange by ID
func (m *MockStore) GetExchange(ctx context.Context, id string) (*Exchange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ex, ok := m.exchanges[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *ex
	return &copied, nil
}

// RecentExchanges returns the most recent exchanges, newest first
func (m *MockStore) RecentExchanges(ctx context.Context, limit int) ([]*Exchange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*Exchange, 0, len(m.exchanges))
	for _, ex := range m.exchanges {
		copied := *ex
		all = append(all, &copied)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// CountExchanges returns the total number of recorded exchanges
func (m *MockStore) CountExchanges(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.exchanges), nil
}

// Close is a no-op for the mock store
func (m *MockStore) Close() error {
	return nil
}

package storage

import (
	"sync"

	"habithub/internal/hub"
)

// MemoryPersister keeps the snapshot in memory. Useful for testing.
// This implementation is safe for concurrent use.
type MemoryPersister struct {
	mu       sync.Mutex
	accounts []*hub.Account
	saves    int
	failWith error
}

// NewMemoryPersister creates an empty in-memory persister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

// Load returns copies of the last saved snapshot.
func (m *MemoryPersister) Load() ([]*hub.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.accounts), nil
}

// Save stores copies of accounts, or returns the error set by FailSaves.
func (m *MemoryPersister) Save(accounts []*hub.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return m.failWith
	}
	m.accounts = cloneAll(accounts)
	m.saves++
	return nil
}

// FailSaves makes every following Save return err. Pass nil to recover.
func (m *MemoryPersister) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Saves returns the number of successful saves.
func (m *MemoryPersister) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *MemoryPersister) Close() error {
	return nil
}

func cloneAll(accounts []*hub.Account) []*hub.Account {
	out := make([]*hub.Account, len(accounts))
	for i, a := range accounts {
		out[i] = a.Clone()
	}
	return out
}

var _ hub.Persister = (*MemoryPersister)(nil)

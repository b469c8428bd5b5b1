package syncer

import (
	"context"
	"sync"
)

// MemoryStates - domyślne repozytorium (jeden proces)
type MemoryStates struct {
	mu     sync.Mutex
	states map[string]*SyncState
}

func NewMemoryStates() *MemoryStates {
	return &MemoryStates{states: map[string]*SyncState{}}
}

func (m *MemoryStates) Load(_ context.Context, key string) (*SyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[key]
	if !ok {
		return nil, ErrStateNotFound
	}
	return st.clone(), nil
}

func (m *MemoryStates) Save(_ context.Context, key string, st *SyncState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var current int64
	if cur, ok := m.states[key]; ok {
		current = cur.Version
	}
	if current != st.Version {
		return ErrVersionConflict
	}
	st.Version++
	m.states[key] = st.clone()
	return nil
}

func (m *MemoryStates) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, key)
	return nil
}

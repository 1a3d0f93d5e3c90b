package envstore

import (
	"context"
	"sync"

	"vendor-onboarding/internal/onboarding/variables"
)

// Memory keeps environment documents in process. It backs the "memory"
// storage backend when no Redis is configured; documents do not expire.
type Memory struct {
	mu   sync.Mutex
	docs map[string]*variables.Store
}

func NewMemory() *Memory {
	return &Memory{docs: map[string]*variables.Store{}}
}

func (m *Memory) Save(_ context.Context, workflowID string, doc *variables.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[workflowID] = doc.Clone()
	return nil
}

func (m *Memory) Load(_ context.Context, workflowID string) (*variables.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc, ok := m.docs[workflowID]; ok {
		return doc.Clone(), nil
	}
	return nil, nil
}

// Update runs fn while holding the lock, so it sees every earlier write.
func (m *Memory) Update(_ context.Context, workflowID string, fn func(current *variables.Store) (*variables.Store, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var current *variables.Store
	if doc, ok := m.docs[workflowID]; ok {
		current = doc.Clone()
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	m.docs[workflowID] = next.Clone()
	return nil
}

func (m *Memory) Delete(_ context.Context, workflowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, workflowID)
	return nil
}

func (m *Memory) Health(context.Context) error { return nil }

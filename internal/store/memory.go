package store

import "sync"

// Memory is an in-memory store for testing.
type Memory struct {
	mu    sync.RWMutex
	data  map[string]string
	order []string
}

// NewMemory creates a new in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]string),
	}
}

// Get retrieves a script source by name.
func (m *Memory) Get(name string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src, ok := m.data[name]
	return src, ok, nil
}

// Put stores a script source by name.
func (m *Memory) Put(name, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[name]; !ok {
		m.order = append(m.order, name)
	}
	m.data[name] = source
	return nil
}

// Delete removes a script by name.
func (m *Memory) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[name]; !ok {
		return nil
	}
	delete(m.data, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns all persisted scripts in insertion order.
func (m *Memory) List() ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]Entry, 0, len(m.order))
	for _, name := range m.order {
		entries = append(entries, Entry{Name: name, Source: m.data[name]})
	}
	return entries, nil
}

// Close is a no-op for memory store.
func (m *Memory) Close() error {
	return nil
}

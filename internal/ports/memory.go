package ports

import (
	"context"
	"sync"
)

// Memory keeps allocations in process memory. State is lost on exit.
type Memory struct {
	mu     sync.Mutex
	byKey  map[string]int
	byPort map[int]string
	rnd    func(n int) int
}

// NewMemory returns an empty in-memory allocator.
func NewMemory() *Memory {
	return &Memory{byKey: map[string]int{}, byPort: map[int]string{}, rnd: defaultRand}
}

// Allocate implements Allocator.
func (m *Memory) Allocate(ctx context.Context, key string, r Range) (int, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	if err := r.validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if port, ok := m.byKey[key]; ok {
		if r.contains(port) {
			return port, nil
		}
		delete(m.byPort, port)
		delete(m.byKey, key)
	}
	return probe(ctx, r, m.rnd, func(_ context.Context, port int) (bool, error) {
		if _, taken := m.byPort[port]; taken {
			return false, nil
		}
		m.byPort[port] = key
		m.byKey[key] = port
		return true, nil
	})
}

// Snapshot returns a copy of the current allocations.
func (m *Memory) Snapshot() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.byKey))
	for k, v := range m.byKey {
		out[k] = v
	}
	return out
}

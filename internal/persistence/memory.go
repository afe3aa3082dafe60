package persistence

import (
	"context"
	"sync"
)

// MemoryBackend keeps blobs in process memory. With a non-zero capacity it
// refuses writes that would push the total stored size past it, the way a
// browser's local storage does.
type MemoryBackend struct {
	mu       sync.RWMutex
	data     map[string][]byte
	capacity int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func NewMemoryBackendWithCapacity(capacity int) *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte), capacity: capacity}
}

func (m *MemoryBackend) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	blob, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

func (m *MemoryBackend) Save(ctx context.Context, key string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.capacity > 0 {
		used := 0
		for k, v := range m.data {
			if k != key {
				used += len(v)
			}
		}
		if used+len(blob) > m.capacity {
			return ErrQuotaExceeded
		}
	}

	stored := make([]byte, len(blob))
	copy(stored, blob)
	m.data[key] = stored
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

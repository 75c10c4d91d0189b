package notify

import (
	"context"
	"slices"
	"sync"
)

var _ Registry = (*MemoryRegistry)(nil)

// MemoryRegistry keeps connection ids in process memory. It suits a single
// api-server instance.
type MemoryRegistry struct {
	mu    sync.RWMutex
	conns map[string]struct{}
}

// NewMemoryRegistry returns an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{conns: make(map[string]struct{})}
}

func (r *MemoryRegistry) Add(_ context.Context, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[connID] = struct{}{}
	return nil
}

func (r *MemoryRegistry) Remove(_ context.Context, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, connID)
	return nil
}

// List returns connection ids in sorted order.
func (r *MemoryRegistry) List(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.conns))
	for id := range r.conns {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

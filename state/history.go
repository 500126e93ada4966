package state

import (
	"slices"
	"sync"
)

// MetricHistory is the append-only record of published metric stores. It is owned by the probe service,
// other components only read from it.
type MetricHistory struct {
	mu     sync.RWMutex
	stores []*MetricStore
}

func (h *MetricHistory) Append(m *MetricStore) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stores = append(h.stores, m)
}

// Latest returns the most recently published store, or nil if nothing has been published.
func (h *MetricHistory) Latest() *MetricStore {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.stores) == 0 {
		return nil
	}
	return h.stores[len(h.stores)-1]
}

func (h *MetricHistory) All() []*MetricStore {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.stores)
}

func (h *MetricHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.stores)
}

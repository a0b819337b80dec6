package history

import (
	"context"
	"sync"

	"focusdojo/internal/puzzle"
)

// MemoryLedger keeps summaries in insertion order and reads them reversed.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries []puzzle.Summary
}

func NewMemory() *MemoryLedger { return &MemoryLedger{} }

func (m *MemoryLedger) Record(_ context.Context, s puzzle.Summary) error {
	s.Markers = append([]puzzle.Marker(nil), s.Markers...)
	m.mu.Lock()
	m.entries = append(m.entries, s)
	m.mu.Unlock()
	return nil
}

func (m *MemoryLedger) All(_ context.Context) ([]puzzle.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]puzzle.Summary, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0; i-- {
		s := m.entries[i]
		s.Markers = append([]puzzle.Marker(nil), s.Markers...)
		out = append(out, s)
	}
	return out, nil
}

func (m *MemoryLedger) Stats(ctx context.Context) (Stats, error) {
	all, _ := m.All(ctx)
	return computeStats(all), nil
}

func (m *MemoryLedger) Close() error { return nil }

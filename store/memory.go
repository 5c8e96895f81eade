package store

import (
	"context"
	"sort"
	"sync"

	"github.com/strangelove-ventures/cctp-bridge/types"
)

// MemoryStore keeps records for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*types.TransferRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*types.TransferRecord)}
}

func (m *MemoryStore) Save(_ context.Context, rec *types.TransferRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkStale(m.records[rec.ID], rec); err != nil {
		return err
	}
	m.records[rec.ID] = rec.Clone()
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id string) (*types.TransferRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, types.ErrTransferNotFound
	}
	return rec.Clone(), nil
}

// ListByStatus returns matching records oldest first. No statuses matches all.
func (m *MemoryStore) ListByStatus(_ context.Context, statuses ...types.Status) ([]*types.TransferRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.TransferRecord
	for _, rec := range m.records {
		if matches(rec.Status, statuses) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Created.Before(out[j].Created)
	})
	return out, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

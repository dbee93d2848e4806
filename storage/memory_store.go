package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"olx-car-scraper/models"
)

// MemoryStore keeps records in process. It backs dry runs and tests.
// It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.ListingRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*models.ListingRecord)}
}

func (m *MemoryStore) FindByExternalID(ctx context.Context, id string) (*models.ListingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records[id].Clone(), nil
}

func (m *MemoryStore) Upsert(ctx context.Context, rec *models.ListingRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := rec.Clone()
	if existing, ok := m.records[rec.ExternalID]; ok {
		stored.FirstSeenAt = existing.FirstSeenAt
	}
	m.records[rec.ExternalID] = stored
	return nil
}

func (m *MemoryStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, rec := range m.records {
		if rec.LastSeenAt.Before(cutoff) {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) DeactivateOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, rec := range m.records {
		if rec.Active && rec.LastSeenAt.Before(cutoff) {
			rec.Active = false
			n++
		}
	}
	return n, nil
}

// List mirrors SQLStore.List ordering: newest first, then by id.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]*models.ListingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]*models.ListingRecord, 0, len(m.records))
	for _, rec := range m.records {
		if filter.ActiveOnly && !rec.Active {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(rec.Title), query) {
			continue
		}
		out = append(out, rec.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].FirstSeenAt.Equal(out[j].FirstSeenAt) {
			return out[i].FirstSeenAt.After(out[j].FirstSeenAt)
		}
		return out[i].ExternalID < out[j].ExternalID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// Len reports how many records are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

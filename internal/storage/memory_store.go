package storage

import (
	"context"
	"strings"
	"sync"

	"topolens/internal/models"
)

// MemoryStore implements Store with a plain map. Used in tests and when no
// durable store is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]*models.Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]*models.Snapshot)}
}

func (s *MemoryStore) SaveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	cp := *snap
	s.mu.Lock()
	s.snaps[snap.Key()] = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetSnapshot(ctx context.Context, network, name string) (*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[models.SnapshotKey(network, name)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *snap
	return &cp, nil
}

func (s *MemoryStore) DeleteSnapshot(ctx context.Context, network, name string) error {
	key := models.SnapshotKey(network, name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snaps[key]; !ok {
		return ErrNotFound
	}
	delete(s.snaps, key)
	return nil
}

func (s *MemoryStore) ListSnapshots(ctx context.Context, network string) ([]*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Snapshot
	for key, snap := range s.snaps {
		if network != "" && !strings.HasPrefix(key, network+"/") {
			continue
		}
		cp := *snap
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

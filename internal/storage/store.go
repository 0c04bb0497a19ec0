package storage

import (
	"context"
	"errors"

	"topolens/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
)

// Store is the key-value contract behind the snapshot registry (kept
// minimal, allows swapping implementations).
type Store interface {
	SaveSnapshot(ctx context.Context, s *models.Snapshot) error
	GetSnapshot(ctx context.Context, network, name string) (*models.Snapshot, error)
	// ListSnapshots returns every stored snapshot, optionally restricted to
	// one network. DELETED records are included; visibility filtering is the
	// registry's job.
	ListSnapshots(ctx context.Context, network string) ([]*models.Snapshot, error)
	// DeleteSnapshot physically removes a record. The registry uses it only
	// to compact records already marked DELETED.
	DeleteSnapshot(ctx context.Context, network, name string) error
	Close() error
}

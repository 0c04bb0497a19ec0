package storage

import (
	"context"
	"encoding/json"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"

	"topolens/internal/models"
)

// BadgerStore implements Store with Badger DB.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(path string) (Store, error) {
	opts := badger.DefaultOptions(filepath.Clean(path))
	opts.Logger = nil                         // disable badger logs for test clarity
	opts = opts.WithValueLogFileSize(1 << 20) // smaller value log for local dev
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func snapshotKey(network, name string) []byte {
	return []byte("snapshot:" + models.SnapshotKey(network, name))
}

func (s *BadgerStore) SaveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	return s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		return txn.Set(snapshotKey(snap.Network, snap.Name), data)
	})
}

func (s *BadgerStore) GetSnapshot(ctx context.Context, network, name string) (*models.Snapshot, error) {
	var out models.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(network, name))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &out)
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *BadgerStore) DeleteSnapshot(ctx context.Context, network, name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := snapshotKey(network, name)
		if _, err := txn.Get(key); err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
}

func (s *BadgerStore) ListSnapshots(ctx context.Context, network string) ([]*models.Snapshot, error) {
	prefix := []byte("snapshot:")
	if network != "" {
		// key layout is "snapshot:<network>/<name>"
		prefix = []byte("snapshot:" + network + "/")
	}
	var out []*models.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(func(v []byte) error {
				var snap models.Snapshot
				if err := json.Unmarshal(v, &snap); err != nil {
					return err
				}
				out = append(out, &snap)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

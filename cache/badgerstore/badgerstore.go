package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RogueTeam/remit/cache"
	badger "github.com/dgraph-io/badger/v4"
)

// Attempts made when concurrent writers conflict on the same key
const MaxConflictRetries = 5

// Store persists cache entries in badger using native entry TTLs
type Store struct {
	db *badger.DB
}

var _ cache.Store = (*Store)(nil)

func New(db *badger.DB) (s *Store) {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, key string) (value []byte, err error) {
	err = s.db.View(func(txn *badger.Txn) (err error) {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case err == nil:
		return value, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, fmt.Errorf("%w: %s", cache.ErrNotFound, key)
	default:
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (err error) {
	err = s.db.Update(func(txn *badger.Txn) (err error) {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) (err error) {
	err = s.db.Update(func(txn *badger.Txn) (err error) {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

func (s *Store) update(key string, fn cache.UpdateFunc) (err error) {
	return s.db.Update(func(txn *badger.Txn) (err error) {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		current, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("failed to copy value: %w", err)
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		entry := badger.NewEntry([]byte(key), next)
		entry.ExpiresAt = item.ExpiresAt()
		return txn.SetEntry(entry)
	})
}

func (s *Store) Update(ctx context.Context, key string, fn cache.UpdateFunc) (err error) {
	for range MaxConflictRetries {
		err = s.update(key, fn)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return fmt.Errorf("%w: %s", cache.ErrNotFound, key)
	default:
		return err
	}
}

// Purge drops keys whose newest version already expired. badger hides them
// from reads, this only reclaims them eagerly
func (s *Store) Purge(ctx context.Context, prefix string) (purged int, err error) {
	now := uint64(time.Now().Unix())

	var expired [][]byte
	err = s.db.View(func(txn *badger.Txn) (err error) {
		options := badger.DefaultIteratorOptions
		options.Prefix = []byte(prefix)
		options.PrefetchValues = false
		options.AllVersions = true
		it := txn.NewIterator(options)
		defer it.Close()

		var last []byte
		for it.Rewind(); it.ValidForPrefix(options.Prefix); it.Next() {
			item := it.Item()
			if string(item.Key()) == string(last) {
				continue
			}
			last = item.KeyCopy(nil)

			if item.ExpiresAt() == 0 || item.ExpiresAt() > now {
				continue
			}
			expired = append(expired, last)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan expired keys: %w", err)
	}

	for _, key := range expired {
		var deleted bool
		err = s.db.Update(func(txn *badger.Txn) (err error) {
			_, err = txn.Get(key)
			switch {
			case err == nil:
				// Rewritten since the scan
				return nil
			case !errors.Is(err, badger.ErrKeyNotFound):
				return err
			}
			deleted = true
			return txn.Delete(key)
		})
		if err != nil {
			return purged, fmt.Errorf("failed to purge key: %w", err)
		}
		if deleted {
			purged++
		}
	}
	return purged, nil
}

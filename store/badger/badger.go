// Package badger provides a persistent single-host store.Store on BadgerDB.
//
// Nodes and parent/child links are stored as separate keys so that listing
// children is a prefix scan. Locks are held in an in-process lock.Table and
// therefore only coordinate goroutines sharing the same Store; expose the store
// through the coordination server to coordinate across processes.
package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/jathurchan/casecoord/lock"
	"github.com/jathurchan/casecoord/logger"
	"github.com/jathurchan/casecoord/store"
)

const maxConflictRetries = 5

// Config holds the settings decoded from the store.badger configuration section.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string `mapstructure:"path" yaml:"path" validate:"required_without=InMemory"`

	// InMemory keeps all data in memory; nothing is persisted.
	InMemory bool `mapstructure:"in_memory" yaml:"in_memory"`

	// SyncWrites fsyncs every write.
	SyncWrites bool `mapstructure:"sync_writes" yaml:"sync_writes"`
}

// Store implements store.Store on BadgerDB.
type Store struct {
	mu     sync.RWMutex
	db     *badger.DB
	closed bool

	locks  *lock.Table
	logger logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLockTable shares an existing lock table instead of creating one.
func WithLockTable(t *lock.Table) Option {
	return func(s *Store) {
		if t != nil {
			s.locks = t
		}
	}
}

// New opens (or creates) the database described by cfg.
func New(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var bopts badger.Options
	if cfg.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger store: path is required")
		}
		bopts = badger.DefaultOptions(cfg.Path)
	}
	bopts = bopts.
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None).
		WithSyncWrites(cfg.SyncWrites)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.Path, err)
	}

	s := &Store{db: db, logger: logger.NewNoOpLogger()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("badger-store")
	if s.locks == nil {
		s.locks = lock.NewTable(lock.WithLogger(s.logger))
	}

	if err := s.ensureRoot(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Infow("badger store opened", "path", cfg.Path, "in_memory", cfg.InMemory)
	return s, nil
}

func (s *Store) ensureRoot() error {
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(keyNode("/"))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return txn.Set(keyNode("/"), nil)
		}
		return err
	})
}

// begin takes the read side of the close guard and validates the request.
func (s *Store) begin(ctx context.Context, path string) error {
	s.mu.RLock()
	if err := ctx.Err(); err != nil {
		s.mu.RUnlock()
		return err
	}
	if s.closed {
		s.mu.RUnlock()
		return store.ErrClosed
	}
	if err := store.ValidatePath(path); err != nil {
		s.mu.RUnlock()
		return err
	}
	return nil
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range maxConflictRetries {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func exists(txn *badger.Txn, path string) (bool, error) {
	_, err := txn.Get(keyNode(path))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

// CreateNode implements store.Store.
func (s *Store) CreateNode(ctx context.Context, path string, data []byte) error {
	if err := s.begin(ctx, path); err != nil {
		return err
	}
	defer s.mu.RUnlock()

	return s.update(func(txn *badger.Txn) error {
		found, err := exists(txn, path)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: %s", store.ErrNodeExists, path)
		}

		for _, ancestor := range store.Ancestors(path) {
			found, err := exists(txn, ancestor)
			if err != nil {
				return err
			}
			if found {
				continue
			}
			if err := insert(txn, ancestor, nil); err != nil {
				return err
			}
		}
		return insert(txn, path, data)
	})
}

func insert(txn *badger.Txn, path string, data []byte) error {
	if err := txn.Set(keyNode(path), data); err != nil {
		return err
	}
	return txn.Set(keyChild(store.Parent(path), store.Base(path)), nil)
}

// GetData implements store.Store.
func (s *Store) GetData(ctx context.Context, path string) ([]byte, error) {
	if err := s.begin(ctx, path); err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyNode(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", store.ErrNoNode, path)
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// SetData implements store.Store.
func (s *Store) SetData(ctx context.Context, path string, data []byte) error {
	if err := s.begin(ctx, path); err != nil {
		return err
	}
	defer s.mu.RUnlock()

	return s.update(func(txn *badger.Txn) error {
		found, err := exists(txn, path)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", store.ErrNoNode, path)
		}
		return txn.Set(keyNode(path), data)
	})
}

// DeleteNode implements store.Store.
func (s *Store) DeleteNode(ctx context.Context, path string) error {
	if err := s.begin(ctx, path); err != nil {
		return err
	}
	defer s.mu.RUnlock()

	if path == "/" {
		return fmt.Errorf("%w: cannot delete root", store.ErrInvalidPath)
	}

	return s.update(func(txn *badger.Txn) error {
		found, err := exists(txn, path)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", store.ErrNoNode, path)
		}

		hasChildren, err := anyWithPrefix(txn, keyChildPrefix(path))
		if err != nil {
			return err
		}
		if hasChildren {
			return fmt.Errorf("%w: %s", store.ErrNotEmpty, path)
		}

		if err := txn.Delete(keyNode(path)); err != nil {
			return err
		}
		return txn.Delete(keyChild(store.Parent(path), store.Base(path)))
	})
}

func anyWithPrefix(txn *badger.Txn, prefix []byte) (bool, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	it.Rewind()
	return it.Valid(), nil
}

// Children implements store.Store.
func (s *Store) Children(ctx context.Context, path string) ([]string, error) {
	if err := s.begin(ctx, path); err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()

	names := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		found, err := exists(txn, path)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", store.ErrNoNode, path)
		}

		prefix := keyChildPrefix(path)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			names = append(names, string(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// ReadWriteLock implements store.Store.
func (s *Store) ReadWriteLock(path string) store.ReadWriteLock {
	return lock.NewReadWriteLock(s.locks, path)
}

// Close implements store.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.locks.Close()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

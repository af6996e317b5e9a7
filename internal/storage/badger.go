package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/Klingon-tech/mysterybox/internal/log"
)

// BadgerDB implements DB using Badger.
type BadgerDB struct {
	db *badger.DB
}

// BadgerOption adjusts the options a BadgerDB is opened with.
type BadgerOption func(*badger.Options)

// WithSyncWrites fsyncs every commit before it returns.
func WithSyncWrites() BadgerOption {
	return func(o *badger.Options) { o.SyncWrites = true }
}

// WithInMemory keeps the database in RAM; path is ignored.
func WithInMemory() BadgerOption {
	return func(o *badger.Options) {
		o.Dir, o.ValueDir = "", ""
		o.InMemory = true
	}
}

// NewBadger opens (or creates) a Badger database at path. Badger's own
// warnings and errors go to the storage logger.
func NewBadger(path string, opts ...BadgerOption) (*BadgerDB, error) {
	o := badger.DefaultOptions(path).WithLogger(badgerLogger{log.Storage})
	for _, opt := range opts {
		opt(&o)
	}

	db, err := badger.Open(o)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "Cannot acquire directory lock") ||
			strings.Contains(errMsg, "resource temporarily unavailable") {
			return nil, fmt.Errorf("database at %s is locked by another process (is another mysteryboxd instance running?): %w", path, err)
		}
		return nil, fmt.Errorf("open database at %s: %w", path, err)
	}
	return &BadgerDB{db: db}, nil
}

// badgerLogger forwards badger's log calls to zerolog. Info and debug
// chatter is dropped to trace.
type badgerLogger struct {
	l zerolog.Logger
}

func (b badgerLogger) Errorf(f string, args ...interface{}) {
	b.l.Error().Str("db", "badger").Msgf(strings.TrimSpace(f), args...)
}

func (b badgerLogger) Warningf(f string, args ...interface{}) {
	b.l.Warn().Str("db", "badger").Msgf(strings.TrimSpace(f), args...)
}

func (b badgerLogger) Infof(f string, args ...interface{}) {
	b.l.Trace().Str("db", "badger").Msgf(strings.TrimSpace(f), args...)
}

func (b badgerLogger) Debugf(f string, args ...interface{}) {
	b.l.Trace().Str("db", "badger").Msgf(strings.TrimSpace(f), args...)
}

// Get retrieves a value by key. Returns ErrNotFound if the key does not exist.
func (b *BadgerDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return val, nil
}

// Put stores a key-value pair.
func (b *BadgerDB) Put(key, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("badger put: %w", err)
	}
	return nil
}

// Delete removes a key.
func (b *BadgerDB) Delete(key []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

// Has checks if a key exists.
func (b *BadgerDB) Has(key []byte) (bool, error) {
	var exists bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("badger has: %w", err)
	}
	return exists, nil
}

// ForEach iterates over all keys with the given prefix.
func (b *BadgerDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(key, val); err != nil {
				return err
			}
		}
		return nil
	})
}

// NewBatch returns a batch committed as one read-write transaction.
func (b *BadgerDB) NewBatch() Batch {
	return &badgerBatch{db: b.db}
}

// Close closes the database.
func (b *BadgerDB) Close() error {
	return b.db.Close()
}

type badgerBatch struct {
	db  *badger.DB
	ops opList
}

func (bb *badgerBatch) Put(key, value []byte) error {
	bb.ops.put(key, value)
	return nil
}

func (bb *badgerBatch) Delete(key []byte) error {
	bb.ops.del(key)
	return nil
}

func (bb *badgerBatch) Len() int { return len(bb.ops) }

// Commit applies all staged writes in one transaction. A transaction that
// grows past badger's size limit fails as a whole.
func (bb *badgerBatch) Commit() error {
	txn := bb.db.NewTransaction(true)
	defer txn.Discard()
	for _, op := range bb.ops {
		var err error
		if op.value == nil {
			err = txn.Delete(op.key)
		} else {
			err = txn.Set(op.key, op.value)
		}
		if err != nil {
			return fmt.Errorf("badger batch: %w", err)
		}
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("badger batch commit: %w", err)
	}
	bb.ops = nil
	return nil
}

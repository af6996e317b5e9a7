package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var boltBucket = []byte("state")

// BoltDB implements DB on a single bbolt bucket.
type BoltDB struct {
	db *bbolt.DB
}

// NewBolt opens or creates the bbolt file at path.
// The parent directory is created if it does not exist.
func NewBolt(path string) (*BoltDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("bolt: create directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("bolt: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: create bucket: %w", err)
	}
	return &BoltDB{db: db}, nil
}

// Get retrieves a value by key. Returns ErrNotFound if the key does not exist.
func (b *BoltDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(boltBucket).Get(key)
		if v == nil {
			return ErrNotFound
		}
		val = append(make([]byte, 0, len(v)), v...)
		return nil
	})
	return val, err
}

// Put stores a key-value pair.
func (b *BoltDB) Put(key, value []byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucket).Put(key, value)
	})
}

// Delete removes a key.
func (b *BoltDB) Delete(key []byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucket).Delete(key)
	})
}

// Has checks if a key exists.
func (b *BoltDB) Has(key []byte) (bool, error) {
	var ok bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		ok = tx.Bucket(boltBucket).Get(key) != nil
		return nil
	})
	return ok, err
}

// ForEach iterates over all keys with the given prefix.
func (b *BoltDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(boltBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			key := append([]byte(nil), k...)
			val := append([]byte(nil), v...)
			if err := fn(key, val); err != nil {
				return err
			}
		}
		return nil
	})
}

// NewBatch returns a batch applied inside one bbolt Update transaction.
func (b *BoltDB) NewBatch() Batch {
	return &boltBatch{db: b.db}
}

// Close closes the database.
func (b *BoltDB) Close() error {
	return b.db.Close()
}

type boltBatch struct {
	db  *bbolt.DB
	ops opList
}

func (bb *boltBatch) Put(key, value []byte) error {
	bb.ops.put(key, value)
	return nil
}

func (bb *boltBatch) Delete(key []byte) error {
	bb.ops.del(key)
	return nil
}

func (bb *boltBatch) Len() int { return len(bb.ops) }

func (bb *boltBatch) Commit() error {
	err := bb.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		for _, op := range bb.ops {
			var err error
			if op.value == nil {
				err = bucket.Delete(op.key)
			} else {
				err = bucket.Put(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bolt batch commit: %w", err)
	}
	bb.ops = nil
	return nil
}

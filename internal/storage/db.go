// Package storage provides the key-value state store the host commits
// contract state into.
package storage

import "errors"

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix in ascending key order.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	// NewBatch starts a write batch. Nothing is visible until Commit, and
	// Commit applies every staged write or none of them.
	NewBatch() Batch
	Close() error
}

// Batch stages writes for a single atomic commit.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	// Len returns the number of staged operations.
	Len() int
	Commit() error
}

// batchOp is a staged write. A nil value means delete.
type batchOp struct {
	key   []byte
	value []byte
}

// opList is the staging buffer shared by the backend batches.
type opList []batchOp

func (l *opList) put(key, value []byte) {
	k := append([]byte(nil), key...)
	v := append(make([]byte, 0, len(value)), value...)
	*l = append(*l, batchOp{key: k, value: v})
}

func (l *opList) del(key []byte) {
	*l = append(*l, batchOp{key: append([]byte(nil), key...)})
}

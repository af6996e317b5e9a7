// Package token persists issued NFTs and the per-owner index used for
// enumeration.
package token

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/mysterybox/internal/contract"
	"github.com/Klingon-tech/mysterybox/internal/storage"
	"github.com/Klingon-tech/mysterybox/pkg/types"
)

var (
	prefixToken    = []byte("t/") // t/<id(8)> -> {token_id, owner_id} JSON
	prefixOwner    = []byte("o/") // o/<owner(20)><id(8)> -> marker
	prefixMeta     = []byte("m/") // m/<id(8)> -> contract.TokenMetadata JSON
	prefixApproval = []byte("a/") // a/<id(8)> -> contract.Approvals JSON
)

var indexMarker = []byte{1}

// Store reads token records from db. Writes are staged into a batch so
// they commit together with the contract state that produced them.
type Store struct {
	db storage.DB
}

// NewStore creates a token store.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// StageMint writes new tokens, their metadata and their owner index
// entries into b.
func (s *Store) StageMint(b storage.Batch, tokens []contract.Token) error {
	for _, t := range tokens {
		if err := s.stagePut(b, t); err != nil {
			return err
		}
		if t.Metadata == nil {
			continue
		}
		data, err := json.Marshal(t.Metadata)
		if err != nil {
			return fmt.Errorf("token metadata marshal: %w", err)
		}
		if err := b.Put(idKey(prefixMeta, t.ID), data); err != nil {
			return fmt.Errorf("token metadata put: %w", err)
		}
	}
	return nil
}

// StageTransfer moves tok to a new owner in b and returns the updated
// record. Every approval on the token is dropped.
func (s *Store) StageTransfer(b storage.Batch, tok contract.Token, to types.Address) (contract.Token, error) {
	if err := b.Delete(ownerKey(tok.Owner, tok.ID)); err != nil {
		return tok, fmt.Errorf("token index delete: %w", err)
	}
	tok.Owner = to
	if err := s.stagePut(b, tok); err != nil {
		return tok, err
	}
	if len(tok.Approvals) > 0 {
		a, err := s.Approvals(tok.ID)
		if err != nil {
			return tok, err
		}
		if err := s.StageApprovals(b, tok.ID, a.RevokeAll()); err != nil {
			return tok, err
		}
	}
	tok.Approvals = nil
	return tok, nil
}

// Approvals returns the approval record of a token. Tokens never approved
// have an empty record.
func (s *Store) Approvals(id uint64) (contract.Approvals, error) {
	var a contract.Approvals
	data, err := s.db.Get(idKey(prefixApproval, id))
	if errors.Is(err, storage.ErrNotFound) {
		return a, nil
	}
	if err != nil {
		return a, fmt.Errorf("token approvals get: %w", err)
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return a, fmt.Errorf("token approvals unmarshal: %w", err)
	}
	return a, nil
}

// StageApprovals writes the approval record of a token into b.
func (s *Store) StageApprovals(b storage.Batch, id uint64, a contract.Approvals) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("token approvals marshal: %w", err)
	}
	if err := b.Put(idKey(prefixApproval, id), data); err != nil {
		return fmt.Errorf("token approvals put: %w", err)
	}
	return nil
}

func (s *Store) stagePut(b storage.Batch, t contract.Token) error {
	data, err := json.Marshal(contract.Token{ID: t.ID, Owner: t.Owner})
	if err != nil {
		return fmt.Errorf("token marshal: %w", err)
	}
	if err := b.Put(tokenKey(t.ID), data); err != nil {
		return fmt.Errorf("token put: %w", err)
	}
	if err := b.Put(ownerKey(t.Owner, t.ID), indexMarker); err != nil {
		return fmt.Errorf("token index put: %w", err)
	}
	return nil
}

// Get returns a token with its metadata and approvals. Unknown ids yield
// contract.ErrUnknownToken.
func (s *Store) Get(id uint64) (*contract.Token, error) {
	t, err := s.record(id)
	if err != nil {
		return nil, err
	}
	data, err := s.db.Get(idKey(prefixMeta, id))
	switch {
	case err == nil:
		t.Metadata = new(contract.TokenMetadata)
		if err := json.Unmarshal(data, t.Metadata); err != nil {
			return nil, fmt.Errorf("token metadata unmarshal: %w", err)
		}
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("token metadata get: %w", err)
	}
	a, err := s.Approvals(id)
	if err != nil {
		return nil, err
	}
	t.Approvals = a.Accounts
	return t, nil
}

// record reads the ownership record alone.
func (s *Store) record(id uint64) (*contract.Token, error) {
	data, err := s.db.Get(tokenKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", contract.ErrUnknownToken, id)
	}
	if err != nil {
		return nil, fmt.Errorf("token get: %w", err)
	}
	var t contract.Token
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("token unmarshal: %w", err)
	}
	return &t, nil
}

// OwnerOf returns the current owner of a token.
func (s *Store) OwnerOf(id uint64) (types.Address, error) {
	t, err := s.record(id)
	if err != nil {
		return types.Address{}, err
	}
	return t.Owner, nil
}

// ForOwner returns the tokens held by owner in ascending id order, skipping
// the first from entries and returning at most limit (0 means no limit).
func (s *Store) ForOwner(owner types.Address, from, limit int) ([]contract.Token, error) {
	prefix := make([]byte, 0, len(prefixOwner)+types.AddressSize)
	prefix = append(prefix, prefixOwner...)
	prefix = append(prefix, owner[:]...)

	var ids []uint64
	var seen int
	errStop := errors.New("stop")
	err := s.db.ForEach(prefix, func(key, _ []byte) error {
		if len(key) != len(prefix)+8 {
			return nil // Malformed key, skip.
		}
		seen++
		if seen <= from {
			return nil
		}
		ids = append(ids, binary.BigEndian.Uint64(key[len(prefix):]))
		if limit > 0 && len(ids) >= limit {
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}

	tokens := make([]contract.Token, 0, len(ids))
	for _, id := range ids {
		t, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *t)
	}
	return tokens, nil
}

// ForEach iterates over all tokens in id order.
// Return a non-nil error from fn to stop iteration early. A record that
// does not decode stops iteration with an error.
func (s *Store) ForEach(fn func(contract.Token) error) error {
	return s.db.ForEach(prefixToken, func(key, value []byte) error {
		var t contract.Token
		if err := json.Unmarshal(value, &t); err != nil {
			return fmt.Errorf("decode token record %x: %w", key, err)
		}
		return fn(t)
	})
}

func tokenKey(id uint64) []byte {
	return idKey(prefixToken, id)
}

func idKey(prefix []byte, id uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], id)
	return key
}

func ownerKey(owner types.Address, id uint64) []byte {
	key := make([]byte, 0, len(prefixOwner)+types.AddressSize+8)
	key = append(key, prefixOwner...)
	key = append(key, owner[:]...)
	return binary.BigEndian.AppendUint64(key, id)
}

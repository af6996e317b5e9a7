// Package bank keeps account balances and call nonces.
package bank

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	klog "github.com/Klingon-tech/mysterybox/internal/log"
	"github.com/Klingon-tech/mysterybox/internal/storage"
	"github.com/Klingon-tech/mysterybox/pkg/types"
	"github.com/rs/zerolog"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceOverflow     = errors.New("balance overflow")
)

var (
	prefixBalance = []byte("b/") // b/<address(20)> -> uint64 BE
	prefixNonce   = []byte("n/") // n/<address(20)> -> uint64 BE
)

// Bank reads committed balances and nonces.
type Bank struct {
	db     storage.DB
	logger zerolog.Logger
}

// New creates a bank over db.
func New(db storage.DB) *Bank {
	return &Bank{db: db, logger: klog.Bank}
}

// Balance returns the committed balance of a. Unknown accounts hold zero.
func (b *Bank) Balance(a types.Address) (uint64, error) {
	return b.readUint(balanceKey(a))
}

// Nonce returns the last nonce accepted from a. Zero for fresh accounts.
func (b *Bank) Nonce(a types.Address) (uint64, error) {
	return b.readUint(nonceKey(a))
}

func (b *Bank) readUint(key []byte) (uint64, error) {
	data, err := b.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("bank get: %w", err)
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("bank get: corrupt value of %d bytes", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// Transfer moves amount from one account to another in its own batch.
func (b *Bank) Transfer(from, to types.Address, amount uint64) error {
	batch := b.db.NewBatch()
	l := b.Begin(batch)
	if err := l.Move(from, to, amount); err != nil {
		b.logger.Debug().Err(err).Str("from", from.Hex()).Str("to", to.Hex()).Uint64("amount", amount).Msg("Transfer refused")
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("bank commit: %w", err)
	}
	b.logger.Debug().Str("from", from.Hex()).Str("to", to.Hex()).Uint64("amount", amount).Msg("Transfer committed")
	return nil
}

// Ledger stages balance and nonce changes into a batch. Reads see the
// staged values, so several changes to one account compose correctly.
// Nothing is visible to the Bank until the batch commits.
type Ledger struct {
	bank     *Bank
	batch    storage.Batch
	balances map[types.Address]uint64
	nonces   map[types.Address]uint64
}

// Begin starts a ledger writing into batch.
func (b *Bank) Begin(batch storage.Batch) *Ledger {
	return &Ledger{
		bank:     b,
		batch:    batch,
		balances: make(map[types.Address]uint64),
		nonces:   make(map[types.Address]uint64),
	}
}

// Balance returns the staged balance of a.
func (l *Ledger) Balance(a types.Address) (uint64, error) {
	if v, ok := l.balances[a]; ok {
		return v, nil
	}
	return l.bank.Balance(a)
}

// Nonce returns the staged nonce of a.
func (l *Ledger) Nonce(a types.Address) (uint64, error) {
	if v, ok := l.nonces[a]; ok {
		return v, nil
	}
	return l.bank.Nonce(a)
}

// Credit adds amount to a.
func (l *Ledger) Credit(a types.Address, amount uint64) error {
	bal, err := l.Balance(a)
	if err != nil {
		return err
	}
	sum, carry := bits.Add64(bal, amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, a)
	}
	return l.setBalance(a, sum)
}

// Debit subtracts amount from a.
func (l *Ledger) Debit(a types.Address, amount uint64) error {
	bal, err := l.Balance(a)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("%w: %s need %d, got %d", ErrInsufficientBalance, a, amount, bal)
	}
	return l.setBalance(a, bal-amount)
}

// Move debits from and credits to.
func (l *Ledger) Move(from, to types.Address, amount uint64) error {
	if err := l.Debit(from, amount); err != nil {
		return err
	}
	return l.Credit(to, amount)
}

// SetNonce records n as the last nonce accepted from a.
func (l *Ledger) SetNonce(a types.Address, n uint64) error {
	if err := l.batch.Put(nonceKey(a), encodeUint(n)); err != nil {
		return fmt.Errorf("bank nonce put: %w", err)
	}
	l.nonces[a] = n
	return nil
}

func (l *Ledger) setBalance(a types.Address, v uint64) error {
	if err := l.batch.Put(balanceKey(a), encodeUint(v)); err != nil {
		return fmt.Errorf("bank balance put: %w", err)
	}
	l.balances[a] = v
	return nil
}

func encodeUint(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func balanceKey(a types.Address) []byte {
	return append(append([]byte{}, prefixBalance...), a[:]...)
}

func nonceKey(a types.Address) []byte {
	return append(append([]byte{}, prefixNonce...), a[:]...)
}

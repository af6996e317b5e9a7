// Package contract implements the mystery box sale ledger: pricing, payment
// settlement, sequential minting against a fixed supply, royalty payouts and
// income distribution.
//
// The package is pure. Every mutating operation takes the current State and
// returns the next one together with the transfers the host must execute
// after it has durably committed that state.
package contract

import (
	"fmt"

	"github.com/Klingon-tech/mysterybox/pkg/types"
)

// TransferKind labels the reason for an outbound transfer.
type TransferKind string

const (
	TransferRefund TransferKind = "refund"
	TransferIncome TransferKind = "income"
)

// Transfer is an outbound payment from the contract account.
type Transfer struct {
	To     types.Address `json:"to"`
	Amount uint64        `json:"amount"`
	Kind   TransferKind  `json:"kind"`
}

// State is the mutable part of the contract.
type State struct {
	Collection    Collection `json:"collection"`
	PendingIncome uint64     `json:"pending_income"`
}

// Config holds the deployment constants.
type Config struct {
	Metadata Metadata
	Capacity uint64
	Pricing  Pricing
	// Royalty is nil when royalty logic is disabled.
	Royalty *Royalty
}

// Contract evaluates operations against a fixed configuration.
type Contract struct {
	cfg Config
}

// New validates cfg and returns a contract.
func New(cfg Config) (*Contract, error) {
	if err := cfg.Metadata.Validate(); err != nil {
		return nil, err
	}
	if cfg.Capacity == 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", ErrInvalidConfig)
	}
	if cfg.Royalty != nil {
		if cfg.Royalty.RateBP > BasisPoints {
			return nil, fmt.Errorf("%w: rate %d exceeds %d", ErrInvalidRoyaltyConfig, cfg.Royalty.RateBP, BasisPoints)
		}
		// Re-validate in case the table was built as a literal.
		if _, err := NewRoyaltyTable(cfg.Royalty.Table.entries); err != nil {
			return nil, err
		}
	}
	return &Contract{cfg: cfg}, nil
}

// Genesis returns the state of a freshly deployed contract.
func (c *Contract) Genesis() State {
	return State{Collection: NewCollection(c.cfg.Capacity)}
}

// Metadata returns the collection metadata.
func (c *Contract) Metadata() Metadata { return c.cfg.Metadata }

// Capacity returns the maximum number of tokens.
func (c *Contract) Capacity() uint64 { return c.cfg.Capacity }

// Pricing returns the price constants.
func (c *Contract) Pricing() Pricing { return c.cfg.Pricing }

// Royalty returns the royalty configuration, nil when disabled.
func (c *Contract) Royalty() *Royalty { return c.cfg.Royalty }

// UnitPrice returns the price of one token.
func (c *Contract) UnitPrice() uint64 { return c.cfg.Pricing.UnitPrice }

// CostFor returns the mint price of n tokens.
func (c *Contract) CostFor(n int64) (uint64, error) { return c.cfg.Pricing.CostFor(n) }

// RequiredDeposit returns the minimum payment buy accepts for n tokens.
func (c *Contract) RequiredDeposit(n int64) (uint64, error) {
	return c.cfg.Pricing.RequiredDeposit(n)
}

// BuyResult describes a successful purchase.
type BuyResult struct {
	Tokens     []Token    `json:"tokens"`
	Settlement Settlement `json:"settlement"`
	Transfers  []Transfer `json:"transfers,omitempty"`
	Events     []Event    `json:"-"`
}

// Buy mints n tokens to buyer against the attached payment. On error st is
// returned as given and nothing must be committed.
func (c *Contract) Buy(st State, buyer types.Address, attached uint64, n int64) (State, *BuyResult, error) {
	s, err := Settle(c.cfg.Pricing, c.cfg.Royalty, n, attached)
	if err != nil {
		return st, nil, err
	}
	coll, tokens, err := st.Collection.Mint(uint64(n), buyer)
	if err != nil {
		return st, nil, err
	}
	pending, ok := addChecked(st.PendingIncome, s.Income)
	if !ok {
		return st, nil, fmt.Errorf("%w: pending income %d + %d", ErrAmountOverflow, st.PendingIncome, s.Income)
	}

	res := &BuyResult{
		Tokens:     tokens,
		Settlement: s,
		Events:     []Event{NewMintEvent(buyer, tokens)},
	}
	if s.Refund > 0 {
		res.Transfers = append(res.Transfers, Transfer{To: buyer, Amount: s.Refund, Kind: TransferRefund})
	}
	return State{Collection: coll, PendingIncome: pending}, res, nil
}

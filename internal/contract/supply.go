package contract

import (
	"fmt"

	"github.com/Klingon-tech/mysterybox/pkg/types"
)

// FirstTokenID is the id of the first token minted by a collection.
const FirstTokenID uint64 = 1

// Collection is the supply ledger: capacity, minted count and next id.
type Collection struct {
	Capacity uint64 `json:"capacity"`
	Minted   uint64 `json:"minted"`
	NextID   uint64 `json:"next_id"`
}

// NewCollection returns an empty collection of the given capacity.
func NewCollection(capacity uint64) Collection {
	return Collection{Capacity: capacity, NextID: FirstTokenID}
}

// Remaining returns how many tokens can still be minted.
func (c Collection) Remaining() uint64 {
	return c.Capacity - c.Minted
}

// Token is an issued NFT.
type Token struct {
	ID       uint64         `json:"token_id"`
	Owner    types.Address  `json:"owner_id"`
	Metadata *TokenMetadata `json:"metadata,omitempty"`
	// Approvals maps each approved account to its approval id.
	Approvals map[types.Address]uint64 `json:"approved_account_ids,omitempty"`
}

// Mint allocates n consecutive ids to owner and returns the advanced
// collection with the new tokens in ascending id order. The receiver is
// left untouched, so a failed call has nothing to roll back.
func (c Collection) Mint(n uint64, owner types.Address) (Collection, []Token, error) {
	if n == 0 {
		return c, nil, fmt.Errorf("%w: 0", ErrInvalidQuantity)
	}
	if n > c.Remaining() {
		return c, nil, fmt.Errorf("%w: requested %d, remaining %d", ErrSupplyExhausted, n, c.Remaining())
	}
	tokens := make([]Token, n)
	for i := range tokens {
		tokens[i] = Token{ID: c.NextID + uint64(i), Owner: owner}
	}
	next := c
	next.Minted += n
	next.NextID += n
	return next, tokens, nil
}

package contract

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/mysterybox/pkg/types"
)

// OwnerLookup resolves the current owner of a token. Implementations return
// an error wrapping ErrUnknownToken for ids that were never minted.
type OwnerLookup interface {
	OwnerOf(tokenID uint64) (types.Address, error)
}

// Payout maps each receiver to the part of a sale balance it is owed.
type Payout map[types.Address]uint64

// Total returns the sum of all amounts in the payout.
func (p Payout) Total() uint64 {
	var total uint64
	for _, v := range p {
		total += v
	}
	return total
}

// CalculatePayout splits balance between the royalty beneficiaries and owner.
// Each entry receives floor(balance * rate * share / 10^8) and the owner
// gets the remainder, so the amounts always sum to balance. Zero amounts are
// left out. A disabled royalty yields an empty payout.
func CalculatePayout(r *Royalty, owner types.Address, balance uint64) Payout {
	out := make(Payout)
	if !r.Enabled() {
		return out
	}
	var paid uint64
	for _, e := range r.Table.entries {
		// rate*share <= 10^8, so the quotient never exceeds balance.
		amount, _ := mulDiv(balance, uint64(e.ShareBP)*uint64(r.RateBP), BasisPoints*BasisPoints)
		if amount == 0 {
			continue
		}
		out[e.Beneficiary] += amount
		paid += amount
	}
	if rest := balance - paid; rest > 0 {
		out[owner] += rest
	}
	return out
}

// Payout computes the royalty split of balance for a sale of tokenID.
func (c *Contract) Payout(owners OwnerLookup, tokenID, balance uint64) (Payout, error) {
	owner, err := owners.OwnerOf(tokenID)
	if err != nil {
		if errors.Is(err, ErrUnknownToken) {
			return nil, err
		}
		return nil, fmt.Errorf("lookup token %d: %w", tokenID, err)
	}
	return CalculatePayout(c.cfg.Royalty, owner, balance), nil
}

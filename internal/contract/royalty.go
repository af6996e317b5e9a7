package contract

import (
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/mysterybox/pkg/types"
)

// RoyaltyEntry is one beneficiary and its share of royalty, in basis points.
type RoyaltyEntry struct {
	Beneficiary types.Address `json:"account"`
	ShareBP     uint16        `json:"share_bp"`
}

// RoyaltyTable is the validated, immutable beneficiary list. The zero value
// is the empty table.
type RoyaltyTable struct {
	entries []RoyaltyEntry
	totalBP uint32
}

// NewRoyaltyTable validates entries and returns a table in the given order.
// Each share must be in [1, 10000], beneficiaries must be distinct and the
// shares must not sum past 10000.
func NewRoyaltyTable(entries []RoyaltyEntry) (RoyaltyTable, error) {
	seen := make(map[types.Address]struct{}, len(entries))
	var total uint32
	for i, e := range entries {
		if e.ShareBP == 0 || e.ShareBP > BasisPoints {
			return RoyaltyTable{}, fmt.Errorf("%w: entry %d share %d outside [1, %d]",
				ErrInvalidRoyaltyConfig, i, e.ShareBP, BasisPoints)
		}
		if _, dup := seen[e.Beneficiary]; dup {
			return RoyaltyTable{}, fmt.Errorf("%w: duplicate beneficiary %s", ErrInvalidRoyaltyConfig, e.Beneficiary)
		}
		seen[e.Beneficiary] = struct{}{}
		total += uint32(e.ShareBP)
	}
	if total > BasisPoints {
		return RoyaltyTable{}, fmt.Errorf("%w: shares sum to %d, max %d", ErrInvalidRoyaltyConfig, total, BasisPoints)
	}
	return RoyaltyTable{
		entries: append([]RoyaltyEntry(nil), entries...),
		totalBP: total,
	}, nil
}

// Entries returns a copy of the table entries in configuration order.
func (t RoyaltyTable) Entries() []RoyaltyEntry {
	return append([]RoyaltyEntry(nil), t.entries...)
}

// Len returns the number of beneficiaries.
func (t RoyaltyTable) Len() int { return len(t.entries) }

// TotalBP returns the sum of all shares.
func (t RoyaltyTable) TotalBP() uint32 { return t.totalBP }

// MarshalJSON renders the table as its entry list.
func (t RoyaltyTable) MarshalJSON() ([]byte, error) {
	if t.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.entries)
}

// Royalty pairs the table with the rate of each sale retained as income.
// A nil *Royalty means royalty logic is disabled.
type Royalty struct {
	Table  RoyaltyTable `json:"entries"`
	RateBP uint16       `json:"rate_bp"`
}

// NewRoyalty builds a validated royalty configuration.
func NewRoyalty(entries []RoyaltyEntry, rateBP uint16) (*Royalty, error) {
	if rateBP > BasisPoints {
		return nil, fmt.Errorf("%w: rate %d exceeds %d", ErrInvalidRoyaltyConfig, rateBP, BasisPoints)
	}
	table, err := NewRoyaltyTable(entries)
	if err != nil {
		return nil, err
	}
	return &Royalty{Table: table, RateBP: rateBP}, nil
}

// Enabled reports whether payouts and income retention apply. Both a
// non-empty table and a non-zero rate are needed.
func (r *Royalty) Enabled() bool {
	return r != nil && r.RateBP > 0 && r.Table.Len() > 0
}

// Accrual returns the part of a sale amount retained as pending income.
func (r *Royalty) Accrual(amount uint64) uint64 {
	if !r.Enabled() {
		return 0
	}
	return bpOf(amount, uint64(r.RateBP))
}

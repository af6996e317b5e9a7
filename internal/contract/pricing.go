package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Pricing holds the deployment-time price constants.
type Pricing struct {
	// UnitPrice is the mint price of one token.
	UnitPrice uint64 `json:"unit_price"`
	// StorageFeePerToken covers the state each minted token occupies. It is
	// charged on top of the mint price and is zero unless configured.
	StorageFeePerToken uint64 `json:"storage_fee_per_token"`
}

// Quantity is a token count as it arrives in call arguments. Decoding a
// fractional or non-numeric value fails with ErrInvalidQuantity.
type Quantity int64

// UnmarshalJSON accepts JSON integers only. null leaves q unchanged.
func (q *Quantity) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidQuantity, b)
	}
	n, err := num.Int64()
	if err != nil {
		return fmt.Errorf("%w: %s is not an integer", ErrInvalidQuantity, num)
	}
	*q = Quantity(n)
	return nil
}

func checkQuantity(n int64) error {
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, n)
	}
	return nil
}

// CostFor returns unit_price * n.
func (p Pricing) CostFor(n int64) (uint64, error) {
	if err := checkQuantity(n); err != nil {
		return 0, err
	}
	cost, ok := mulChecked(p.UnitPrice, uint64(n))
	if !ok {
		return 0, fmt.Errorf("%w: %d x %d", ErrAmountOverflow, n, p.UnitPrice)
	}
	return cost, nil
}

// StorageCostFor returns the storage fee for n tokens.
func (p Pricing) StorageCostFor(n int64) (uint64, error) {
	if err := checkQuantity(n); err != nil {
		return 0, err
	}
	cost, ok := mulChecked(p.StorageFeePerToken, uint64(n))
	if !ok {
		return 0, fmt.Errorf("%w: storage for %d tokens", ErrAmountOverflow, n)
	}
	return cost, nil
}

// RequiredDeposit returns the minimum attached payment accepted by buy.
func (p Pricing) RequiredDeposit(n int64) (uint64, error) {
	cost, err := p.CostFor(n)
	if err != nil {
		return 0, err
	}
	storage, err := p.StorageCostFor(n)
	if err != nil {
		return 0, err
	}
	total, ok := addChecked(cost, storage)
	if !ok {
		return 0, fmt.Errorf("%w: deposit for %d tokens", ErrAmountOverflow, n)
	}
	return total, nil
}

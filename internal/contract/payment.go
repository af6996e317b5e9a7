package contract

import "fmt"

// Settlement is the outcome of validating an attached payment.
type Settlement struct {
	Quantity    int64  `json:"quantity"`
	Attached    uint64 `json:"attached"`
	Cost        uint64 `json:"cost"`
	StorageCost uint64 `json:"storage_cost"`
	// ActualCost is what the contract keeps: Cost + StorageCost.
	ActualCost uint64 `json:"actual_cost"`
	// Refund is owed back to the caller after commit. May be zero.
	Refund uint64 `json:"refund"`
	// Income is the royalty-rate share of ActualCost to add to pending income.
	Income uint64 `json:"income"`
}

// Settle validates attached against the cost of n tokens. It never mutates
// anything; the caller applies Income only once the whole call succeeds.
func Settle(p Pricing, r *Royalty, n int64, attached uint64) (Settlement, error) {
	cost, err := p.CostFor(n)
	if err != nil {
		return Settlement{}, err
	}
	storage, err := p.StorageCostFor(n)
	if err != nil {
		return Settlement{}, err
	}
	actual, ok := addChecked(cost, storage)
	if !ok {
		return Settlement{}, fmt.Errorf("%w: deposit for %d tokens", ErrAmountOverflow, n)
	}
	if attached < actual {
		return Settlement{}, fmt.Errorf("%w: require %d, attached %d", ErrInsufficientDeposit, actual, attached)
	}
	return Settlement{
		Quantity:    n,
		Attached:    attached,
		Cost:        cost,
		StorageCost: storage,
		ActualCost:  actual,
		Refund:      attached - actual,
		Income:      r.Accrual(actual),
	}, nil
}

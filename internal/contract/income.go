package contract

import "github.com/Klingon-tech/mysterybox/pkg/types"

// Distribution is one income distribution cycle.
type Distribution struct {
	// Pool is the pending income at the start of the cycle.
	Pool uint64 `json:"pool"`
	// Payouts holds one income transfer per beneficiary with a non-zero
	// amount, in table order.
	Payouts     []Transfer `json:"payouts"`
	Distributed uint64     `json:"distributed"`
	// Retained is the rounding leftover that stays pending.
	Retained uint64 `json:"retained"`
}

// Amounts returns the payouts keyed by beneficiary.
func (d *Distribution) Amounts() map[types.Address]uint64 {
	out := make(map[types.Address]uint64, len(d.Payouts))
	for _, p := range d.Payouts {
		out[p.To] += p.Amount
	}
	return out
}

// Distribute splits pending between the table entries, floor(pending *
// share / 10000) each. Whatever the floors leave behind is Retained.
func Distribute(table RoyaltyTable, pending uint64) *Distribution {
	d := &Distribution{Pool: pending}
	for _, e := range table.entries {
		amount := bpOf(pending, uint64(e.ShareBP))
		if amount == 0 {
			continue
		}
		d.Payouts = append(d.Payouts, Transfer{To: e.Beneficiary, Amount: amount, Kind: TransferIncome})
		d.Distributed += amount
	}
	d.Retained = pending - d.Distributed
	return d
}

// DistributeIncome debits the distributed amount from pending income and
// returns the transfers the host must make. With nothing pending, or with
// royalty disabled, the state is returned unchanged with an empty cycle.
func (c *Contract) DistributeIncome(st State) (State, *Distribution) {
	if st.PendingIncome == 0 || !c.cfg.Royalty.Enabled() {
		return st, &Distribution{Pool: st.PendingIncome, Retained: st.PendingIncome}
	}
	d := Distribute(c.cfg.Royalty.Table, st.PendingIncome)
	next := st
	next.PendingIncome = d.Retained
	return next, d
}

package contract

import (
	"math/bits"

	"github.com/holiman/uint256"
)

// BasisPoints is the denominator of every share and rate (10000 = 100%).
const BasisPoints = 10_000

// mulDiv returns floor(a*b/d) over a full-width intermediate product.
// ok is false when d is zero or the quotient does not fit in 64 bits.
func mulDiv(a, b, d uint64) (q uint64, ok bool) {
	if d == 0 {
		return 0, false
	}
	z, overflow := new(uint256.Int).MulDivOverflow(uint256.NewInt(a), uint256.NewInt(b), uint256.NewInt(d))
	if overflow || !z.IsUint64() {
		return 0, false
	}
	return z.Uint64(), true
}

func mulChecked(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

func addChecked(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// bpOf returns floor(amount * bp / 10000). It cannot overflow for bp <= 10000.
func bpOf(amount uint64, bp uint64) uint64 {
	q, _ := mulDiv(amount, bp, BasisPoints)
	return q
}

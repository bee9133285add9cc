// Package settlement computes withdrawal fees with exact integer arithmetic.
package settlement

import (
	"errors"
	"fmt"
	"math/bits"

	"crowdfund/internal/domain"
)

// Default platform fee: 300 basis points.
const (
	DefaultFeeNumerator   uint64 = 300
	DefaultFeeDenominator uint64 = 10000
)

// ErrInvalidFeeRate is returned for a zero denominator or a rate above 100%.
var ErrInvalidFeeRate = errors.New("invalid fee rate")

// Split is the division of a target amount between platform and executor.
type Split struct {
	Fee    uint64
	Payout uint64
}

// Settle returns fee = floor(target*num/den) and payout = target-fee.
// The product is computed in 128 bits; a quotient that does not fit in
// 64 bits is reported as domain.ErrMathOverflow.
func Settle(target, num, den uint64) (Split, error) {
	if den == 0 || num > den {
		return Split{}, fmt.Errorf("%w: %d/%d", ErrInvalidFeeRate, num, den)
	}
	hi, lo := bits.Mul64(target, num)
	if hi >= den {
		return Split{}, domain.ErrMathOverflow
	}
	fee, _ := bits.Div64(hi, lo, den)
	return Split{Fee: fee, Payout: target - fee}, nil
}

// Withdrawal is the full disbursement of a funded campaign's escrow.
type Withdrawal struct {
	Split
	// Surplus is the amount raised beyond the target.
	Surplus uint64
}

// Total is everything leaving escrow.
func (w Withdrawal) Total() uint64 {
	return w.Fee + w.Payout + w.Surplus
}

// Withdraw splits target with Settle and carries raised-target as surplus.
func Withdraw(raised, target, num, den uint64) (Withdrawal, error) {
	if raised < target {
		return Withdrawal{}, fmt.Errorf("%w: raised %d below target %d", domain.ErrCampaignNotFunded, raised, target)
	}
	split, err := Settle(target, num, den)
	if err != nil {
		return Withdrawal{}, err
	}
	return Withdrawal{Split: split, Surplus: raised - target}, nil
}

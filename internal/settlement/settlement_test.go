package settlement

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"crowdfund/internal/domain"
)

func TestSettle(t *testing.T) {
	tests := []struct {
		name   string
		target uint64
		fee    uint64
	}{
		{name: "two billion", target: 2_000_000_000, fee: 60_000_000},
		{name: "three billion", target: 3_000_000_000, fee: 90_000_000},
		{name: "floor rounding", target: 33, fee: 0},
		{name: "just over one unit", target: 34, fee: 1},
		{name: "one", target: 1, fee: 0},
		{name: "max uint64", target: math.MaxUint64, fee: 553402322211286548},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split, err := Settle(tt.target, DefaultFeeNumerator, DefaultFeeDenominator)
			require.NoError(t, err)
			require.Equal(t, tt.fee, split.Fee)
			require.Equal(t, tt.target, split.Fee+split.Payout)
		})
	}
}

func TestSettleConservesEveryUnit(t *testing.T) {
	for target := uint64(1); target < 5000; target += 7 {
		split, err := Settle(target, 300, 10000)
		require.NoError(t, err)
		require.Equal(t, target, split.Fee+split.Payout)
		require.LessOrEqual(t, split.Fee*10000, target*300)
	}
}

func TestSettleRejectsBadRates(t *testing.T) {
	_, err := Settle(100, 1, 0)
	require.ErrorIs(t, err, ErrInvalidFeeRate)

	_, err = Settle(100, 11, 10)
	require.ErrorIs(t, err, ErrInvalidFeeRate)

	split, err := Settle(100, 10, 10)
	require.NoError(t, err)
	require.Equal(t, Split{Fee: 100, Payout: 0}, split)
}

func TestWithdrawCarriesSurplus(t *testing.T) {
	w, err := Withdraw(2_500_000_000, 2_000_000_000, 300, 10000)
	require.NoError(t, err)
	require.Equal(t, uint64(60_000_000), w.Fee)
	require.Equal(t, uint64(1_940_000_000), w.Payout)
	require.Equal(t, uint64(500_000_000), w.Surplus)
	require.Equal(t, uint64(2_500_000_000), w.Total())

	_, err = Withdraw(10, 11, 300, 10000)
	require.ErrorIs(t, err, domain.ErrCampaignNotFunded)
}

package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	require.Equal(t, "campaign_not_active", Kind(ErrCampaignNotActive))
	require.Equal(t, "duplicate_donation", Kind(fmt.Errorf("donate %s: %w", "wells", ErrDuplicateDonation)))
	require.Equal(t, "conflict", Kind(fmt.Errorf("%w: could not serialize access", ErrConflict)))
	require.Equal(t, "internal", Kind(errors.New("boom")))
	require.Equal(t, "internal", Kind(nil))
}

func TestParseCategory(t *testing.T) {
	for raw, want := range map[string]Category{
		"health":         CategoryHealth,
		"  Water ":       CategoryWater,
		"INFRASTRUCTURE": CategoryInfrastructure,
		"Emergency":      CategoryEmergency,
	} {
		got, err := ParseCategory(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got)
	}
	_, err := ParseCategory("sports")
	require.ErrorIs(t, err, ErrInvalidCategory)
	_, err = ParseCategory("")
	require.ErrorIs(t, err, ErrInvalidCategory)

	require.Equal(t, "Infrastructure", CategoryInfrastructure.Label())
}

func TestCheckedArithmetic(t *testing.T) {
	sum, err := CheckedAdd(MaxAmount-1, 1)
	require.NoError(t, err)
	require.Equal(t, MaxAmount, sum)
	_, err = CheckedAdd(MaxAmount, 1)
	require.ErrorIs(t, err, ErrMathOverflow)

	diff, err := CheckedSub(5, 5)
	require.NoError(t, err)
	require.Zero(t, diff)
	_, err = CheckedSub(4, 5)
	require.ErrorIs(t, err, ErrMathOverflow)
}

func TestEscrowAccountIsPerCampaign(t *testing.T) {
	a := Campaign{Address: "abc"}
	require.Equal(t, Identity("escrow:abc"), a.EscrowAccount())
	require.Equal(t, a.EscrowAccount(), EscrowAccount("abc"))
	require.NotEqual(t, a.EscrowAccount(), EscrowAccount("abd"))
}

func TestReservedIdentities(t *testing.T) {
	require.True(t, DepositAccount.Reserved())
	require.True(t, EscrowAccount("abc").Reserved())
	require.True(t, Identity("escrow:").Reserved())
	require.False(t, Identity("alice").Reserved())
	require.False(t, Identity("escrowed-alice").Reserved())
	require.False(t, Identity("deposits-team").Reserved())
}

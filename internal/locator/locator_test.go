package locator

import (
	"errors"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
)

func TestDeriveIsDeterministic(t *testing.T) {
	a, err := Campaign("clean-water-2024")
	require.NoError(t, err)
	b, err := Campaign("clean-water-2024")
	require.NoError(t, err)
	require.Equal(t, a, b)

	raw, err := base58.Decode(string(a))
	require.NoError(t, err)
	require.Len(t, raw, 32)
}

func TestDeriveSeparatesNamespacesAndKeys(t *testing.T) {
	seen := map[string]string{}
	add := func(label string, ns string, parts ...string) {
		t.Helper()
		addr, err := Derive(ns, parts...)
		require.NoError(t, err)
		if prev, ok := seen[string(addr)]; ok {
			t.Fatalf("%s collides with %s", label, prev)
		}
		seen[string(addr)] = label
	}

	add("campaign ab", NamespaceCampaign, "ab")
	add("donation ab", NamespaceDonation, "ab")
	add("campaign a,bc", NamespaceCampaign, "a", "bc")
	add("campaign ab,c", NamespaceCampaign, "ab", "c")
	add("campaign abc", NamespaceCampaign, "abc")
}

func TestDonationDependsOnCampaignAndDonor(t *testing.T) {
	c1, err := Campaign("one")
	require.NoError(t, err)
	c2, err := Campaign("two")
	require.NoError(t, err)

	d11, err := Donation(c1, "alice")
	require.NoError(t, err)
	d12, err := Donation(c1, "bob")
	require.NoError(t, err)
	d21, err := Donation(c2, "alice")
	require.NoError(t, err)

	require.NotEqual(t, d11, d12)
	require.NotEqual(t, d11, d21)
	require.NotEqual(t, c1, d11)
}

func TestDeriveRejectsEmptyInput(t *testing.T) {
	_, err := Campaign("")
	require.True(t, errors.Is(err, ErrEmptyKey))

	_, err = Derive("", "x")
	require.ErrorIs(t, err, ErrEmptyKey)

	_, err = Derive(NamespaceCampaign)
	require.ErrorIs(t, err, ErrEmptyKey)

	c, err := Campaign("x")
	require.NoError(t, err)
	_, err = Donation(c, "")
	require.ErrorIs(t, err, ErrEmptyKey)
}

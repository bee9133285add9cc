package escrow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"crowdfund/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestConcurrentDonationsHaveNoLostUpdates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	const donors = 64
	for i := 0; i < donors; i++ {
		f.fund(t, donorID(i), uint64(i+1))
	}
	// Target is reached part way through the donor set.
	c := f.create(t, "race", 1000)

	var (
		wg        sync.WaitGroup
		committed atomic.Uint64
		flips     atomic.Int32
	)
	for i := 0; i < donors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := uint64(i + 1)
			res, err := f.engine.DonateToCampaign(ctx, donorID(i), "race", amount)
			if err != nil {
				if !errors.Is(err, domain.ErrCampaignNotActive) {
					t.Errorf("donor %d: %v", i, err)
				}
				return
			}
			committed.Add(amount)
			if res.Funded {
				flips.Add(1)
			}
		}(i)
	}
	wg.Wait()

	got, err := f.engine.GetCampaign(ctx, "race")
	require.NoError(t, err)
	require.Equal(t, committed.Load(), got.RaisedAmount)
	require.Equal(t, got.RaisedAmount, f.balance(t, c.EscrowAccount()))
	require.Equal(t, domain.CampaignFunded, got.Status)
	require.EqualValues(t, 1, flips.Load())
	require.GreaterOrEqual(t, got.RaisedAmount, got.TargetAmount)
}

func TestConcurrentDonateAndCancelSerialize(t *testing.T) {
	ctx := context.Background()
	for round := 0; round < 20; round++ {
		f := newFixture(t)
		f.fund(t, donorA, 10)
		f.fund(t, donorB, 10)
		id := fmt.Sprintf("round-%d", round)
		f.create(t, id, 10)

		var wg sync.WaitGroup
		var donateErr, cancelErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, donateErr = f.engine.DonateToCampaign(ctx, donorA, id, 10)
		}()
		go func() {
			defer wg.Done()
			_, cancelErr = f.engine.CancelCampaign(ctx, authority, id)
		}()
		wg.Wait()

		// Exactly one of the two state changes wins.
		if donateErr == nil {
			require.ErrorIs(t, cancelErr, domain.ErrCampaignNotActive)
			c, err := f.engine.GetCampaign(ctx, id)
			require.NoError(t, err)
			require.Equal(t, domain.CampaignFunded, c.Status)
		} else {
			require.ErrorIs(t, donateErr, domain.ErrCampaignNotActive)
			require.NoError(t, cancelErr)
			require.Equal(t, uint64(10), f.balance(t, donorA))
		}
	}
}

func TestConcurrentRefundsPayEachDonorOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, donorA, 40)
	c := f.create(t, "refunds", 100)
	_, err := f.engine.DonateToCampaign(ctx, donorA, "refunds", 40)
	require.NoError(t, err)
	_, err = f.engine.CancelCampaign(ctx, authority, "refunds")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var ok atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.ClaimRefund(ctx, donorA, "refunds")
			if err == nil {
				ok.Add(1)
				return
			}
			if !errors.Is(err, domain.ErrReceiptNotFound) {
				t.Errorf("unexpected refund error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, ok.Load())
	require.Equal(t, uint64(40), f.balance(t, donorA))
	require.Zero(t, f.balance(t, c.EscrowAccount()))
}

func donorID(i int) domain.Identity {
	return domain.Identity(fmt.Sprintf("donor-%03d", i))
}

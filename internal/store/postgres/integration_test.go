package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"crowdfund/internal/domain"
	"crowdfund/internal/escrow"
	"crowdfund/internal/infra"
	"crowdfund/internal/store/postgres"
)

func openTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := os.Getenv("ESCROW_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ESCROW_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))

	s := postgres.New(infra.NewSQLRunner(pool, zerolog.Nop()), pool.Close)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestEngineLifecycleOnPostgres(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Identities are unique per run so repeated runs share one database.
	suffix := uuid.NewString()[:8]
	platform := domain.Identity("platform-" + suffix)
	donor := domain.Identity("donor-" + suffix)
	executor := domain.Identity("executor-" + suffix)
	authority := domain.Identity("authority-" + suffix)
	require.NoError(t, s.Credit(ctx, donor, 1_000))

	engine, err := escrow.New(s, escrow.Options{Platform: platform})
	require.NoError(t, err)

	id := fmt.Sprintf("pg-%s", suffix)
	c, err := engine.CreateCampaign(ctx, authority, escrow.CreateCampaignInput{
		ID:           id,
		Name:         "School roof",
		Description:  "Repair before the rains",
		Category:     domain.CategoryEducation,
		TargetAmount: 1_000,
		Metrics:      []string{"classrooms:4"},
	})
	require.NoError(t, err)

	_, err = engine.CreateCampaign(ctx, authority, escrow.CreateCampaignInput{
		ID: id, Name: "dup", Description: "dup", Category: domain.CategoryOther, TargetAmount: 1,
	})
	require.ErrorIs(t, err, domain.ErrAlreadyExists)

	res, err := engine.DonateToCampaign(ctx, donor, id, 1_000)
	require.NoError(t, err)
	require.True(t, res.Funded)

	_, err = engine.DonateToCampaign(ctx, donor, id, 1)
	require.ErrorIs(t, err, domain.ErrCampaignNotActive)

	settled, err := engine.WithdrawAndComplete(ctx, authority, id, executor)
	require.NoError(t, err)
	require.Equal(t, uint64(30), settled.Fee)
	require.Equal(t, uint64(970), settled.Payout)
	require.Equal(t, 1, settled.Receipts)

	for who, want := range map[domain.Identity]uint64{platform: 30, executor: 970, donor: 0, c.EscrowAccount(): 0} {
		got, err := s.Balance(ctx, who)
		require.NoError(t, err)
		require.Equal(t, want, got, who)
	}

	transfers, err := s.ListTransfers(ctx, c.Address)
	require.NoError(t, err)
	var kinds []domain.TransferKind
	for _, tr := range transfers {
		kinds = append(kinds, tr.Kind)
	}
	require.Equal(t, []domain.TransferKind{domain.TransferDonation, domain.TransferFee, domain.TransferPayout}, kinds)

	// The id is free again and the new campaign carries none of the old receipts.
	_, err = engine.GetReceipt(ctx, id, donor)
	require.ErrorIs(t, err, domain.ErrReceiptNotFound)
	_, err = engine.CreateCampaign(ctx, authority, escrow.CreateCampaignInput{
		ID: id, Name: "Second roof", Description: "Another one", Category: domain.CategoryEducation, TargetAmount: 500,
	})
	require.NoError(t, err)
	require.NoError(t, s.Credit(ctx, donor, 40))
	_, err = engine.DonateToCampaign(ctx, donor, id, 40)
	require.NoError(t, err)
	_, err = engine.CancelCampaign(ctx, authority, id)
	require.NoError(t, err)
	refund, err := engine.ClaimRefund(ctx, donor, id)
	require.NoError(t, err)
	require.Equal(t, uint64(40), refund.Amount)
}

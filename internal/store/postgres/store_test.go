package postgres

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"crowdfund/internal/domain"
	"crowdfund/internal/infra"
)

type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

type stubDB struct {
	exec      func(sql string, args []any) (pgconn.CommandTag, error)
	row       func(sql string, args []any) pgx.Row
	commitErr error
	queries   []string
	commits   int
	rollbacks int
}

func (s *stubDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.queries = append(s.queries, sql)
	if s.exec == nil {
		return pgconn.NewCommandTag("OK 1"), nil
	}
	return s.exec(sql, args)
}

func (s *stubDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	s.queries = append(s.queries, sql)
	if s.row == nil {
		return rowFunc(func(...any) error { return pgx.ErrNoRows })
	}
	return s.row(sql, args)
}

func (s *stubDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (s *stubDB) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	return &stubTx{db: s}, nil
}

type stubTx struct {
	pgx.Tx
	db *stubDB
}

func (t *stubTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.db.Exec(ctx, sql, args...)
}

func (t *stubTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.db.QueryRow(ctx, sql, args...)
}

func (t *stubTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.db.Query(ctx, sql, args...)
}

func (t *stubTx) Commit(context.Context) error {
	t.db.commits++
	return t.db.commitErr
}

func (t *stubTx) Rollback(context.Context) error {
	t.db.rollbacks++
	return nil
}

func newStubStore(db *stubDB) *Store {
	return New(infra.NewSQLRunner(db, zerolog.Nop()), nil)
}

func TestUpdateCampaignVersionMismatchIsConflict(t *testing.T) {
	db := &stubDB{exec: func(string, []any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}}
	s := newStubStore(db)

	err := s.Atomically(context.Background(), func(tx domain.Tx) error {
		return tx.UpdateCampaign(context.Background(), domain.Campaign{Address: "c1", RaisedAmount: 5, Version: 3})
	})
	require.ErrorIs(t, err, domain.ErrConflict)
	require.Equal(t, 1, db.rollbacks)
	require.Zero(t, db.commits)
}

func TestTransferWithoutFundsStopsAfterDebit(t *testing.T) {
	db := &stubDB{exec: func(sql string, _ []any) (pgconn.CommandTag, error) {
		if strings.Contains(sql, "balance >= $2") {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}}
	s := newStubStore(db)

	err := s.Atomically(context.Background(), func(tx domain.Tx) error {
		return tx.Transfer(context.Background(), domain.Transfer{ID: "t", From: "alice", To: "escrow:c1", Amount: 7})
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	require.Len(t, db.queries, 1)
	require.False(t, strings.HasPrefix(strings.TrimSpace(db.queries[0]), "--sql"))
}

func TestInsertCampaignUniqueViolation(t *testing.T) {
	db := &stubDB{exec: func(string, []any) (pgconn.CommandTag, error) {
		return pgconn.CommandTag{}, &pgconn.PgError{Code: "23505", Message: "duplicate key"}
	}}
	s := newStubStore(db)

	err := s.Atomically(context.Background(), func(tx domain.Tx) error {
		return tx.InsertCampaign(context.Background(), domain.Campaign{Address: "c1", ID: "c1", TargetAmount: 1})
	})
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestInsertRejectsAmountsBeyondColumnRange(t *testing.T) {
	s := newStubStore(&stubDB{})
	err := s.Atomically(context.Background(), func(tx domain.Tx) error {
		return tx.InsertCampaign(context.Background(), domain.Campaign{Address: "c1", TargetAmount: domain.MaxAmount + 1})
	})
	require.ErrorIs(t, err, domain.ErrMathOverflow)
}

func TestSerializationFailureAtCommitIsConflict(t *testing.T) {
	db := &stubDB{commitErr: &pgconn.PgError{Code: "40001", Message: "could not serialize access"}}
	s := newStubStore(db)

	err := s.Atomically(context.Background(), func(domain.Tx) error { return nil })
	require.ErrorIs(t, err, domain.ErrConflict)
	require.Equal(t, 1, db.commits)
}

func TestMissingRowsMapToNotFound(t *testing.T) {
	db := &stubDB{exec: func(string, []any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("DELETE 0"), nil
	}}
	s := newStubStore(db)

	err := s.Atomically(context.Background(), func(tx domain.Tx) error {
		ctx := context.Background()
		_, err := tx.Campaign(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrNotFound)
		_, err = tx.Receipt(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrNotFound)
		require.ErrorIs(t, tx.DeleteReceipt(ctx, "missing"), domain.ErrNotFound)
		require.ErrorIs(t, tx.DeleteCampaign(ctx, "missing"), domain.ErrNotFound)
		b, err := tx.Balance(ctx, "nobody")
		require.NoError(t, err)
		require.Zero(t, b)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, db.commits)
}

func TestCampaignScanDecodesLists(t *testing.T) {
	db := &stubDB{row: func(string, []any) pgx.Row {
		return rowFunc(func(dest ...any) error {
			*dest[0].(*string) = "addr"
			*dest[1].(*string) = "well-1"
			*dest[4].(*string) = "water"
			*dest[6].(*[]byte) = []byte(`["families:40"]`)
			*dest[7].(*[]byte) = []byte(`[]`)
			*dest[8].(*int64) = 100
			*dest[9].(*int64) = 40
			*dest[10].(*string) = "active"
			*dest[11].(*string) = "auth"
			*dest[13].(*int64) = 2
			return nil
		})
	}}
	s := newStubStore(db)

	err := s.Atomically(context.Background(), func(tx domain.Tx) error {
		c, err := tx.Campaign(context.Background(), "addr")
		require.NoError(t, err)
		require.Equal(t, domain.Address("addr"), c.Address)
		require.Equal(t, domain.CategoryWater, c.Category)
		require.Equal(t, []string{"families:40"}, c.Metrics)
		require.Empty(t, c.MediaURIs)
		require.Equal(t, uint64(100), c.TargetAmount)
		require.Equal(t, uint64(40), c.RaisedAmount)
		require.Equal(t, domain.CampaignActive, c.Status)
		require.Equal(t, int64(2), c.Version)
		return nil
	})
	require.NoError(t, err)
}

// Package postgres persists campaigns, receipts and the ledger in
// PostgreSQL through the marker-checked SQL runner.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"crowdfund/internal/domain"
	"crowdfund/internal/infra"
	"crowdfund/internal/sqlinline"
)

// Store implements domain.Store on PostgreSQL.
type Store struct {
	runner *infra.SQLRunner
	close  func()
}

// New wraps runner. closeFn, when set, is called by Close.
func New(runner *infra.SQLRunner, closeFn func()) *Store {
	return &Store{runner: runner, close: closeFn}
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.runner.Exec(ctx, sqlinline.QEnsureSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Atomically runs fn in a read-committed transaction. Campaign reads take a
// row lock, which serializes transitions on the same campaign.
func (s *Store) Atomically(ctx context.Context, fn func(tx domain.Tx) error) error {
	err := s.runner.InTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(exec infra.SQLExecutor) error {
		return fn(&pgTx{exec: exec})
	})
	return mapError(err)
}

// Credit adds amount to account.
func (s *Store) Credit(ctx context.Context, account domain.Identity, amount uint64) error {
	v, err := toStored(amount)
	if err != nil {
		return err
	}
	_, err = s.runner.Exec(ctx, sqlinline.QCreditAccount, string(account), v)
	return mapError(err)
}

// Balance returns the committed balance of account.
func (s *Store) Balance(ctx context.Context, account domain.Identity) (uint64, error) {
	return balance(ctx, s.runner, account)
}

// ListCampaigns returns all campaigns ordered by id.
func (s *Store) ListCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	rows, err := s.runner.Query(ctx, sqlinline.QListCampaigns)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var items []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("list campaigns: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return items, nil
}

// ListTransfers returns the transfers recorded for campaign in commit order.
func (s *Store) ListTransfers(ctx context.Context, campaign domain.Address) ([]domain.Transfer, error) {
	rows, err := s.runner.Query(ctx, sqlinline.QListTransfers, string(campaign))
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var items []domain.Transfer
	for rows.Next() {
		var t domain.Transfer
		var from, to, kind, addr string
		var amount int64
		if err := rows.Scan(&t.ID, &from, &to, &amount, &kind, &addr, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("list transfers: %w", err)
		}
		t.From, t.To = domain.Identity(from), domain.Identity(to)
		t.Amount = uint64(amount)
		t.Kind = domain.TransferKind(kind)
		t.Campaign = domain.Address(addr)
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return items, nil
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

type pgTx struct {
	exec infra.SQLExecutor
}

func (tx *pgTx) Campaign(ctx context.Context, addr domain.Address) (domain.Campaign, error) {
	row := tx.exec.QueryRow(ctx, sqlinline.QSelectCampaignForUpdate, string(addr))
	c, err := scanCampaign(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.Campaign{}, domain.ErrNotFound
		}
		return domain.Campaign{}, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (tx *pgTx) InsertCampaign(ctx context.Context, c domain.Campaign) error {
	metrics, err := json.Marshal(nonNil(c.Metrics))
	if err != nil {
		return err
	}
	media, err := json.Marshal(nonNil(c.MediaURIs))
	if err != nil {
		return err
	}
	target, err := toStored(c.TargetAmount)
	if err != nil {
		return err
	}
	raised, err := toStored(c.RaisedAmount)
	if err != nil {
		return err
	}
	deposit, err := toStored(c.Deposit)
	if err != nil {
		return err
	}
	_, err = tx.exec.Exec(ctx, sqlinline.QInsertCampaign,
		string(c.Address), c.ID, c.Name, c.Description, string(c.Category), c.Location,
		string(metrics), string(media), target, raised, string(c.Status), string(c.Authority),
		deposit, c.CreatedAt, c.Deadline,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

func (tx *pgTx) UpdateCampaign(ctx context.Context, c domain.Campaign) error {
	raised, err := toStored(c.RaisedAmount)
	if err != nil {
		return err
	}
	tag, err := tx.exec.Exec(ctx, sqlinline.QUpdateCampaignState, string(c.Address), raised, string(c.Status), c.Version)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (tx *pgTx) DeleteCampaign(ctx context.Context, addr domain.Address) error {
	tag, err := tx.exec.Exec(ctx, sqlinline.QDeleteCampaign, string(addr))
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (tx *pgTx) Receipt(ctx context.Context, addr domain.Address) (domain.DonationReceipt, error) {
	r, err := scanReceipt(tx.exec.QueryRow(ctx, sqlinline.QSelectReceipt, string(addr)))
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.DonationReceipt{}, domain.ErrNotFound
		}
		return domain.DonationReceipt{}, fmt.Errorf("get receipt: %w", err)
	}
	return r, nil
}

func (tx *pgTx) InsertReceipt(ctx context.Context, r domain.DonationReceipt) error {
	amount, err := toStored(r.Amount)
	if err != nil {
		return err
	}
	deposit, err := toStored(r.Deposit)
	if err != nil {
		return err
	}
	_, err = tx.exec.Exec(ctx, sqlinline.QInsertReceipt,
		string(r.Address), string(r.Campaign), string(r.Donor), amount, deposit, r.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

func (tx *pgTx) DeleteReceipt(ctx context.Context, addr domain.Address) error {
	tag, err := tx.exec.Exec(ctx, sqlinline.QDeleteReceipt, string(addr))
	if err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (tx *pgTx) DeleteReceipts(ctx context.Context, campaign domain.Address) ([]domain.DonationReceipt, error) {
	rows, err := tx.exec.Query(ctx, sqlinline.QDeleteCampaignReceipts, string(campaign))
	if err != nil {
		return nil, fmt.Errorf("delete receipts: %w", err)
	}
	defer rows.Close()

	var items []domain.DonationReceipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("delete receipts: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("delete receipts: %w", err)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Address < items[j].Address })
	return items, nil
}

func (tx *pgTx) Balance(ctx context.Context, account domain.Identity) (uint64, error) {
	return balance(ctx, tx.exec, account)
}

func (tx *pgTx) Transfer(ctx context.Context, t domain.Transfer) error {
	amount, err := toStored(t.Amount)
	if err != nil {
		return err
	}
	tag, err := tx.exec.Exec(ctx, sqlinline.QDebitAccount, string(t.From), amount)
	if err != nil {
		return fmt.Errorf("debit %s: %w", t.From, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientFunds
	}
	if _, err := tx.exec.Exec(ctx, sqlinline.QCreditAccount, string(t.To), amount); err != nil {
		return fmt.Errorf("credit %s: %w", t.To, mapError(err))
	}
	if _, err := tx.exec.Exec(ctx, sqlinline.QInsertTransfer,
		t.ID, string(t.From), string(t.To), amount, string(t.Kind), string(t.Campaign), t.CreatedAt,
	); err != nil {
		return fmt.Errorf("record transfer: %w", err)
	}
	return nil
}

func balance(ctx context.Context, exec infra.SQLExecutor, account domain.Identity) (uint64, error) {
	var v int64
	if err := exec.QueryRow(ctx, sqlinline.QSelectBalance, string(account)).Scan(&v); err != nil {
		if infra.IsNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return uint64(v), nil
}

func scanCampaign(row pgx.Row) (domain.Campaign, error) {
	var c domain.Campaign
	var address, category, status, authority string
	var metrics, media []byte
	var target, raised, deposit int64
	err := row.Scan(
		&address, &c.ID, &c.Name, &c.Description, &category, &c.Location, &metrics, &media,
		&target, &raised, &status, &authority, &deposit, &c.Version, &c.CreatedAt, &c.Deadline,
	)
	if err != nil {
		return domain.Campaign{}, err
	}
	if err := json.Unmarshal(metrics, &c.Metrics); err != nil {
		return domain.Campaign{}, fmt.Errorf("decode metrics: %w", err)
	}
	if err := json.Unmarshal(media, &c.MediaURIs); err != nil {
		return domain.Campaign{}, fmt.Errorf("decode media uris: %w", err)
	}
	c.Address = domain.Address(address)
	c.Category = domain.Category(category)
	c.Status = domain.CampaignStatus(status)
	c.Authority = domain.Identity(authority)
	c.TargetAmount = uint64(target)
	c.RaisedAmount = uint64(raised)
	c.Deposit = uint64(deposit)
	return c, nil
}

func scanReceipt(row pgx.Row) (domain.DonationReceipt, error) {
	var r domain.DonationReceipt
	var address, campaign, donor string
	var amount, deposit int64
	if err := row.Scan(&address, &campaign, &donor, &amount, &deposit, &r.CreatedAt); err != nil {
		return domain.DonationReceipt{}, err
	}
	r.Address = domain.Address(address)
	r.Campaign = domain.Address(campaign)
	r.Donor = domain.Identity(donor)
	r.Amount = uint64(amount)
	r.Deposit = uint64(deposit)
	return r, nil
}

func toStored(v uint64) (int64, error) {
	if v > domain.MaxAmount {
		return 0, domain.ErrMathOverflow
	}
	return int64(v), nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// mapError translates serialization, deadlock and range failures into
// domain errors and leaves everything else untouched.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.Message)
	case "22003":
		return fmt.Errorf("%w: %s", domain.ErrMathOverflow, pgErr.Message)
	}
	return err
}

var _ domain.Store = (*Store)(nil)

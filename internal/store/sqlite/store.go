// Package sqlite persists campaigns, receipts and the ledger in a single
// SQLite file. Units of work run in BEGIN IMMEDIATE transactions, so writers
// are serialized by the database lock.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"crowdfund/internal/domain"
	"crowdfund/internal/store/sqlite/migrations"
)

// Store implements domain.Store on SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Atomically runs fn in one immediate transaction.
func (s *Store) Atomically(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return mapError(fmt.Errorf("begin: %w", err))
	}
	if err := fn(&sqlTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return mapError(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Credit adds amount to account.
func (s *Store) Credit(ctx context.Context, account domain.Identity, amount uint64) error {
	return s.Atomically(ctx, func(tx domain.Tx) error {
		return tx.(*sqlTx).credit(ctx, account, amount)
	})
}

// Balance returns the committed balance of account.
func (s *Store) Balance(ctx context.Context, account domain.Identity) (uint64, error) {
	return balance(ctx, s.sqlDB, account)
}

// ListCampaigns returns all campaigns ordered by id.
func (s *Store) ListCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+campaignColumns+`
FROM campaigns
ORDER BY id ASC
`)
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
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, from_account, to_account, amount, kind, campaign, created_at
FROM ledger_transfers
WHERE campaign = ?
ORDER BY seq ASC
`, string(campaign))
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var items []domain.Transfer
	for rows.Next() {
		var t domain.Transfer
		var from, to, kind, addr string
		var amount, createdAt int64
		if err := rows.Scan(&t.ID, &from, &to, &amount, &kind, &addr, &createdAt); err != nil {
			return nil, fmt.Errorf("list transfers: %w", err)
		}
		t.From, t.To = domain.Identity(from), domain.Identity(to)
		t.Amount = uint64(amount)
		t.Kind = domain.TransferKind(kind)
		t.Campaign = domain.Address(addr)
		t.CreatedAt = fromMillis(createdAt)
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return items, nil
}

const campaignColumns = `address, id, name, description, category, location, metrics, media_uris,
	target_amount, raised_amount, status, authority, deposit, version, created_at, deadline`

const receiptColumns = `address, campaign, donor, amount, deposit, created_at`

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Campaign(ctx context.Context, addr domain.Address) (domain.Campaign, error) {
	row := t.tx.QueryRowContext(ctx, `
SELECT `+campaignColumns+`
FROM campaigns
WHERE address = ?
`, string(addr))
	c, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Campaign{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (t *sqlTx) InsertCampaign(ctx context.Context, c domain.Campaign) error {
	metrics, err := encodeList(c.Metrics)
	if err != nil {
		return err
	}
	media, err := encodeList(c.MediaURIs)
	if err != nil {
		return err
	}
	if c.TargetAmount > domain.MaxAmount || c.RaisedAmount > domain.MaxAmount || c.Deposit > domain.MaxAmount {
		return domain.ErrMathOverflow
	}
	_, err = t.tx.ExecContext(ctx, `
INSERT INTO campaigns (`+campaignColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
`,
		string(c.Address), c.ID, c.Name, c.Description, string(c.Category), c.Location,
		metrics, media, int64(c.TargetAmount), int64(c.RaisedAmount), string(c.Status), string(c.Authority),
		int64(c.Deposit), toMillis(c.CreatedAt), toMillis(c.Deadline),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

func (t *sqlTx) UpdateCampaign(ctx context.Context, c domain.Campaign) error {
	if c.RaisedAmount > domain.MaxAmount {
		return domain.ErrMathOverflow
	}
	res, err := t.tx.ExecContext(ctx, `
UPDATE campaigns
SET raised_amount = ?, status = ?, version = version + 1
WHERE address = ? AND version = ?
`, int64(c.RaisedAmount), string(c.Status), string(c.Address), c.Version)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	return requireRow(res, domain.ErrConflict)
}

func (t *sqlTx) DeleteCampaign(ctx context.Context, addr domain.Address) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM campaigns WHERE address = ?`, string(addr))
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	return requireRow(res, domain.ErrNotFound)
}

func (t *sqlTx) Receipt(ctx context.Context, addr domain.Address) (domain.DonationReceipt, error) {
	r, err := scanReceipt(t.tx.QueryRowContext(ctx, `
SELECT `+receiptColumns+`
FROM donation_receipts
WHERE address = ?
`, string(addr)))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DonationReceipt{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.DonationReceipt{}, fmt.Errorf("get receipt: %w", err)
	}
	return r, nil
}

func (t *sqlTx) InsertReceipt(ctx context.Context, r domain.DonationReceipt) error {
	if r.Amount > domain.MaxAmount || r.Deposit > domain.MaxAmount {
		return domain.ErrMathOverflow
	}
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO donation_receipts (address, campaign, donor, amount, deposit, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`, string(r.Address), string(r.Campaign), string(r.Donor), int64(r.Amount), int64(r.Deposit), toMillis(r.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

func (t *sqlTx) DeleteReceipt(ctx context.Context, addr domain.Address) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM donation_receipts WHERE address = ?`, string(addr))
	if err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}
	return requireRow(res, domain.ErrNotFound)
}

func (t *sqlTx) DeleteReceipts(ctx context.Context, campaign domain.Address) ([]domain.DonationReceipt, error) {
	rows, err := t.tx.QueryContext(ctx, `
SELECT `+receiptColumns+`
FROM donation_receipts
WHERE campaign = ?
ORDER BY address ASC
`, string(campaign))
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	var items []domain.DonationReceipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("list receipts: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	_ = rows.Close()

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM donation_receipts WHERE campaign = ?`, string(campaign)); err != nil {
		return nil, fmt.Errorf("delete receipts: %w", err)
	}
	return items, nil
}

func (t *sqlTx) Balance(ctx context.Context, account domain.Identity) (uint64, error) {
	return balance(ctx, t.tx, account)
}

func (t *sqlTx) Transfer(ctx context.Context, tr domain.Transfer) error {
	if tr.Amount > domain.MaxAmount {
		return domain.ErrMathOverflow
	}
	now := time.Now().UTC().UnixMilli()
	res, err := t.tx.ExecContext(ctx, `
UPDATE ledger_accounts
SET balance = balance - ?, updated_at = ?
WHERE account = ? AND balance >= ?
`, int64(tr.Amount), now, string(tr.From), int64(tr.Amount))
	if err != nil {
		return fmt.Errorf("debit %s: %w", tr.From, err)
	}
	if err := requireRow(res, domain.ErrInsufficientFunds); err != nil {
		return err
	}
	if err := t.credit(ctx, tr.To, tr.Amount); err != nil {
		return fmt.Errorf("credit %s: %w", tr.To, err)
	}
	if _, err := t.tx.ExecContext(ctx, `
INSERT INTO ledger_transfers (id, from_account, to_account, amount, kind, campaign, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, tr.ID, string(tr.From), string(tr.To), int64(tr.Amount), string(tr.Kind), string(tr.Campaign), toMillis(tr.CreatedAt)); err != nil {
		return fmt.Errorf("record transfer: %w", err)
	}
	return nil
}

// credit checks the sum in Go because SQLite silently promotes an
// overflowing integer sum to REAL.
func (t *sqlTx) credit(ctx context.Context, account domain.Identity, amount uint64) error {
	current, err := balance(ctx, t.tx, account)
	if err != nil {
		return err
	}
	next, err := domain.CheckedAdd(current, amount)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
INSERT INTO ledger_accounts (account, balance, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(account) DO UPDATE SET balance = excluded.balance, updated_at = excluded.updated_at
`, string(account), int64(next), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("credit account: %w", err)
	}
	return nil
}

func balance(ctx context.Context, q queryer, account domain.Identity) (uint64, error) {
	var v int64
	err := q.QueryRowContext(ctx, `SELECT balance FROM ledger_accounts WHERE account = ?`, string(account)).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return uint64(v), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row scanner) (domain.Campaign, error) {
	var c domain.Campaign
	var address, category, status, authority, metrics, media string
	var target, raised, deposit, createdAt, deadline int64
	err := row.Scan(
		&address, &c.ID, &c.Name, &c.Description, &category, &c.Location, &metrics, &media,
		&target, &raised, &status, &authority, &deposit, &c.Version, &createdAt, &deadline,
	)
	if err != nil {
		return domain.Campaign{}, err
	}
	if err := json.Unmarshal([]byte(metrics), &c.Metrics); err != nil {
		return domain.Campaign{}, fmt.Errorf("decode metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(media), &c.MediaURIs); err != nil {
		return domain.Campaign{}, fmt.Errorf("decode media uris: %w", err)
	}
	c.Address = domain.Address(address)
	c.Category = domain.Category(category)
	c.Status = domain.CampaignStatus(status)
	c.Authority = domain.Identity(authority)
	c.TargetAmount = uint64(target)
	c.RaisedAmount = uint64(raised)
	c.Deposit = uint64(deposit)
	c.CreatedAt = fromMillis(createdAt)
	c.Deadline = fromMillis(deadline)
	return c, nil
}

func scanReceipt(row scanner) (domain.DonationReceipt, error) {
	var r domain.DonationReceipt
	var address, campaign, donor string
	var amount, deposit, createdAt int64
	if err := row.Scan(&address, &campaign, &donor, &amount, &deposit, &createdAt); err != nil {
		return domain.DonationReceipt{}, err
	}
	r.Address = domain.Address(address)
	r.Campaign = domain.Address(campaign)
	r.Donor = domain.Identity(donor)
	r.Amount = uint64(amount)
	r.Deposit = uint64(deposit)
	r.CreatedAt = fromMillis(createdAt)
	return r, nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func requireRow(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return none
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

// mapError reports lock contention that outlasted the busy timeout as a
// conflict.
func mapError(err error) error {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		// Extended result codes keep the primary code in the low byte.
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return fmt.Errorf("%w: %s", domain.ErrConflict, sqliteErr.Error())
		}
	}
	return err
}

var _ domain.Store = (*Store)(nil)

// Package memstore provides an in-memory record store and ledger. Units of
// work are serialized by a store-wide lock and staged in an overlay that is
// applied only on success.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"

	"crowdfund/internal/domain"
)

// Store keeps campaigns, receipts, balances and transfers in memory.
type Store struct {
	mu        sync.Mutex
	campaigns map[domain.Address]domain.Campaign
	receipts  map[domain.Address]domain.DonationReceipt
	balances  map[domain.Identity]uint64
	transfers []domain.Transfer
}

// New returns an empty store.
func New() *Store {
	return &Store{
		campaigns: make(map[domain.Address]domain.Campaign),
		receipts:  make(map[domain.Address]domain.DonationReceipt),
		balances:  make(map[domain.Identity]uint64),
	}
}

// Atomically runs fn with exclusive access and applies its writes only when
// fn returns nil.
func (s *Store) Atomically(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:     s,
		campaigns: make(map[domain.Address]*domain.Campaign),
		receipts:  make(map[domain.Address]*domain.DonationReceipt),
		balances:  make(map[domain.Identity]uint64),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.apply()
	return nil
}

// Credit adds amount to account.
func (s *Store) Credit(ctx context.Context, account domain.Identity, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := domain.CheckedAdd(s.balances[account], amount)
	if err != nil {
		return err
	}
	s.balances[account] = next
	return nil
}

// Balance returns the committed balance of account.
func (s *Store) Balance(ctx context.Context, account domain.Identity) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[account], nil
}

// ListCampaigns returns every committed campaign ordered by id.
func (s *Store) ListCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		out = append(out, cloneCampaign(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListTransfers returns the transfers recorded for campaign in commit order.
func (s *Store) ListTransfers(ctx context.Context, campaign domain.Address) ([]domain.Transfer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Transfer
	for _, t := range s.transfers {
		if t.Campaign == campaign {
			out = append(out, t)
		}
	}
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

type memTx struct {
	store *Store
	// nil entries mark deletions
	campaigns map[domain.Address]*domain.Campaign
	receipts  map[domain.Address]*domain.DonationReceipt
	balances  map[domain.Identity]uint64
	transfers []domain.Transfer
}

func (tx *memTx) Campaign(ctx context.Context, addr domain.Address) (domain.Campaign, error) {
	if c, ok := tx.campaigns[addr]; ok {
		if c == nil {
			return domain.Campaign{}, domain.ErrNotFound
		}
		return cloneCampaign(*c), nil
	}
	c, ok := tx.store.campaigns[addr]
	if !ok {
		return domain.Campaign{}, domain.ErrNotFound
	}
	return cloneCampaign(c), nil
}

func (tx *memTx) InsertCampaign(ctx context.Context, c domain.Campaign) error {
	if _, err := tx.Campaign(ctx, c.Address); err == nil {
		return domain.ErrAlreadyExists
	}
	c = cloneCampaign(c)
	tx.campaigns[c.Address] = &c
	return nil
}

func (tx *memTx) UpdateCampaign(ctx context.Context, c domain.Campaign) error {
	cur, err := tx.Campaign(ctx, c.Address)
	if err != nil {
		return err
	}
	if cur.Version != c.Version {
		return domain.ErrConflict
	}
	c = cloneCampaign(c)
	c.Version++
	tx.campaigns[c.Address] = &c
	return nil
}

func (tx *memTx) DeleteCampaign(ctx context.Context, addr domain.Address) error {
	if _, err := tx.Campaign(ctx, addr); err != nil {
		return err
	}
	tx.campaigns[addr] = nil
	return nil
}

func (tx *memTx) Receipt(ctx context.Context, addr domain.Address) (domain.DonationReceipt, error) {
	if r, ok := tx.receipts[addr]; ok {
		if r == nil {
			return domain.DonationReceipt{}, domain.ErrNotFound
		}
		return *r, nil
	}
	r, ok := tx.store.receipts[addr]
	if !ok {
		return domain.DonationReceipt{}, domain.ErrNotFound
	}
	return r, nil
}

func (tx *memTx) InsertReceipt(ctx context.Context, r domain.DonationReceipt) error {
	if _, err := tx.Receipt(ctx, r.Address); err == nil {
		return domain.ErrAlreadyExists
	}
	tx.receipts[r.Address] = &r
	return nil
}

func (tx *memTx) DeleteReceipt(ctx context.Context, addr domain.Address) error {
	if _, err := tx.Receipt(ctx, addr); err != nil {
		return err
	}
	tx.receipts[addr] = nil
	return nil
}

func (tx *memTx) DeleteReceipts(ctx context.Context, campaign domain.Address) ([]domain.DonationReceipt, error) {
	var out []domain.DonationReceipt
	for addr, r := range tx.store.receipts {
		if _, staged := tx.receipts[addr]; staged || r.Campaign != campaign {
			continue
		}
		out = append(out, r)
	}
	for _, r := range tx.receipts {
		if r != nil && r.Campaign == campaign {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	for _, r := range out {
		tx.receipts[r.Address] = nil
	}
	return out, nil
}

func (tx *memTx) Balance(ctx context.Context, account domain.Identity) (uint64, error) {
	if b, ok := tx.balances[account]; ok {
		return b, nil
	}
	return tx.store.balances[account], nil
}

func (tx *memTx) Transfer(ctx context.Context, t domain.Transfer) error {
	from, _ := tx.Balance(ctx, t.From)
	if from < t.Amount {
		return domain.ErrInsufficientFunds
	}
	if t.From == t.To {
		tx.transfers = append(tx.transfers, t)
		return nil
	}
	to, _ := tx.Balance(ctx, t.To)
	next, err := domain.CheckedAdd(to, t.Amount)
	if err != nil {
		return err
	}
	tx.balances[t.From] = from - t.Amount
	tx.balances[t.To] = next
	tx.transfers = append(tx.transfers, t)
	return nil
}

func (tx *memTx) apply() {
	s := tx.store
	for addr, c := range tx.campaigns {
		if c == nil {
			delete(s.campaigns, addr)
			continue
		}
		s.campaigns[addr] = *c
	}
	for addr, r := range tx.receipts {
		if r == nil {
			delete(s.receipts, addr)
			continue
		}
		s.receipts[addr] = *r
	}
	for account, b := range tx.balances {
		s.balances[account] = b
	}
	s.transfers = append(s.transfers, tx.transfers...)
}

func cloneCampaign(c domain.Campaign) domain.Campaign {
	c.Metrics = slices.Clone(c.Metrics)
	c.MediaURIs = slices.Clone(c.MediaURIs)
	return c
}

var _ domain.Store = (*Store)(nil)

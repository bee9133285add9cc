package domain

import "context"

// Tx is one atomic unit of work against the record store and ledger.
// Nothing written through a Tx is visible to other units until the
// function passed to Store.Atomically returns nil.
type Tx interface {
	// Campaign loads the record at addr and holds it exclusively until the
	// unit of work ends. Absent records return ErrNotFound.
	Campaign(ctx context.Context, addr Address) (Campaign, error)
	// InsertCampaign fails with ErrAlreadyExists when addr is taken.
	InsertCampaign(ctx context.Context, c Campaign) error
	// UpdateCampaign writes c if the stored version still equals c.Version;
	// the stored version becomes c.Version+1. A mismatch is ErrConflict.
	UpdateCampaign(ctx context.Context, c Campaign) error
	DeleteCampaign(ctx context.Context, addr Address) error

	Receipt(ctx context.Context, addr Address) (DonationReceipt, error)
	// InsertReceipt fails with ErrAlreadyExists when addr is taken.
	InsertReceipt(ctx context.Context, r DonationReceipt) error
	DeleteReceipt(ctx context.Context, addr Address) error
	// DeleteReceipts removes every receipt recorded against campaign and
	// returns them ordered by address.
	DeleteReceipts(ctx context.Context, campaign Address) ([]DonationReceipt, error)

	Balance(ctx context.Context, account Identity) (uint64, error)
	// Transfer moves t.Amount from t.From to t.To and records t. It fails
	// with ErrInsufficientFunds when t.From cannot cover the amount.
	Transfer(ctx context.Context, t Transfer) error
}

// Store is the persistent keyed store behind the escrow engine.
type Store interface {
	Atomically(ctx context.Context, fn func(tx Tx) error) error
	// Credit adds amount to an account outside any escrow flow.
	Credit(ctx context.Context, account Identity, amount uint64) error
	Balance(ctx context.Context, account Identity) (uint64, error)
	ListCampaigns(ctx context.Context) ([]Campaign, error)
	ListTransfers(ctx context.Context, campaign Address) ([]Transfer, error)
	Close() error
}

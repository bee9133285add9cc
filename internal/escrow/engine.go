// Package escrow implements the campaign lifecycle: creation, donations,
// withdrawal with fee settlement, cancellation and refunds. Every operation
// runs as one atomic unit of work against a domain.Store.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"crowdfund/internal/domain"
	"crowdfund/internal/locator"
	"crowdfund/internal/settlement"
)

// DefaultCampaignDuration is how long a campaign accepts donations.
const DefaultCampaignDuration = 30 * 24 * time.Hour

// Options configures an Engine.
type Options struct {
	// Platform receives withdrawal fees. Required.
	Platform         domain.Identity
	FeeNumerator     uint64
	FeeDenominator   uint64
	CampaignDuration time.Duration
	// Storage deposits reserved from the payer of each new record.
	CampaignDeposit uint64
	ReceiptDeposit  uint64
	Logger          *zerolog.Logger
	Now             func() time.Time
}

// Engine executes campaign transitions.
type Engine struct {
	store  domain.Store
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New validates opts and returns an engine over store.
func New(store domain.Store, opts Options) (*Engine, error) {
	if store == nil {
		return nil, errors.New("escrow: store is required")
	}
	if opts.Platform == "" {
		return nil, errors.New("escrow: platform identity is required")
	}
	if opts.Platform.Reserved() {
		return nil, fmt.Errorf("escrow: platform identity %q names a ledger account", opts.Platform)
	}
	if opts.FeeDenominator == 0 && opts.FeeNumerator == 0 {
		opts.FeeNumerator = settlement.DefaultFeeNumerator
		opts.FeeDenominator = settlement.DefaultFeeDenominator
	}
	if _, err := settlement.Settle(0, opts.FeeNumerator, opts.FeeDenominator); err != nil {
		return nil, fmt.Errorf("escrow: %w", err)
	}
	if opts.CampaignDuration <= 0 {
		opts.CampaignDuration = DefaultCampaignDuration
	}
	if opts.CampaignDeposit > domain.MaxAmount || opts.ReceiptDeposit > domain.MaxAmount {
		return nil, fmt.Errorf("escrow: deposit: %w", domain.ErrMathOverflow)
	}
	e := &Engine{store: store, opts: opts, logger: zerolog.Nop(), now: time.Now}
	if opts.Logger != nil {
		e.logger = *opts.Logger
	}
	if opts.Now != nil {
		e.now = opts.Now
	}
	return e, nil
}

// DonationResult describes a committed donation.
type DonationResult struct {
	Campaign domain.Campaign
	Receipt  domain.DonationReceipt
	// Funded reports whether this donation moved the campaign to Funded.
	Funded bool
}

// Settlement describes a completed withdrawal.
type Settlement struct {
	Campaign domain.Campaign
	Platform domain.Identity
	Executor domain.Identity
	settlement.Withdrawal
	// Released is the campaign deposit returned to the authority.
	Released uint64
	// Receipts is the number of donation receipts closed with the campaign.
	Receipts int
}

// CancelResult describes a committed cancellation.
type CancelResult struct {
	Campaign domain.Campaign
	// Closed is set when the campaign held no funds and was deleted.
	Closed   bool
	Released uint64
}

// Refund describes a committed refund claim.
type Refund struct {
	Campaign domain.Campaign
	Receipt  domain.DonationReceipt
	Amount   uint64
	Released uint64
}

// CreateCampaign creates an Active campaign owned by caller.
func (e *Engine) CreateCampaign(ctx context.Context, caller domain.Identity, in CreateCampaignInput) (domain.Campaign, error) {
	if err := Require(caller, caller); err != nil {
		return domain.Campaign{}, err
	}
	if err := validateCampaignID(in.ID); err != nil {
		return domain.Campaign{}, err
	}
	addr, err := locator.Campaign(in.ID)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("%w: %v", domain.ErrInvalidCampaignID, err)
	}

	var created domain.Campaign
	err = e.store.Atomically(ctx, func(tx domain.Tx) error {
		if _, err := tx.Campaign(ctx, addr); err == nil {
			return domain.ErrAlreadyExists
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		in, err := normalize(in)
		if err != nil {
			return err
		}
		now := e.now().UTC()
		c := domain.Campaign{
			Address:      addr,
			ID:           in.ID,
			Name:         in.Name,
			Description:  in.Description,
			Category:     in.Category,
			Location:     in.Location,
			Metrics:      in.Metrics,
			MediaURIs:    in.MediaURIs,
			TargetAmount: in.TargetAmount,
			Status:       domain.CampaignActive,
			Authority:    caller,
			Deposit:      e.opts.CampaignDeposit,
			CreatedAt:    now,
			Deadline:     now.Add(e.opts.CampaignDuration),
		}
		if err := e.transfer(ctx, tx, caller, domain.DepositAccount, c.Deposit, domain.TransferDeposit, addr); err != nil {
			return err
		}
		if err := tx.InsertCampaign(ctx, c); err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		return domain.Campaign{}, err
	}
	e.logger.Info().
		Str("campaign", created.ID).
		Str("authority", string(caller)).
		Uint64("target", created.TargetAmount).
		Msg("campaign created")
	return created, nil
}

// DonateToCampaign moves amount from caller into the campaign escrow and
// records the caller's receipt. A donor may donate once per campaign.
func (e *Engine) DonateToCampaign(ctx context.Context, caller domain.Identity, campaignID string, amount uint64) (DonationResult, error) {
	// The receipt is written for the caller, so the caller is the required
	// identity.
	if err := Require(caller, caller); err != nil {
		return DonationResult{}, err
	}
	addr, err := e.campaignAddress(campaignID)
	if err != nil {
		return DonationResult{}, err
	}

	var res DonationResult
	err = e.store.Atomically(ctx, func(tx domain.Tx) error {
		c, err := tx.Campaign(ctx, addr)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrCampaignNotActive
		}
		if err != nil {
			return err
		}
		if c.Status != domain.CampaignActive {
			return domain.ErrCampaignNotActive
		}
		if amount == 0 {
			return domain.ErrInvalidAmount
		}
		now := e.now().UTC()
		if !now.Before(c.Deadline) {
			return domain.ErrCampaignExpired
		}

		receiptAddr, err := locator.Donation(addr, caller)
		if err != nil {
			return err
		}
		if _, err := tx.Receipt(ctx, receiptAddr); err == nil {
			return domain.ErrDuplicateDonation
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		raised, err := domain.CheckedAdd(c.RaisedAmount, amount)
		if err != nil {
			return err
		}

		if err := e.transfer(ctx, tx, caller, c.EscrowAccount(), amount, domain.TransferDonation, addr); err != nil {
			return err
		}
		if err := e.transfer(ctx, tx, caller, domain.DepositAccount, e.opts.ReceiptDeposit, domain.TransferDeposit, addr); err != nil {
			return err
		}
		receipt := domain.DonationReceipt{
			Address:   receiptAddr,
			Campaign:  addr,
			Donor:     caller,
			Amount:    amount,
			Deposit:   e.opts.ReceiptDeposit,
			CreatedAt: now,
		}
		if err := tx.InsertReceipt(ctx, receipt); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				return domain.ErrDuplicateDonation
			}
			return err
		}

		c.RaisedAmount = raised
		funded := c.RaisedAmount >= c.TargetAmount
		if funded {
			c.Status = domain.CampaignFunded
		}
		if err := tx.UpdateCampaign(ctx, c); err != nil {
			return err
		}
		c.Version++
		res = DonationResult{Campaign: c, Receipt: receipt, Funded: funded}
		return nil
	})
	if err != nil {
		return DonationResult{}, err
	}
	e.logger.Info().
		Str("campaign", res.Campaign.ID).
		Str("donor", string(caller)).
		Uint64("amount", amount).
		Uint64("raised", res.Campaign.RaisedAmount).
		Bool("funded", res.Funded).
		Msg("donation received")
	return res, nil
}

// WithdrawAndComplete pays out a Funded campaign and deletes it together with
// its receipts. The fee is taken from the target amount; anything raised
// beyond the target goes to the executor as surplus, so escrow always ends
// empty.
func (e *Engine) WithdrawAndComplete(ctx context.Context, caller domain.Identity, campaignID string, executor domain.Identity) (Settlement, error) {
	addr, err := e.campaignAddress(campaignID)
	if err != nil {
		return Settlement{}, err
	}

	var res Settlement
	err = e.store.Atomically(ctx, func(tx domain.Tx) error {
		c, err := tx.Campaign(ctx, addr)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrCampaignNotFunded
		}
		if err != nil {
			return err
		}
		if err := Require(caller, c.Authority); err != nil {
			return err
		}
		if c.Status != domain.CampaignFunded {
			return domain.ErrCampaignNotFunded
		}
		if executor == "" || executor.Reserved() {
			return domain.ErrInvalidExecutor
		}

		w, err := settlement.Withdraw(c.RaisedAmount, c.TargetAmount, e.opts.FeeNumerator, e.opts.FeeDenominator)
		if err != nil {
			return err
		}
		vault := c.EscrowAccount()
		if err := e.transfer(ctx, tx, vault, e.opts.Platform, w.Fee, domain.TransferFee, addr); err != nil {
			return err
		}
		if err := e.transfer(ctx, tx, vault, executor, w.Payout, domain.TransferPayout, addr); err != nil {
			return err
		}
		// Sweep the surplus plus anything credited to escrow outside donations.
		left, err := tx.Balance(ctx, vault)
		if err != nil {
			return err
		}
		if left < w.Surplus {
			return fmt.Errorf("%w: escrow holds %d, surplus is %d", domain.ErrInsufficientFunds, left, w.Surplus)
		}
		w.Surplus = left
		if err := e.transfer(ctx, tx, vault, executor, w.Surplus, domain.TransferSurplus, addr); err != nil {
			return err
		}

		released, closed, err := e.closeCampaign(ctx, tx, c)
		if err != nil {
			return err
		}
		res = Settlement{
			Campaign:   c,
			Platform:   e.opts.Platform,
			Executor:   executor,
			Withdrawal: w,
			Released:   released,
			Receipts:   closed,
		}
		return nil
	})
	if err != nil {
		return Settlement{}, err
	}
	e.logger.Info().
		Str("campaign", res.Campaign.ID).
		Str("executor", string(executor)).
		Uint64("fee", res.Fee).
		Uint64("payout", res.Payout).
		Uint64("surplus", res.Surplus).
		Msg("campaign withdrawn")
	return res, nil
}

// CancelCampaign moves an Active campaign to Cancelled so donors can claim
// refunds. A campaign that never received funds is deleted instead.
func (e *Engine) CancelCampaign(ctx context.Context, caller domain.Identity, campaignID string) (CancelResult, error) {
	addr, err := e.campaignAddress(campaignID)
	if err != nil {
		return CancelResult{}, err
	}

	var res CancelResult
	err = e.store.Atomically(ctx, func(tx domain.Tx) error {
		c, err := tx.Campaign(ctx, addr)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrCampaignNotActive
		}
		if err != nil {
			return err
		}
		if err := Require(caller, c.Authority); err != nil {
			return err
		}
		if c.Status != domain.CampaignActive {
			return domain.ErrCampaignNotActive
		}

		c.Status = domain.CampaignCancelled
		if c.RaisedAmount == 0 {
			released, _, err := e.closeCampaign(ctx, tx, c)
			if err != nil {
				return err
			}
			res = CancelResult{Campaign: c, Closed: true, Released: released}
			return nil
		}
		if err := tx.UpdateCampaign(ctx, c); err != nil {
			return err
		}
		c.Version++
		res = CancelResult{Campaign: c}
		return nil
	})
	if err != nil {
		return CancelResult{}, err
	}
	e.logger.Info().
		Str("campaign", res.Campaign.ID).
		Bool("closed", res.Closed).
		Uint64("raised", res.Campaign.RaisedAmount).
		Msg("campaign cancelled")
	return res, nil
}

// ClaimRefund returns the caller's donation from a Cancelled campaign and
// deletes the receipt. The campaign record is kept for other donors.
func (e *Engine) ClaimRefund(ctx context.Context, caller domain.Identity, campaignID string) (Refund, error) {
	if err := Require(caller, caller); err != nil {
		return Refund{}, err
	}
	addr, err := e.campaignAddress(campaignID)
	if err != nil {
		return Refund{}, err
	}

	var res Refund
	err = e.store.Atomically(ctx, func(tx domain.Tx) error {
		c, err := tx.Campaign(ctx, addr)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrCampaignNotCancelled
		}
		if err != nil {
			return err
		}
		if c.Status != domain.CampaignCancelled {
			return domain.ErrCampaignNotCancelled
		}

		receiptAddr, err := locator.Donation(addr, caller)
		if err != nil {
			return err
		}
		r, err := tx.Receipt(ctx, receiptAddr)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrReceiptNotFound
		}
		if err != nil {
			return err
		}
		if err := Require(caller, r.Donor); err != nil {
			return err
		}

		raised, err := domain.CheckedSub(c.RaisedAmount, r.Amount)
		if err != nil {
			return err
		}
		if err := e.transfer(ctx, tx, c.EscrowAccount(), r.Donor, r.Amount, domain.TransferRefund, addr); err != nil {
			return err
		}
		released, err := e.release(ctx, tx, r.Donor, r.Deposit, addr)
		if err != nil {
			return err
		}
		if err := tx.DeleteReceipt(ctx, receiptAddr); err != nil {
			return err
		}
		c.RaisedAmount = raised
		if err := tx.UpdateCampaign(ctx, c); err != nil {
			return err
		}
		c.Version++
		res = Refund{Campaign: c, Receipt: r, Amount: r.Amount, Released: released}
		return nil
	})
	if err != nil {
		return Refund{}, err
	}
	e.logger.Info().
		Str("campaign", res.Campaign.ID).
		Str("donor", string(caller)).
		Uint64("amount", res.Amount).
		Msg("refund claimed")
	return res, nil
}

// GetCampaign returns the campaign with the given id.
func (e *Engine) GetCampaign(ctx context.Context, campaignID string) (domain.Campaign, error) {
	addr, err := e.campaignAddress(campaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	var c domain.Campaign
	err = e.store.Atomically(ctx, func(tx domain.Tx) error {
		var err error
		c, err = tx.Campaign(ctx, addr)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrCampaignNotFound
		}
		return err
	})
	return c, err
}

// GetReceipt returns donor's receipt for the campaign with the given id.
func (e *Engine) GetReceipt(ctx context.Context, campaignID string, donor domain.Identity) (domain.DonationReceipt, error) {
	addr, err := e.campaignAddress(campaignID)
	if err != nil {
		return domain.DonationReceipt{}, err
	}
	receiptAddr, err := locator.Donation(addr, donor)
	if err != nil {
		return domain.DonationReceipt{}, domain.ErrReceiptNotFound
	}
	var r domain.DonationReceipt
	err = e.store.Atomically(ctx, func(tx domain.Tx) error {
		var err error
		r, err = tx.Receipt(ctx, receiptAddr)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrReceiptNotFound
		}
		return err
	})
	return r, err
}

// Ping runs an empty read unit against the store.
func (e *Engine) Ping(ctx context.Context) error {
	return e.store.Atomically(ctx, func(tx domain.Tx) error {
		_, err := tx.Balance(ctx, domain.DepositAccount)
		return err
	})
}

func (e *Engine) campaignAddress(id string) (domain.Address, error) {
	if err := validateCampaignID(id); err != nil {
		return "", err
	}
	return locator.Campaign(id)
}

// transfer records a ledger movement; zero amounts are skipped.
func (e *Engine) transfer(ctx context.Context, tx domain.Tx, from, to domain.Identity, amount uint64, kind domain.TransferKind, campaign domain.Address) error {
	if amount == 0 {
		return nil
	}
	return tx.Transfer(ctx, domain.Transfer{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Amount:    amount,
		Kind:      kind,
		Campaign:  campaign,
		CreatedAt: e.now().UTC(),
	})
}

// closeCampaign deletes c and every receipt recorded against it, returning
// all storage deposits to their payers. Receipts never outlive the campaign
// they were issued for, so a later campaign at the same address starts with
// no donors.
func (e *Engine) closeCampaign(ctx context.Context, tx domain.Tx, c domain.Campaign) (uint64, int, error) {
	receipts, err := tx.DeleteReceipts(ctx, c.Address)
	if err != nil {
		return 0, 0, err
	}
	for _, r := range receipts {
		if _, err := e.release(ctx, tx, r.Donor, r.Deposit, c.Address); err != nil {
			return 0, 0, err
		}
	}
	released, err := e.release(ctx, tx, c.Authority, c.Deposit, c.Address)
	if err != nil {
		return 0, 0, err
	}
	if err := tx.DeleteCampaign(ctx, c.Address); err != nil {
		return 0, 0, err
	}
	return released, len(receipts), nil
}

// release returns a deleted record's storage deposit to its payer and
// reports the refundable amount.
func (e *Engine) release(ctx context.Context, tx domain.Tx, payer domain.Identity, deposit uint64, campaign domain.Address) (uint64, error) {
	if err := e.transfer(ctx, tx, domain.DepositAccount, payer, deposit, domain.TransferDepositRelease, campaign); err != nil {
		return 0, err
	}
	return deposit, nil
}

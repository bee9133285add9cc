package handlers

import (
	"time"

	"crowdfund/internal/domain"
	"crowdfund/internal/escrow"
)

type campaignView struct {
	Address       string    `json:"address"`
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	CategoryLabel string    `json:"category_label"`
	Location      string    `json:"location,omitempty"`
	Metrics       []string  `json:"metrics"`
	MediaURIs     []string  `json:"media_uris"`
	TargetAmount  uint64    `json:"target_amount"`
	RaisedAmount  uint64    `json:"raised_amount"`
	Status        string    `json:"status"`
	Authority     string    `json:"authority"`
	Deposit       uint64    `json:"deposit"`
	CreatedAt     time.Time `json:"created_at"`
	Deadline      time.Time `json:"deadline"`
}

func toCampaignView(c domain.Campaign) campaignView {
	return campaignView{
		Address:       string(c.Address),
		ID:            c.ID,
		Name:          c.Name,
		Description:   c.Description,
		Category:      string(c.Category),
		CategoryLabel: c.Category.Label(),
		Location:      c.Location,
		Metrics:       nonNil(c.Metrics),
		MediaURIs:     nonNil(c.MediaURIs),
		TargetAmount:  c.TargetAmount,
		RaisedAmount:  c.RaisedAmount,
		Status:        string(c.Status),
		Authority:     string(c.Authority),
		Deposit:       c.Deposit,
		CreatedAt:     c.CreatedAt,
		Deadline:      c.Deadline,
	}
}

type receiptView struct {
	Address   string    `json:"address"`
	Campaign  string    `json:"campaign"`
	Donor     string    `json:"donor"`
	Amount    uint64    `json:"amount"`
	Deposit   uint64    `json:"deposit"`
	CreatedAt time.Time `json:"created_at"`
}

func toReceiptView(r domain.DonationReceipt) receiptView {
	return receiptView{
		Address:   string(r.Address),
		Campaign:  string(r.Campaign),
		Donor:     string(r.Donor),
		Amount:    r.Amount,
		Deposit:   r.Deposit,
		CreatedAt: r.CreatedAt,
	}
}

type settlementView struct {
	Campaign campaignView `json:"campaign"`
	Platform string       `json:"platform"`
	Executor string       `json:"executor"`
	Fee      uint64       `json:"fee"`
	Payout   uint64       `json:"payout"`
	Surplus  uint64       `json:"surplus"`
	Released uint64       `json:"released"`
	Receipts int          `json:"receipts_closed"`
}

func toSettlementView(s escrow.Settlement) settlementView {
	return settlementView{
		Campaign: toCampaignView(s.Campaign),
		Platform: string(s.Platform),
		Executor: string(s.Executor),
		Fee:      s.Fee,
		Payout:   s.Payout,
		Surplus:  s.Surplus,
		Released: s.Released,
		Receipts: s.Receipts,
	}
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

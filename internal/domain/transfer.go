package domain

import "time"

// TransferKind labels why funds moved.
type TransferKind string

const (
	TransferDonation       TransferKind = "donation"
	TransferFee            TransferKind = "fee"
	TransferPayout         TransferKind = "payout"
	TransferSurplus        TransferKind = "surplus"
	TransferRefund         TransferKind = "refund"
	TransferDeposit        TransferKind = "deposit"
	TransferDepositRelease TransferKind = "deposit_release"
)

// Transfer is one ledger movement, recorded for audit.
type Transfer struct {
	ID        string
	From      Identity
	To        Identity
	Amount    uint64
	Kind      TransferKind
	Campaign  Address
	CreatedAt time.Time
}

package domain

import "errors"

// Validation errors.
var (
	ErrInvalidTarget      = errors.New("invalid target amount")
	ErrInvalidAmount      = errors.New("invalid donation amount")
	ErrInvalidTitle       = errors.New("title is empty or too long")
	ErrInvalidDescription = errors.New("description is empty or too long")
	ErrInvalidMetadata    = errors.New("campaign metadata exceeds limits")
	ErrInvalidCategory    = errors.New("unknown campaign category")
	ErrInvalidExecutor    = errors.New("executor identity is missing or reserved")
	ErrInvalidCampaignID  = errors.New("invalid campaign id")
)

// State errors.
var (
	ErrAlreadyExists        = errors.New("campaign already exists")
	ErrCampaignNotActive    = errors.New("campaign is not active")
	ErrCampaignNotFunded    = errors.New("campaign is not funded")
	ErrCampaignNotCancelled = errors.New("campaign is not cancelled")
	ErrCampaignExpired      = errors.New("campaign has expired")
	ErrCampaignNotFound     = errors.New("campaign not found")
	ErrDuplicateDonation    = errors.New("donor already donated to this campaign")
	ErrReceiptNotFound      = errors.New("donation receipt not found")
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrMathOverflow      = errors.New("math overflow")
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrConflict reports a unit of work aborted by a concurrent commit.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrNotFound is returned by stores for absent records.
	ErrNotFound = errors.New("not found")
)

var kinds = []struct {
	err  error
	code string
}{
	{ErrInvalidTarget, "invalid_target"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrInvalidTitle, "invalid_title"},
	{ErrInvalidDescription, "invalid_description"},
	{ErrInvalidMetadata, "invalid_metadata"},
	{ErrInvalidCategory, "invalid_category"},
	{ErrInvalidExecutor, "invalid_executor"},
	{ErrInvalidCampaignID, "invalid_campaign_id"},
	{ErrAlreadyExists, "already_exists"},
	{ErrCampaignNotActive, "campaign_not_active"},
	{ErrCampaignNotFunded, "campaign_not_funded"},
	{ErrCampaignNotCancelled, "campaign_not_cancelled"},
	{ErrCampaignExpired, "campaign_expired"},
	{ErrCampaignNotFound, "campaign_not_found"},
	{ErrDuplicateDonation, "duplicate_donation"},
	{ErrReceiptNotFound, "receipt_not_found"},
	{ErrUnauthorized, "unauthorized"},
	{ErrMathOverflow, "math_overflow"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrConflict, "conflict"},
	{ErrNotFound, "not_found"},
}

// Kind returns the stable code of the first known error wrapped by err, or
// "internal" when err carries none.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "internal"
}

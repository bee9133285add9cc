package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxAmount is the largest amount any record or ledger balance may hold.
// Stores persist amounts as signed 64-bit integers.
const MaxAmount uint64 = math.MaxInt64

// CheckedAdd returns a+b, or ErrMathOverflow when the sum exceeds MaxAmount.
func CheckedAdd(a, b uint64) (uint64, error) {
	if a > MaxAmount || b > MaxAmount-a {
		return 0, ErrMathOverflow
	}
	return a + b, nil
}

// CheckedSub returns a-b, or ErrMathOverflow when b exceeds a.
func CheckedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrMathOverflow
	}
	return a - b, nil
}

// Identity is a verified caller or payee identity.
type Identity string

// Address is a locator-derived record key.
type Address string

// CampaignStatus enumerates campaign lifecycle states.
type CampaignStatus string

const (
	CampaignActive    CampaignStatus = "active"
	CampaignFunded    CampaignStatus = "funded"
	CampaignCancelled CampaignStatus = "cancelled"
)

// Category is the closed set of campaign categories.
type Category string

const (
	CategoryHealth         Category = "health"
	CategoryWater          Category = "water"
	CategoryEducation      Category = "education"
	CategoryEnergy         Category = "energy"
	CategoryInfrastructure Category = "infrastructure"
	CategoryEmergency      Category = "emergency"
	CategoryOther          Category = "other"
)

var categories = []Category{
	CategoryHealth,
	CategoryWater,
	CategoryEducation,
	CategoryEnergy,
	CategoryInfrastructure,
	CategoryEmergency,
	CategoryOther,
}

// ParseCategory accepts a category name in any letter case.
func ParseCategory(raw string) (Category, error) {
	folded := Category(cases.Fold().String(strings.TrimSpace(raw)))
	for _, c := range categories {
		if c == folded {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, raw)
}

// Label renders the category for display, e.g. "Health".
func (c Category) Label() string {
	return cases.Title(language.Und).String(string(c))
}

// Campaign is the escrow record of a single funding goal.
type Campaign struct {
	Address      Address
	ID           string
	Name         string
	Description  string
	Category     Category
	Location     string
	Metrics      []string
	MediaURIs    []string
	TargetAmount uint64
	RaisedAmount uint64
	Status       CampaignStatus
	Authority    Identity
	Deposit      uint64
	Version      int64
	CreatedAt    time.Time
	Deadline     time.Time
}

// EscrowAccount names the ledger account holding the campaign's escrowed funds.
func (c Campaign) EscrowAccount() Identity {
	return EscrowAccount(c.Address)
}

// EscrowAccount names the ledger account for a campaign address.
func EscrowAccount(addr Address) Identity {
	return Identity(escrowAccountPrefix + string(addr))
}

const escrowAccountPrefix = "escrow:"

// DepositAccount holds storage deposits reserved by record payers.
const DepositAccount Identity = "deposits"

// Reserved reports whether id names a ledger account owned by the engine.
// Reserved identities never act as callers or payees.
func (id Identity) Reserved() bool {
	return id == DepositAccount || strings.HasPrefix(string(id), escrowAccountPrefix)
}

// DonationReceipt is the durable proof of one donor's contribution.
type DonationReceipt struct {
	Address   Address
	Campaign  Address
	Donor     Identity
	Amount    uint64
	Deposit   uint64
	CreatedAt time.Time
}

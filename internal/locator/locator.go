// Package locator derives stable record addresses from a namespace tag and
// natural keys, so records can be found without a central index.
package locator

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"github.com/mr-tron/base58"

	"crowdfund/internal/domain"
)

const (
	NamespaceCampaign = "campaign"
	NamespaceDonation = "donation"
)

// ErrEmptyKey is returned when the namespace or any key part is empty.
var ErrEmptyKey = errors.New("locator: empty key")

// Derive hashes the namespace and parts into a base58 address. Every element
// is length-prefixed, so ("ab", "c") and ("a", "bc") never collide.
func Derive(namespace string, parts ...string) (domain.Address, error) {
	if namespace == "" || len(parts) == 0 {
		return "", ErrEmptyKey
	}
	h := sha256.New()
	buf := make([]byte, 0, binary.MaxVarintLen64)
	write := func(s string) {
		buf = binary.AppendUvarint(buf[:0], uint64(len(s)))
		h.Write(buf)
		h.Write([]byte(s))
	}
	write(namespace)
	for _, p := range parts {
		if p == "" {
			return "", ErrEmptyKey
		}
		write(p)
	}
	return domain.Address(base58.Encode(h.Sum(nil))), nil
}

// Campaign returns the address of the campaign with the given id.
func Campaign(id string) (domain.Address, error) {
	return Derive(NamespaceCampaign, id)
}

// Donation returns the address of the receipt for donor at campaign.
func Donation(campaign domain.Address, donor domain.Identity) (domain.Address, error) {
	return Derive(NamespaceDonation, string(campaign), string(donor))
}

package escrow

import (
	"fmt"

	"crowdfund/internal/domain"
)

// Require checks that the verified caller is the identity an operation
// declares as required. An empty or reserved caller never matches.
func Require(caller, required domain.Identity) error {
	if caller == "" || caller.Reserved() || caller != required {
		return fmt.Errorf("%w: caller %q", domain.ErrUnauthorized, caller)
	}
	return nil
}

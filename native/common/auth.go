package common

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "stakingcore/core/errors"
)

// RequireOwner fails with ErrNotOwner unless caller is the configured owner.
// Owner and manager checks are independent capabilities: neither implies the
// other.
func RequireOwner(module string, owner, caller common.Address) error {
	if owner == (common.Address{}) || caller != owner {
		return fmt.Errorf("%s: %w", module, coreerrors.ErrNotOwner)
	}
	return nil
}

// RequireManager fails with ErrNotManager unless caller is the configured
// manager.
func RequireManager(module string, manager, caller common.Address) error {
	if manager == (common.Address{}) || caller != manager {
		return fmt.Errorf("%s: %w", module, coreerrors.ErrNotManager)
	}
	return nil
}

// IsZeroAddress reports whether the address is unset.
func IsZeroAddress(addr common.Address) bool {
	return addr == (common.Address{})
}

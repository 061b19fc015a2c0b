package errors

import (
	stderrors "errors"
	"fmt"
)

// Authorization failures.
var (
	ErrNotOwner   = stderrors.New("not owner")
	ErrNotManager = stderrors.New("not manager")
)

// Staking state machine failures.
var (
	ErrAccountInCoolDown          = stderrors.New("account in cool down")
	ErrNotInRedemptionWindow      = stderrors.New("not in redemption window")
	ErrRedeemExceedsMaxRedeemable = stderrors.New("redeem exceeds max redeemable")
	ErrShortfallCooldownActive    = stderrors.New("shortfall cooldown active")
	ErrShortfallCapExceeded       = stderrors.New("shortfall extraction exceeds cap")
)

// Trade and venue failures.
var (
	ErrOracleNotDefined        = stderrors.New("oracle not defined")
	ErrSlippageLimitNotDefined = stderrors.New("slippage limit not defined")
	ErrPriceOutsideBounds      = stderrors.New("price outside bounds")
	ErrPermissionDenied        = stderrors.New("permission denied")
	ErrDeadlineExpired         = stderrors.New("deadline expired")
	ErrInsufficientOutput      = stderrors.New("insufficient output")
)

// InvariantError is raised through panic when internal accounting is corrupt.
// It is never returned as an ordinary error.
type InvariantError struct {
	Msg string
}

func (e InvariantError) Error() string { return "invariant violation: " + e.Msg }

// InvariantViolation aborts the current operation. The state layer reverts
// the operation's writes before the panic propagates.
func InvariantViolation(format string, args ...interface{}) {
	panic(InvariantError{Msg: fmt.Sprintf(format, args...)})
}

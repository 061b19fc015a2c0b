package server

import (
	"errors"
	"net/http"

	coreerrors "stakingcore/core/errors"
	nativecommon "stakingcore/native/common"
)

var errMissingCaller = errors.New("missing caller")

// statusFor maps module errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errMissingCaller):
		return http.StatusUnauthorized
	case errors.Is(err, coreerrors.ErrNotOwner),
		errors.Is(err, coreerrors.ErrNotManager),
		errors.Is(err, coreerrors.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, coreerrors.ErrAccountInCoolDown),
		errors.Is(err, coreerrors.ErrNotInRedemptionWindow),
		errors.Is(err, coreerrors.ErrShortfallCooldownActive):
		return http.StatusConflict
	case errors.Is(err, coreerrors.ErrPriceOutsideBounds),
		errors.Is(err, coreerrors.ErrOracleNotDefined),
		errors.Is(err, coreerrors.ErrSlippageLimitNotDefined),
		errors.Is(err, coreerrors.ErrInsufficientOutput),
		errors.Is(err, coreerrors.ErrDeadlineExpired),
		errors.Is(err, coreerrors.ErrRedeemExceedsMaxRedeemable),
		errors.Is(err, coreerrors.ErrShortfallCapExceeded):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

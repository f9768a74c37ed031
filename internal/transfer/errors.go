package transfer

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"myme/internal/api"
	"myme/internal/logger"
	"myme/internal/wallet"
)

// RespondError maps ledger errors to HTTP responses. Rule violations are
// reported as field errors; anything unexpected is logged and hidden.
func RespondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, wallet.ErrInvalidAmount):
		api.RespondWithValidationErrors(c, api.FieldError("amount", "gte", err.Error()))
	case errors.Is(err, wallet.ErrSameWalletTransfer):
		api.RespondWithValidationErrors(c, api.FieldError("to_wallet", "nefield", err.Error()))
	case errors.Is(err, wallet.ErrInsufficientBalance):
		api.Fail(c, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, wallet.ErrWalletRestricted), errors.Is(err, ErrNotPermitted):
		api.Fail(c, http.StatusForbidden, err.Error())
	case errors.Is(err, wallet.ErrWalletNotFound):
		api.Fail(c, http.StatusNotFound, err.Error())
	default:
		logger.Error("transfer failed", "path", c.FullPath(), "error", err)
		api.Fail(c, http.StatusInternalServerError, "transfer failed")
	}
}

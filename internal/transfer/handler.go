package transfer

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"myme/internal/account"
	"myme/internal/api"
	"myme/internal/auth"
	"myme/internal/logger"
	"myme/internal/wallet"
)

type Handler struct {
	engine  *Engine
	wallets *wallet.Service
}

func NewHandler(engine *Engine, wallets *wallet.Service) *Handler {
	return &Handler{engine: engine, wallets: wallets}
}

// CreateTransferRequest names the receiver either by wallet id or by the
// phone number of a user. Without from_wallet the caller's personal wallet
// pays.
type CreateTransferRequest struct {
	FromWallet  *uuid.UUID `json:"from_wallet"`
	ToWallet    *uuid.UUID `json:"to_wallet"`
	PhoneNumber string     `json:"phone_number"`
	Amount      int64      `json:"amount" binding:"required,gte=10"`
	Remarks     string     `json:"remarks" binding:"max=255"`
}

// CreateTransfer godoc
// @Summary      Send money
// @Tags         transfers
// @Accept       json
// @Produce      json
// @Param        request body CreateTransferRequest true "Transfer"
// @Success      201 {object} wallet.Transaction
// @Failure      400 {object} api.ValidationResponse
// @Failure      402 {object} api.ErrorResponse
// @Router       /transfers [post]
func (h *Handler) CreateTransfer(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	var req CreateTransferRequest
	if !api.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	from := req.FromWallet
	if from == nil {
		w, err := h.wallets.MyWallets(ctx, userID)
		if err != nil {
			logger.Error("failed to load sender wallet", "user_id", userID, "error", err)
			api.Fail(c, http.StatusInternalServerError, "transfer failed")
			return
		}
		from = &w[0].ID
	}

	to := req.ToWallet
	if to == nil && req.PhoneNumber != "" {
		w, _, err := h.wallets.LookupByPhone(ctx, req.PhoneNumber)
		switch {
		case errors.Is(err, account.ErrInvalidPhone):
			api.RespondWithValidationErrors(c, api.FieldError("phone_number", "phone", err.Error()))
			return
		case errors.Is(err, account.ErrUserNotFound), errors.Is(err, wallet.ErrWalletNotFound):
			api.Fail(c, http.StatusNotFound, "receiver not found")
			return
		case err != nil:
			RespondError(c, err)
			return
		}
		to = &w.ID
	}
	if to == nil {
		api.RespondWithValidationErrors(c, api.FieldError("to_wallet", "required", "to_wallet or phone_number is required"))
		return
	}

	t, err := h.engine.Transfer(ctx, Request{
		From:    from,
		To:      to,
		Amount:  req.Amount,
		Remarks: req.Remarks,
		Kind:    KindP2P,
	}, OwnerCapability{UserID: userID, Wallets: h.wallets})
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, t)
}

package wallet

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"myme/internal/account"
	"myme/internal/api"
	"myme/internal/auth"
	"myme/internal/logger"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type FreezeRequest struct {
	Amount int64 `json:"amount" binding:"required,gte=1"`
}

type LookupResponse struct {
	WalletID uuid.UUID `json:"wallet_id"`
	Name     string    `json:"name"`
}

// GetMyWallets godoc
// @Summary      List the caller's wallets
// @Tags         wallets
// @Produce      json
// @Success      200 {array} Wallet
// @Router       /wallets/me [get]
func (h *Handler) GetMyWallets(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	wallets, err := h.service.MyWallets(c.Request.Context(), userID)
	if err != nil {
		logger.Error("failed to load wallets", "user_id", userID, "error", err)
		api.Fail(c, http.StatusInternalServerError, "failed to load wallets")
		return
	}

	c.JSON(http.StatusOK, wallets)
}

// ListTransactions godoc
// @Summary      List a wallet's transactions
// @Tags         wallets
// @Produce      json
// @Param        walletID path string true "Wallet ID"
// @Success      200 {array} Transaction
// @Router       /wallets/{walletID}/transactions [get]
func (h *Handler) ListTransactions(c *gin.Context) {
	w, ok := h.loadVisibleWallet(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txs, err := h.service.ListTransactions(c.Request.Context(), w.ID, limit, offset)
	if err != nil {
		logger.Error("failed to load transactions", "wallet_id", w.ID, "error", err)
		api.Fail(c, http.StatusInternalServerError, "failed to load transactions")
		return
	}

	c.JSON(http.StatusOK, txs)
}

// GetTransaction godoc
// @Summary      Get a transaction
// @Tags         wallets
// @Produce      json
// @Param        transactionID path string true "Transaction ID"
// @Success      200 {object} Transaction
// @Router       /transactions/{transactionID} [get]
func (h *Handler) GetTransaction(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	id, err := uuid.Parse(c.Param("transactionID"))
	if err != nil {
		api.Fail(c, http.StatusBadRequest, "invalid transaction id")
		return
	}

	ctx := c.Request.Context()
	t, err := h.service.GetTransaction(ctx, id)
	if errors.Is(err, ErrTransactionNotFound) {
		api.Fail(c, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		logger.Error("failed to load transaction", "transaction_id", id, "error", err)
		api.Fail(c, http.StatusInternalServerError, "failed to load transaction")
		return
	}

	if !auth.IsStaff(c) {
		involved, err := h.service.InvolvesUser(ctx, userID, t)
		if err != nil {
			logger.Error("failed to check transaction access", "transaction_id", id, "error", err)
			api.Fail(c, http.StatusInternalServerError, "failed to load transaction")
			return
		}
		if !involved {
			// Same answer as a missing row, ids are not confirmed to strangers.
			api.Fail(c, http.StatusNotFound, "transaction not found")
			return
		}
	}

	c.JSON(http.StatusOK, t)
}

// Lookup godoc
// @Summary      Find a user's wallet by phone number
// @Tags         wallets
// @Produce      json
// @Param        phone_number query string true "Phone number"
// @Success      200 {object} LookupResponse
// @Router       /wallets/lookup [get]
func (h *Handler) Lookup(c *gin.Context) {
	phone := c.Query("phone_number")
	if phone == "" {
		api.RespondWithValidationErrors(c, api.FieldError("phone_number", "required", "phone_number is required"))
		return
	}

	w, u, err := h.service.LookupByPhone(c.Request.Context(), phone)
	switch {
	case errors.Is(err, account.ErrInvalidPhone):
		api.RespondWithValidationErrors(c, api.FieldError("phone_number", "phone", err.Error()))
		return
	case errors.Is(err, account.ErrUserNotFound), errors.Is(err, ErrWalletNotFound):
		api.Fail(c, http.StatusNotFound, "wallet not found")
		return
	case err != nil:
		logger.Error("wallet lookup failed", "error", err)
		api.Fail(c, http.StatusInternalServerError, "failed to look up wallet")
		return
	}

	c.JSON(http.StatusOK, LookupResponse{WalletID: w.ID, Name: u.Name})
}

func (h *Handler) Restrict(c *gin.Context) {
	h.setRestricted(c, true)
}

func (h *Handler) Unrestrict(c *gin.Context) {
	h.setRestricted(c, false)
}

func (h *Handler) setRestricted(c *gin.Context, restricted bool) {
	id, err := uuid.Parse(c.Param("walletID"))
	if err != nil {
		api.Fail(c, http.StatusBadRequest, "invalid wallet id")
		return
	}

	w, err := h.service.SetRestricted(c.Request.Context(), id, restricted)
	if errors.Is(err, ErrWalletNotFound) {
		api.Fail(c, http.StatusNotFound, "wallet not found")
		return
	}
	if err != nil {
		logger.Error("failed to update wallet restriction", "wallet_id", id, "error", err)
		api.Fail(c, http.StatusInternalServerError, "failed to update wallet")
		return
	}

	c.JSON(http.StatusOK, w)
}

func (h *Handler) Freeze(c *gin.Context) {
	h.adjustFrozen(c, h.service.Freeze)
}

func (h *Handler) Unfreeze(c *gin.Context) {
	h.adjustFrozen(c, h.service.Unfreeze)
}

func (h *Handler) adjustFrozen(c *gin.Context, op func(context.Context, uuid.UUID, int64) (*Wallet, error)) {
	id, err := uuid.Parse(c.Param("walletID"))
	if err != nil {
		api.Fail(c, http.StatusBadRequest, "invalid wallet id")
		return
	}

	var req FreezeRequest
	if !api.BindJSON(c, &req) {
		return
	}

	w, err := op(c.Request.Context(), id, req.Amount)
	switch {
	case errors.Is(err, ErrWalletNotFound):
		api.Fail(c, http.StatusNotFound, "wallet not found")
		return
	case errors.Is(err, ErrInvalidFreeze):
		api.RespondWithValidationErrors(c, api.FieldError("amount", "frozen", err.Error()))
		return
	case err != nil:
		logger.Error("failed to adjust frozen amount", "wallet_id", id, "error", err)
		api.Fail(c, http.StatusInternalServerError, "failed to update wallet")
		return
	}

	c.JSON(http.StatusOK, w)
}

// loadVisibleWallet resolves :walletID and checks that the caller owns it or
// is staff. It writes the error response itself.
func (h *Handler) loadVisibleWallet(c *gin.Context) (*Wallet, bool) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "user not authenticated")
		return nil, false
	}

	id, err := uuid.Parse(c.Param("walletID"))
	if err != nil {
		api.Fail(c, http.StatusBadRequest, "invalid wallet id")
		return nil, false
	}

	ctx := c.Request.Context()
	w, err := h.service.GetWallet(ctx, id)
	if errors.Is(err, ErrWalletNotFound) {
		api.Fail(c, http.StatusNotFound, "wallet not found")
		return nil, false
	}
	if err != nil {
		logger.Error("failed to load wallet", "wallet_id", id, "error", err)
		api.Fail(c, http.StatusInternalServerError, "failed to load wallet")
		return nil, false
	}

	if auth.IsStaff(c) {
		return w, true
	}
	owns, err := h.service.Controls(ctx, userID, w)
	if err != nil {
		logger.Error("failed to check wallet ownership", "wallet_id", id, "error", err)
		api.Fail(c, http.StatusInternalServerError, "failed to load wallet")
		return nil, false
	}
	if !owns {
		api.Fail(c, http.StatusForbidden, "wallet belongs to another owner")
		return nil, false
	}
	return w, true
}

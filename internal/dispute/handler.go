package dispute

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"myme/internal/account"
	"myme/internal/api"
	"myme/internal/auth"
	"myme/internal/logger"
	"myme/internal/wallet"
)

type Handler struct {
	service *Service
	wallets *wallet.Service
	dir     account.Directory
}

func NewHandler(service *Service, wallets *wallet.Service, dir account.Directory) *Handler {
	return &Handler{service: service, wallets: wallets, dir: dir}
}

// Create godoc
// @Summary      Open a dispute (staff)
// @Tags         disputes
// @Accept       json
// @Produce      json
// @Param        request body CreateRequest true "Dispute"
// @Success      201 {object} Dispute
// @Router       /admin/disputes [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if !api.BindJSON(c, &req) {
		return
	}

	d, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// FileMine lets a user dispute a transaction that touched one of their
// wallets. The phone number defaults to the caller's own.
func (h *Handler) FileMine(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	var req CreateRequest
	if !api.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	t, err := h.wallets.GetTransaction(ctx, req.TransactionID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	involved, err := h.wallets.InvolvesUser(ctx, userID, t)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !involved {
		api.Fail(c, http.StatusNotFound, "transaction not found")
		return
	}

	if req.PhoneNumber == "" {
		u, err := h.dir.FindUserByID(ctx, userID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		req.PhoneNumber = u.PhoneNumber
	}

	d, err := h.service.Create(ctx, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *Handler) List(c *gin.Context) {
	status := Status(c.Query("status"))
	if status != "" && !status.Valid() {
		api.RespondWithValidationErrors(c, api.FieldError("status", "oneof", "status must be one of: needs_response in_review reviewed resolved"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	disputes, err := h.service.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, disputes)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	d, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) MoveToReview(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	d, err := h.service.MoveToReview(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) MarkReviewed(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ReviewRequest
	if !api.BindJSON(c, &req) {
		return
	}
	d, err := h.service.MarkReviewed(c.Request.Context(), id, req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) ProcessRefund(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	d, err := h.service.ProcessRefund(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("disputeID"))
	if err != nil {
		api.Fail(c, http.StatusBadRequest, "invalid dispute id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrDisputeNotFound):
		api.Fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, wallet.ErrTransactionNotFound):
		api.RespondWithValidationErrors(c, api.FieldError("transaction", "exists", err.Error()))
	case errors.Is(err, ErrInvalidAmount):
		api.RespondWithValidationErrors(c, api.FieldError("amount", "lte", err.Error()))
	case errors.Is(err, account.ErrInvalidPhone):
		api.RespondWithValidationErrors(c, api.FieldError("phone_number", "phone", err.Error()))
	case errors.Is(err, ErrNotDisputable), errors.Is(err, ErrAlreadyDisputed):
		api.RespondWithValidationErrors(c, api.FieldError("transaction", "disputable", err.Error()))
	case errors.Is(err, ErrInvalidTransition):
		api.Fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, wallet.ErrInsufficientBalance):
		api.Fail(c, http.StatusPaymentRequired, "receiver can no longer cover the refund")
	default:
		logger.Error("dispute request failed", "path", c.FullPath(), "error", err)
		api.Fail(c, http.StatusInternalServerError, "dispute request failed")
	}
}

package bill

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"myme/internal/account"
	"myme/internal/api"
	"myme/internal/auth"
	"myme/internal/logger"
	"myme/internal/transfer"
	"myme/internal/wallet"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ListDue godoc
// @Summary      List the due bills of a utility account
// @Tags         bills
// @Produce      json
// @Param        number path string true "Account number"
// @Success      200 {array} Bill
// @Router       /bills/{number} [get]
func (h *Handler) ListDue(c *gin.Context) {
	bills, err := h.service.ListDue(c.Request.Context(), c.Param("number"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bills)
}

// Pay godoc
// @Summary      Pay every due bill of a utility account
// @Description  amount must cover the total of the due bills.
// @Tags         bills
// @Accept       json
// @Produce      json
// @Param        request body PayRequest true "Payment"
// @Success      200 {object} PayResult
// @Failure      402 {object} api.ErrorResponse
// @Router       /bills/pay [post]
func (h *Handler) Pay(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	var req PayRequest
	if !api.BindJSON(c, &req) {
		return
	}

	res, err := h.service.Pay(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) SetAutopay(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	var req AutopayRequest
	if !api.BindJSON(c, &req) {
		return
	}

	a, err := h.service.SetAutopay(c.Request.Context(), userID, c.Param("number"), req.WalletID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) CreateUtility(c *gin.Context) {
	var req CreateUtilityRequest
	if !api.BindJSON(c, &req) {
		return
	}

	u, err := h.service.CreateUtility(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *Handler) CreateAccount(c *gin.Context) {
	utilityID, err := uuid.Parse(c.Param("utilityID"))
	if err != nil {
		api.Fail(c, http.StatusBadRequest, "invalid utility id")
		return
	}

	var req CreateAccountRequest
	if !api.BindJSON(c, &req) {
		return
	}

	a, err := h.service.CreateAccount(c.Request.Context(), utilityID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) IssueBill(c *gin.Context) {
	var req IssueBillRequest
	if !api.BindJSON(c, &req) {
		return
	}

	b, err := h.service.IssueBill(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUtilityNotFound), errors.Is(err, ErrAccountNotFound):
		api.Fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNumberTaken):
		api.RespondWithValidationErrors(c, api.FieldError("number", "unique", err.Error()))
	case errors.Is(err, ErrNoDueBills):
		api.RespondWithValidationErrors(c, api.FieldError("number", "due", err.Error()))
	case errors.Is(err, ErrAmountBelowTotal):
		api.RespondWithValidationErrors(c, api.FieldError("amount", "total", err.Error()))
	case errors.Is(err, account.ErrInvalidPhone):
		api.RespondWithValidationErrors(c, api.FieldError("phone_number", "phone", err.Error()))
	case errors.Is(err, wallet.ErrWalletNotFound):
		api.RespondWithValidationErrors(c, api.FieldError("wallet_id", "exists", err.Error()))
	default:
		logger.Debug("bill request failed", "path", c.FullPath(), "error", err)
		transfer.RespondError(c, err)
	}
}

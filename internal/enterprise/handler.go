package enterprise

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"myme/internal/account"
	"myme/internal/api"
	"myme/internal/auth"
	"myme/internal/transfer"
	"myme/internal/wallet"
)

type Handler struct {
	gateway *Gateway
}

func NewHandler(gateway *Gateway) *Handler {
	return &Handler{gateway: gateway}
}

// Push godoc
// @Summary      Credit a user's wallet from an external system
// @Tags         external
// @Accept       json
// @Produce      json
// @Param        X-Access-Id     header string true "Access id"
// @Param        X-Access-Secret header string true "Access secret"
// @Param        request body PushRequest true "Push"
// @Success      201 {object} wallet.Transaction
// @Router       /external/push [post]
func (h *Handler) Push(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req PushRequest
	if !api.BindJSON(c, &req) {
		return
	}

	t, err := h.gateway.PushMoney(c.Request.Context(), p, req)
	if errors.Is(err, account.ErrUserNotFound) || errors.Is(err, wallet.ErrWalletNotFound) {
		api.RespondWithValidationErrors(c, api.FieldError("phone_number", "exists", "no wallet for this phone number"))
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// Pull godoc
// @Summary      Collect money from a user under a grant
// @Tags         external
// @Accept       json
// @Produce      json
// @Param        X-Access-Id     header string true "Access id"
// @Param        X-Access-Secret header string true "Access secret"
// @Param        request body PullRequest true "Pull"
// @Success      201 {object} wallet.Transaction
// @Router       /external/pull [post]
func (h *Handler) Pull(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req PullRequest
	if !api.BindJSON(c, &req) {
		return
	}

	t, err := h.gateway.PullMoney(c.Request.Context(), p, req)
	switch {
	case errors.Is(err, ErrGrantNotFound):
		api.RespondWithValidationErrors(c, api.FieldError("user_grant", "exists", err.Error()))
		return
	case errors.Is(err, wallet.ErrInsufficientBalance):
		api.RespondWithValidationErrors(c, api.FieldError("amount", "balance", err.Error()))
		return
	case err != nil:
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *Handler) RequestGrant(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req GrantRequest
	if !api.BindJSON(c, &req) {
		return
	}

	g, err := h.gateway.RequestGrant(c.Request.Context(), p, req)
	if errors.Is(err, account.ErrUserNotFound) {
		api.RespondWithValidationErrors(c, api.FieldError("phone_number", "exists", err.Error()))
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (h *Handler) ListEnterpriseGrants(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	status, ok := statusQuery(c)
	if !ok {
		return
	}

	var userID *uuid.UUID
	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			api.RespondWithValidationErrors(c, api.FieldError("user_id", "uuid", "user_id must be a uuid"))
			return
		}
		userID = &id
	}

	grants, err := h.gateway.ListEnterpriseGrants(c.Request.Context(), p, status, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, grants)
}

func (h *Handler) ListMyGrants(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "user not authenticated")
		return
	}
	status, ok := statusQuery(c)
	if !ok {
		return
	}

	grants, err := h.gateway.ListUserGrants(c.Request.Context(), userID, status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, grants)
}

func (h *Handler) ApproveGrant(c *gin.Context) {
	h.moveGrant(c, h.gateway.ApproveGrant)
}

func (h *Handler) RejectGrant(c *gin.Context) {
	h.moveGrant(c, h.gateway.RejectGrant)
}

func (h *Handler) SuspendGrant(c *gin.Context) {
	h.moveGrant(c, h.gateway.SuspendGrant)
}

func (h *Handler) moveGrant(c *gin.Context, op func(context.Context, uuid.UUID, uuid.UUID) (*UserGrant, error)) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "user not authenticated")
		return
	}
	grantID, err := uuid.Parse(c.Param("grantID"))
	if err != nil {
		api.Fail(c, http.StatusBadRequest, "invalid grant id")
		return
	}

	g, err := op(c.Request.Context(), userID, grantID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) CreateEnterprise(c *gin.Context) {
	var req CreateEnterpriseRequest
	if !api.BindJSON(c, &req) {
		return
	}
	e, err := h.gateway.CreateEnterprise(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

// IssueKey godoc
// @Summary      Issue an access key (admin)
// @Description  The access secret is returned in this response only.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        request body IssueKeyRequest true "Key"
// @Success      201 {object} IssuedKey
// @Router       /admin/access-keys [post]
func (h *Handler) IssueKey(c *gin.Context) {
	var req IssueKeyRequest
	if !api.BindJSON(c, &req) {
		return
	}
	k, err := h.gateway.IssueKey(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, k)
}

func principal(c *gin.Context) (*Principal, bool) {
	p, ok := GetPrincipal(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "access credentials required")
		return nil, false
	}
	return p, true
}

func statusQuery(c *gin.Context) (GrantStatus, bool) {
	status := GrantStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		api.RespondWithValidationErrors(c, api.FieldError("status", "oneof", "status must be one of: pending approved rejected suspended"))
		return "", false
	}
	return status, true
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		api.Fail(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrNotEnterprise):
		api.Fail(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrGrantNotApproved), errors.Is(err, ErrGrantExpired):
		api.RespondWithValidationErrors(c, api.FieldError("user_grant", "usable", err.Error()))
	case errors.Is(err, ErrGrantExceeded), errors.Is(err, ErrPullLimitExceeded):
		api.RespondWithValidationErrors(c, api.FieldError("amount", "lte", err.Error()))
	case errors.Is(err, ErrInvalidGrantTransition):
		api.Fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, ErrGrantNotFound), errors.Is(err, ErrEnterpriseNotFound):
		api.Fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, account.ErrInvalidPhone):
		api.RespondWithValidationErrors(c, api.FieldError("phone_number", "phone", err.Error()))
	default:
		transfer.RespondError(c, err)
	}
}

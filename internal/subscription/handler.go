package subscription

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
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create godoc
// @Summary      Subscribe to a plan
// @Description  The first period is charged immediately.
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Param        request body SubscribeRequest true "Plan"
// @Success      201 {object} UserSubscription
// @Failure      402 {object} api.ErrorResponse
// @Router       /subscriptions [post]
func (h *Handler) Create(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	var req SubscribeRequest
	if !api.BindJSON(c, &req) {
		return
	}

	sub, err := h.service.Subscribe(c.Request.Context(), userID, req.PlanID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h *Handler) Cancel(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "user not authenticated")
		return
	}
	planID, err := uuid.Parse(c.Param("planID"))
	if err != nil {
		api.Fail(c, http.StatusBadRequest, "invalid plan id")
		return
	}

	sub, err := h.service.Unsubscribe(c.Request.Context(), userID, planID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) ListMy(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	subs, err := h.service.ListMy(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

func (h *Handler) ListPlans(c *gin.Context) {
	var businessID *uuid.UUID
	if raw := c.Query("business_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			api.RespondWithValidationErrors(c, api.FieldError("business_id", "uuid", "business_id must be a uuid"))
			return
		}
		businessID = &id
	}

	plans, err := h.service.ListPlans(c.Request.Context(), businessID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (h *Handler) CreatePlan(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	var req CreatePlanRequest
	if !api.BindJSON(c, &req) {
		return
	}

	p, err := h.service.CreatePlan(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrPlanNotFound), errors.Is(err, ErrSubscriptionNotFound), errors.Is(err, account.ErrBusinessNotFound):
		api.Fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadySubscribed):
		api.RespondWithValidationErrors(c, api.FieldError("plan_id", "unique", err.Error()))
	case errors.Is(err, ErrNotBusinessOwner):
		api.Fail(c, http.StatusForbidden, err.Error())
	default:
		logger.Debug("subscription request failed", "path", c.FullPath(), "error", err)
		transfer.RespondError(c, err)
	}
}

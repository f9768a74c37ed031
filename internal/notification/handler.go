package notification

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"myme/internal/api"
	"myme/internal/auth"
	"myme/internal/logger"
)

type Handler struct {
	dispatcher *Dispatcher
}

func NewHandler(dispatcher *Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

// ListMine godoc
// @Summary      List the caller's notifications
// @Tags         notifications
// @Produce      json
// @Param        limit  query int false "Page size (max 100)"
// @Param        offset query int false "Offset"
// @Success      200 {array} Notification
// @Router       /notifications [get]
func (h *Handler) ListMine(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, err := h.dispatcher.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		logger.Error("failed to load notifications", "user_id", userID, "error", err)
		api.Fail(c, http.StatusInternalServerError, "failed to load notifications")
		return
	}

	c.JSON(http.StatusOK, list)
}

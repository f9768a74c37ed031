package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"myme/internal/api"
	"myme/internal/auth"
	"myme/internal/logger"
)

// Notifier queues a message for a user.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, title, body string) error
}

// Health reports the state of the database and of Redis. Any failed
// dependency turns the response into a 503.
func Health(database *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		resp := api.HealthResponse{Status: "ok", Database: "ok", Redis: "ok"}
		if err := database.PingContext(ctx); err != nil {
			logger.Error("health check: database unreachable", "error", err)
			resp.Status, resp.Database = "degraded", "unavailable"
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("health check: redis unreachable", "error", err)
			resp.Status, resp.Redis = "degraded", "unavailable"
		}

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	}
}

// TestNotification queues a notification to the caller so operators can
// check delivery end to end.
func TestNotification(notifier Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			api.Fail(c, http.StatusUnauthorized, "user not authenticated")
			return
		}

		if err := notifier.Notify(c.Request.Context(), userID, "Test notification", "Notifications are working!"); err != nil {
			logger.Error("failed to queue test notification", "user_id", userID, "error", err)
			api.Fail(c, http.StatusInternalServerError, "failed to queue notification")
			return
		}

		c.JSON(http.StatusOK, api.MessageResponse{Message: "notification queued"})
	}
}

func Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

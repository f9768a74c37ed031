package enterprise

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"myme/internal/api"
	"myme/internal/auth"
	"myme/internal/logger"
	"myme/internal/metrics"
)

const (
	HeaderAccessID     = "X-Access-Id"
	HeaderAccessSecret = "X-Access-Secret"

	principalKey = "principal"
)

// decoyHash is compared against when the access id is unknown so that both
// failure paths cost one bcrypt comparison.
var decoyHash = sync.OnceValue(func() string {
	h, err := auth.HashSecret("decoy-secret")
	if err != nil {
		return ""
	}
	return h
})

type Authenticator struct {
	store Store
	now   func() time.Time
}

func NewAuthenticator(store Store) *Authenticator {
	return &Authenticator{store: store, now: time.Now}
}

// Authenticate resolves an access id and secret to a principal. Unknown ids,
// wrong secrets, inactive or expired keys and inactive enterprises all yield
// ErrInvalidCredentials. Lookup failures are returned as-is and deny access
// too.
func (a *Authenticator) Authenticate(ctx context.Context, accessID, secret string) (*Principal, error) {
	p, err := a.authenticate(ctx, accessID, secret)
	if err != nil {
		metrics.RecordExternalAuthFailure()
		return nil, err
	}
	return p, nil
}

func (a *Authenticator) authenticate(ctx context.Context, accessID, secret string) (*Principal, error) {
	if accessID == "" || secret == "" {
		return nil, ErrInvalidCredentials
	}

	key, err := a.store.GetAccessKey(ctx, accessID)
	if errors.Is(err, ErrInvalidCredentials) {
		auth.CheckSecret(decoyHash(), secret)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !auth.CheckSecret(key.SecretHash, secret) {
		return nil, ErrInvalidCredentials
	}
	if !key.IsActive {
		return nil, ErrInvalidCredentials
	}
	if key.ExpiresAt != nil && !a.now().Before(*key.ExpiresAt) {
		return nil, ErrInvalidCredentials
	}

	if key.EnterpriseID != nil {
		e, err := a.store.GetEnterprise(ctx, *key.EnterpriseID)
		if errors.Is(err, ErrEnterpriseNotFound) {
			return nil, ErrInvalidCredentials
		}
		if err != nil {
			return nil, err
		}
		if !e.IsActive {
			return nil, ErrInvalidCredentials
		}
	}

	return &Principal{KeyID: key.ID, AccessID: key.AccessID, EnterpriseID: key.EnterpriseID}, nil
}

// KeyAuthMiddleware authenticates machine callers from the access headers.
// The principal lives in the gin context for this request only.
func KeyAuthMiddleware(authn *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		accessID := c.GetHeader(HeaderAccessID)
		secret := c.GetHeader(HeaderAccessSecret)
		if accessID == "" || secret == "" {
			metrics.RecordExternalAuthFailure()
			api.Fail(c, http.StatusUnauthorized, "access credentials required")
			c.Abort()
			return
		}

		p, err := authn.Authenticate(c.Request.Context(), accessID, secret)
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn("external authentication failed", "access_id", accessID, "client_ip", c.ClientIP())
			api.Fail(c, http.StatusUnauthorized, ErrInvalidCredentials.Error())
			c.Abort()
			return
		}
		if err != nil {
			logger.Error("external authentication lookup failed", "access_id", accessID, "error", err)
			api.Fail(c, http.StatusInternalServerError, "authentication unavailable")
			c.Abort()
			return
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

func GetPrincipal(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok
}

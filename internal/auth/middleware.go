package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"emargement/models"
)

const principalGinKey = "auth.principal"

// RequireRole returns gin middleware that admits only callers whose stored
// role is one of roles (any authenticated caller when roles is empty).
// Every rejection is the same 401 regardless of which check failed; only a
// store outage surfaces as 500.
func RequireRole(a *Authorizer, roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		p, err := a.Authorize(ctx, c.GetHeader("Authorization"), roles...)
		if err != nil {
			if errors.Is(err, ErrStoreUnavailable) {
				slog.ErrorContext(ctx, "authorization store failure", "error", err, "path", c.FullPath())
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			slog.DebugContext(ctx, "authorization rejected", "outcome", Outcome(err), "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(principalGinKey, p)
		c.Request = c.Request.WithContext(WithPrincipal(ctx, p))
		c.Next()
	}
}

// PrincipalFrom returns the principal attached by RequireRole.
func PrincipalFrom(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(principalGinKey)
	if !ok {
		return FromContext(c.Request.Context())
	}
	p, ok := v.(*Principal)
	return p, ok && p != nil
}

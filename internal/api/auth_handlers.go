package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"emargement/internal/auth"
	"emargement/internal/db"
	"emargement/models"
)

type signupRequest struct {
	Name     string      `json:"name" binding:"required,min=2"`
	Email    string      `json:"email" binding:"required,email"`
	Password string      `json:"password" binding:"required,min=8"`
	Role     models.Role `json:"role" binding:"required,oneof=trainer student"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *handler) signup(c *gin.Context) {
	var in signupRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	ctx := c.Request.Context()

	hash, err := h.Hasher.Hash(in.Password)
	if err != nil {
		h.internalError(c, "hash password", err)
		return
	}
	u, err := h.Users.Create(ctx, in.Name, in.Email, hash, in.Role)
	if err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			conflict(c, "email already registered")
			return
		}
		h.internalError(c, "create user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": u.ID, "name": u.Name, "email": u.Email})
}

func (h *handler) login(c *gin.Context) {
	var in loginRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	ctx := c.Request.Context()
	// ClientIP only honours forwarding headers from the configured trusted proxies.
	ip := c.ClientIP()

	if err := h.Limiter.Attempt(ctx, in.Email, ip); err != nil {
		if errors.Is(err, auth.ErrLoginThrottled) {
			h.Metrics.LoginAttempt(ctx, "throttled")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many login attempts, try again later"})
			return
		}
		h.log.WarnContext(ctx, "login limiter unavailable", "error", err)
	}

	u, err := h.Users.GetByEmail(ctx, in.Email)
	if err != nil {
		h.internalError(c, "lookup user", err)
		return
	}
	if u == nil {
		h.Hasher.CompareDummy(in.Password)
		h.rejectLogin(c)
		return
	}
	if err := h.Hasher.Compare(u.PasswordHash, in.Password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			h.log.WarnContext(ctx, "stored password hash unusable", "user_id", u.ID, "error", err)
		}
		h.rejectLogin(c)
		return
	}

	token, err := h.Tokens.Issue(u.ID, u.Role)
	if err != nil {
		h.internalError(c, "issue token", err)
		return
	}
	if err := h.Limiter.Succeeded(ctx, in.Email, ip); err != nil {
		h.log.WarnContext(ctx, "login limiter reset failed", "error", err)
	}
	h.Metrics.LoginAttempt(ctx, "success")
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// rejectLogin answers a failed login. The attempt reserved by the limiter
// stays counted.
func (h *handler) rejectLogin(c *gin.Context) {
	h.Metrics.LoginAttempt(c.Request.Context(), "invalid_credentials")
	unauthorized(c)
}

func (h *handler) me(c *gin.Context) {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		unauthorized(c)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Package api serves the emargement REST surface over gin.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"emargement/internal/auth"
	"emargement/internal/config"
	"emargement/internal/metrics"
	"emargement/models"
	"emargement/repository"
)

// Pinger reports store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries everything the handlers need. Limiter, Metrics, MetricsHandler
// and Logger may be nil.
type Deps struct {
	Users      repository.UserRepositoryI
	Sessions   repository.SessionRepositoryI
	Attendance repository.AttendanceRepositoryI
	Store      Pinger

	Authorizer *auth.Authorizer
	Tokens     *auth.TokenService
	Hasher     *auth.PasswordHasher
	Limiter    *auth.LoginLimiter
	Metrics    *metrics.Recorder
	Logger     *slog.Logger

	// MetricsHandler is served on GET /metrics when set.
	MetricsHandler http.Handler
	// TrustedProxies may set X-Forwarded-For and X-Real-IP. Nil trusts none.
	TrustedProxies []string
}

type handler struct {
	Deps
	log *slog.Logger
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(d Deps) *gin.Engine {
	h := &handler{Deps: d, log: d.Logger}
	if h.log == nil {
		h.log = slog.Default()
	}

	useJSONFieldNames()
	r := gin.New()
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		h.log.Error("invalid trusted proxies, trusting none", "error", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(RequestID(), AccessLog(h.log, d.Metrics), Recovery(h.log))

	r.GET("/healthz", h.health)
	if d.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(d.MetricsHandler))
	}

	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/signup", h.signup)
		authRoutes.POST("/login", h.login)
		authRoutes.GET("/me", auth.RequireRole(d.Authorizer), h.me)
	}

	trainerOnly := auth.RequireRole(d.Authorizer, models.RoleTrainer)
	studentOnly := auth.RequireRole(d.Authorizer, models.RoleStudent)

	sessions := r.Group("/sessions")
	{
		sessions.GET("", h.listSessions)
		sessions.POST("", trainerOnly, h.createSession)
		sessions.GET("/:id", h.getSession)
		sessions.PUT("/:id", trainerOnly, h.updateSession)
		sessions.DELETE("/:id", trainerOnly, h.deleteSession)
		sessions.POST("/:id/emargement", studentOnly, h.recordAttendance)
		sessions.GET("/:id/emargement", trainerOnly, h.listAttendees)
	}
	return r
}

// Start serves handler on cfg.Address and returns a shutdown function.
func Start(cfg config.HTTPConfig, handler http.Handler, logger *slog.Logger) (func(context.Context) error, error) {
	addr := cfg.Address
	if addr == "" {
		addr = ":8080"
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
		}
	}()
	return srv.Shutdown, nil
}

func (h *handler) health(c *gin.Context) {
	if h.Store != nil {
		if err := h.Store.Ping(c.Request.Context()); err != nil {
			h.log.ErrorContext(c.Request.Context(), "health check failed", "error", err)
			c.String(http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	c.String(http.StatusOK, "ok")
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"emargement/internal/api"
	"emargement/internal/auth"
	"emargement/internal/config"
	"emargement/internal/db"
	grpcserver "emargement/internal/grpc"
	"emargement/internal/metrics"
	"emargement/repository"
)

func main() {
	// Load configuration; JWT_KEY is mandatory outside development.
	cfg, err := config.Load()
	if err != nil && os.Getenv("APP_ENV") == "development" {
		cfg, err = config.LoadWithDefaults()
	}
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.String())
	gin.SetMode(cfg.HTTP.Mode)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// Open DB
	dbCfg, err := db.FromConfig(cfg.Database)
	if err != nil {
		return err
	}
	dbCfg.Logger = logger
	d, err := db.Open(ctx, dbCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Error("close db", "error", err)
		}
	}()

	exporter := metrics.NewExporter()
	defer func() {
		if err := exporter.Shutdown(context.Background()); err != nil {
			logger.Error("metrics shutdown", "error", err)
		}
	}()
	otel.SetMeterProvider(exporter.MeterProvider())
	rec, err := metrics.New(exporter.Meter("emargement"))
	if err != nil {
		return err
	}
	defer func() { _ = rec.Close() }()
	if err := rec.ObservePool(d.Raw().Stats); err != nil {
		return err
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTKey, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	var limiter *auth.LoginLimiter
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		defer func() { _ = client.Close() }()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, login throttling degraded", "addr", cfg.Redis.Addr, "error", err)
		}
		limiter = auth.NewLoginLimiter(client, auth.LoginLimiterConfig{
			MaxAttempts: cfg.Redis.LoginMaxAttempts,
			Cooldown:    cfg.Redis.LoginCooldown,
		})
	}

	users := repository.NewUserRepository(d)
	authorizer := auth.NewAuthorizer(tokens, users, rec)

	router := api.NewRouter(api.Deps{
		Users:      users,
		Sessions:   repository.NewSessionRepository(d),
		Attendance: repository.NewAttendanceRepository(d),
		Store:      d,
		Authorizer: authorizer,
		Tokens:     tokens,
		Hasher:     auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		Limiter:    limiter,
		Metrics:    rec,
		Logger:     logger,

		MetricsHandler: exporter.Handler(),
		TrustedProxies: cfg.HTTP.TrustedProxies,
	})

	stopHTTP, err := api.Start(cfg.HTTP, router, logger)
	if err != nil {
		return err
	}
	logger.Info("http server listening", "addr", cfg.HTTP.Address)

	stopGRPC := func(context.Context) error { return nil }
	if cfg.GRPC.Address != "" {
		stopGRPC, err = grpcserver.Start(cfg.GRPC, grpcserver.Deps{Store: d, Authorizer: authorizer, Logger: logger})
		if err != nil {
			return err
		}
		logger.Info("grpc server listening", "addr", cfg.GRPC.Address)
	}

	// Wait for signal
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	logger.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := stopHTTP(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := stopGRPC(shutdownCtx); err != nil {
		logger.Error("grpc shutdown", "error", err)
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// Package grpcserver exposes the standard gRPC health service for the
// attendance backend, with reflection available to authenticated callers.
package grpcserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"emargement/internal/auth"
	"emargement/internal/config"
)

// Methods reachable without a token.
var publicMethods = []string{
	"/grpc.health.v1.Health/Check",
	"/grpc.health.v1.Health/Watch",
	"/grpc.health.v1.Health/List",
}

const defaultCheckInterval = 10 * time.Second

// Pinger reports store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps wires the server to the store and the authorizer. CheckInterval and
// Logger are optional.
type Deps struct {
	Store         Pinger
	Authorizer    *auth.Authorizer
	CheckInterval time.Duration
	Logger        *slog.Logger
}

// Server is a gRPC server whose overall health follows the store.
type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	store    Pinger
	interval time.Duration
	log      *slog.Logger
	ctx      context.Context
	stop     context.CancelFunc
}

// New builds the server. Authorizer must not be nil.
func New(d Deps) *Server {
	if d.Authorizer == nil {
		panic("grpcserver: authorizer is required")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := d.CheckInterval
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	srv := grpc.NewServer(
		grpc.UnaryInterceptor(auth.NewUnaryAuthInterceptor(d.Authorizer, nil, publicMethods...)),
		grpc.StreamInterceptor(auth.NewStreamAuthInterceptor(d.Authorizer, nil, publicMethods...)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		grpc:     srv,
		health:   hs,
		store:    d.Store,
		interval: interval,
		log:      logger,
		ctx:      ctx,
		stop:     cancel,
	}
}

// Check pings the store once and publishes the result.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			s.log.WarnContext(ctx, "grpc health: store unreachable", "error", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", st)
	return st
}

// Serve runs the health monitor and blocks serving lis.
func (s *Server) Serve(lis net.Listener) error {
	s.Check(s.ctx)
	go s.monitor(s.ctx)
	err := s.grpc.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

func (s *Server) monitor(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Check(ctx)
		}
	}
}

// Shutdown marks the server NOT_SERVING and stops it gracefully, forcing a
// hard stop when ctx expires first. Status updates after this point are
// ignored by the health service.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()
	s.health.Shutdown()

	done := make(chan struct{})
	go func() { s.grpc.GracefulStop(); close(done) }()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.grpc.Stop()
		return ctx.Err()
	}
}

// Start listens on cfg.Address and serves in the background. The returned
// function shuts the server down.
func Start(cfg config.GRPCConfig, d Deps) (func(context.Context) error, error) {
	addr := cfg.Address
	if addr == "" {
		addr = ":50051"
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := New(d)
	go func() {
		if err := s.Serve(lis); err != nil {
			s.log.Error("grpc server stopped", "error", err)
		}
	}()
	return s.Shutdown, nil
}

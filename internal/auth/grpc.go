package auth

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"emargement/models"
)

// NewUnaryAuthInterceptor returns a gRPC unary interceptor that authorizes the
// token found in the "authorization" metadata and injects the Principal into
// the context. Methods listed in allowUnauthenticated bypass authentication
// (e.g., health checks).
func NewUnaryAuthInterceptor(a *Authorizer, roles []models.Role, allowUnauthenticated ...string) grpc.UnaryServerInterceptor {
	allow := allowSet(allowUnauthenticated)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := allow[info.FullMethod]; ok {
			return handler(ctx, req)
		}
		p, err := a.Authorize(ctx, headerFromMD(ctx), roles...)
		if err != nil {
			return nil, grpcError(err)
		}
		return handler(WithPrincipal(ctx, p), req)
	}
}

// NewStreamAuthInterceptor is the streaming counterpart of NewUnaryAuthInterceptor.
func NewStreamAuthInterceptor(a *Authorizer, roles []models.Role, allowUnauthenticated ...string) grpc.StreamServerInterceptor {
	allow := allowSet(allowUnauthenticated)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if _, ok := allow[info.FullMethod]; ok {
			return handler(srv, ss)
		}
		ctx := ss.Context()
		p, err := a.Authorize(ctx, headerFromMD(ctx), roles...)
		if err != nil {
			return grpcError(err)
		}
		return handler(srv, &principalStream{ServerStream: ss, ctx: WithPrincipal(ctx, p)})
	}
}

type principalStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *principalStream) Context() context.Context { return s.ctx }

func headerFromMD(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get("authorization"); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func allowSet(methods []string) map[string]struct{} {
	allow := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		allow[strings.TrimSpace(m)] = struct{}{}
	}
	return allow
}

func grpcError(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(codes.Unauthenticated, "unauthorized")
}

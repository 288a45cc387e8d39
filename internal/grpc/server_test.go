package grpcserver

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	reflectionpb "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"emargement/internal/auth"
	"emargement/internal/testutil"
	"emargement/repository"
)

const testKey = "grpc-test-key"

type switchPinger struct {
	mu  sync.Mutex
	err error
}

func (p *switchPinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *switchPinger) set(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

type harness struct {
	srv    *Server
	conn   *grpc.ClientConn
	tokens *auth.TokenService
	userID int64
}

func newHarness(t *testing.T, name string, store Pinger) *harness {
	t.Helper()
	d := testutil.OpenInMemoryDB(t, name)
	userID := testutil.SeedUser(t, d, "Tom", "tom@x.com", "password1", "trainer")
	tokens, err := auth.NewTokenService(testKey, 0)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	srv := New(Deps{
		Store:         store,
		Authorizer:    auth.NewAuthorizer(tokens, repository.NewUserRepository(d), nil),
		CheckInterval: time.Hour,
	})

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return &harness{srv: srv, conn: conn, tokens: tokens, userID: userID}
}

func TestHealthCheckIsPublic(t *testing.T) {
	h := newHarness(t, "grpc_health_public", &switchPinger{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(h.conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", resp.GetStatus())
	}
}

func TestHealthFollowsStore(t *testing.T) {
	store := &switchPinger{}
	h := newHarness(t, "grpc_health_store", store)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client := healthpb.NewHealthClient(h.conn)

	store.set(errors.New("database is closed"))
	if st := h.srv.Check(ctx); st != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("Check returned %v", st)
	}
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %v", resp.GetStatus())
	}

	store.set(nil)
	h.srv.Check(ctx)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected recovery to SERVING, got %v err=%v", resp.GetStatus(), err)
	}
}

func listServices(ctx context.Context, conn *grpc.ClientConn) ([]string, error) {
	stream, err := reflectionpb.NewServerReflectionClient(conn).ServerReflectionInfo(ctx)
	if err != nil {
		return nil, err
	}
	req := &reflectionpb.ServerReflectionRequest{
		MessageRequest: &reflectionpb.ServerReflectionRequest_ListServices{ListServices: "*"},
	}
	// io.EOF from Send means the server closed the stream; Recv has the status.
	if err := stream.Send(req); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	resp, err := stream.Recv()
	if err != nil {
		return nil, err
	}
	_ = stream.CloseSend()
	var names []string
	for _, s := range resp.GetListServicesResponse().GetService() {
		names = append(names, s.GetName())
	}
	return names, nil
}

func TestReflectionRequiresToken(t *testing.T) {
	h := newHarness(t, "grpc_reflection_anon", &switchPinger{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := listServices(ctx, h.conn)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestReflectionWithToken(t *testing.T) {
	h := newHarness(t, "grpc_reflection_auth", &switchPinger{})
	tok, err := h.tokens.Issue(h.userID, "trainer")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+tok)

	names, err := listServices(ctx, h.conn)
	if err != nil {
		t.Fatalf("list services: %v", err)
	}
	found := false
	for _, n := range names {
		if n == healthpb.Health_ServiceDesc.ServiceName {
			found = true
		}
	}
	if !found {
		t.Fatalf("health service not listed: %v", names)
	}
}

func TestShutdownStopsServing(t *testing.T) {
	h := newHarness(t, "grpc_shutdown", &switchPinger{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, err := healthpb.NewHealthClient(h.conn).Check(ctx, &healthpb.HealthCheckRequest{}); err == nil {
		t.Fatalf("expected Check to fail after shutdown")
	}
}

package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func newHealthClient(t *testing.T) (*Server, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 16)
	srv := NewServer(logger.NewNop())
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		srv.GracefulStop()
	})
	return srv, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, cli healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := cli.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthFollowsCatalogReadiness(t *testing.T) {
	srv, cli := newHealthClient(t)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, cli, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, cli, ServiceName))

	ready := make(chan struct{})
	srv.WatchReady(context.Background(), ready)
	close(ready)

	assert.Eventually(t, func() bool {
		return check(t, cli, ServiceName) == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, cli, ""))
}

func TestSetReady(t *testing.T) {
	srv, cli := newHealthClient(t)
	srv.SetReady(true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, cli, ""))
	srv.SetReady(false)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, cli, ""))
}

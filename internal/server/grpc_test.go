package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/anvil-platform/gateway-console/internal/health"
)

func servingStatus(t *testing.T, g *GRPCHealth, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := g.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestGRPCHealth_FollowsReports(t *testing.T) {
	g := NewGRPCHealth(logr.Discard(), health.SystemKubernetes, health.SystemRuntime)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, g, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_UNKNOWN, servingStatus(t, g, health.SystemKubernetes))

	degraded := health.Report{
		Status: health.StatusDegraded,
		Systems: []health.SystemReport{
			{Result: health.Result{System: health.SystemKubernetes, Healthy: true}},
			{Result: health.Result{System: health.SystemRuntime, Healthy: false}},
		},
	}
	g.HealthChanged(context.Background(), health.Report{}, degraded)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(t, g, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(t, g, health.SystemKubernetes))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, g, health.SystemRuntime))

	unhealthy := health.Report{
		Status:  health.StatusUnhealthy,
		Systems: []health.SystemReport{{Result: health.Result{System: health.SystemKubernetes, Healthy: false}}},
	}
	g.HealthChanged(context.Background(), degraded, unhealthy)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, g, ""))
}

func TestGRPCHealth_ServesOverTheWire(t *testing.T) {
	g := NewGRPCHealth(logr.Discard())
	g.HealthChanged(context.Background(), health.Report{}, health.Report{Status: health.StatusHealthy})

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.serve(ctx, lis) }()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()
	resp, err := healthpb.NewHealthClient(conn).Check(callCtx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("gRPC server did not stop")
	}
}

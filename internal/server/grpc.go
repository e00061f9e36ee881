package server

import (
	"context"
	"fmt"
	"net"

	"github.com/go-logr/logr"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/anvil-platform/gateway-console/internal/health"
)

// GRPCHealth serves the standard grpc.health.v1 service. The empty service
// name carries the aggregate status; every backing system is also exposed
// under its own name.
//
// A degraded console still serves: only an unhealthy aggregate flips the
// empty service to NOT_SERVING.
type GRPCHealth struct {
	server *grpc.Server
	health *grpchealth.Server
	log    logr.Logger
}

func NewGRPCHealth(log logr.Logger, systems ...string) *GRPCHealth {
	hs := grpchealth.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	for _, s := range systems {
		hs.SetServingStatus(s, healthpb.HealthCheckResponse_UNKNOWN)
	}
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	return &GRPCHealth{server: gs, health: hs, log: log}
}

// HealthChanged implements health.Observer.
func (g *GRPCHealth) HealthChanged(_ context.Context, _, current health.Report) {
	overall := healthpb.HealthCheckResponse_SERVING
	if current.Status == health.StatusUnhealthy {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.health.SetServingStatus("", overall)
	for _, s := range current.Systems {
		status := healthpb.HealthCheckResponse_SERVING
		if !s.Healthy {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		g.health.SetServingStatus(s.System, status)
	}
	g.log.V(1).Info("gRPC health updated", "status", overall.String())
}

// Serve listens on addr until ctx is done, then stops gracefully.
func (g *GRPCHealth) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return g.serve(ctx, lis)
}

func (g *GRPCHealth) serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		g.log.Info("serving gRPC health", "addr", lis.Addr().String())
		errCh <- g.server.Serve(lis)
	}()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	// Shutdown flips every service to NOT_SERVING so watchers see it first.
	g.health.Shutdown()
	g.server.GracefulStop()
	return nil
}

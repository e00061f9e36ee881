package main

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"

	"github.com/anvil-platform/gateway-console/controllers"
	"github.com/anvil-platform/gateway-console/internal/config"
	"github.com/anvil-platform/gateway-console/internal/events"
	"github.com/anvil-platform/gateway-console/internal/gateway"
	"github.com/anvil-platform/gateway-console/internal/health"
	"github.com/anvil-platform/gateway-console/internal/publish"
	"github.com/anvil-platform/gateway-console/internal/retry"
	"github.com/anvil-platform/gateway-console/internal/server"
)

// natsMirrorID is the subscriber id of the NATS event mirror.
const natsMirrorID = "nats-mirror"

// app holds the wired components of a running console.
type app struct {
	cfg      config.Config
	gateway  *gateway.KubeGateway
	executor *retry.Executor
	monitor  *health.Monitor
	runtime  *health.RuntimeProbe
	hub      *events.Broadcaster
	console  *controllers.Console
	grpc     *server.GRPCHealth
	server   *server.Server
}

// newMonitor connects to the cluster and builds the health monitor over the
// configured probes. It is all the check command needs.
func newMonitor(ctx context.Context, cfg config.Config, log logr.Logger) (*app, error) {
	factory := gateway.KubeconfigFactory(cfg.Kubeconfig, gateway.NewScheme(), cfg.RequestTimeout)
	gw, err := gateway.NewKubeGateway(ctx, factory, log.WithName("gateway"))
	if err != nil {
		return nil, fmt.Errorf("create cluster client: %w", err)
	}
	a := &app{
		cfg:      cfg,
		gateway:  gw,
		executor: retry.NewExecutor(log.WithName("retry")),
	}

	cluster, err := health.NewClusterProbe(gw, cfg.MinKubernetesVersion)
	if err != nil {
		return nil, err
	}
	probes := []health.Probe{cluster}
	if !cfg.DisableRuntimeProbe {
		a.runtime = health.NewRuntimeProbe(health.DockerEnvFactory(cfg.DockerHost))
		probes = append(probes, a.runtime)
	}
	a.monitor = health.NewMonitor(log.WithName("health"), a.executor, health.Options{
		Interval:        cfg.HealthInterval,
		ProbeTimeout:    cfg.ProbeTimeout,
		ReconnectPolicy: cfg.Retry.Reconnect,
	}, probes...)
	return a, nil
}

// newApp wires the full console on top of newMonitor.
func newApp(ctx context.Context, cfg config.Config, log logr.Logger) (*app, error) {
	a, err := newMonitor(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a.hub = events.NewBroadcaster(log.WithName("events"), events.Options{
		HeartbeatInterval: cfg.HeartbeatInterval,
		ShutdownGrace:     cfg.ShutdownGrace,
		BufferSize:        cfg.WebSocket.SubscriberBuffer,
		InitialState:      func(ctx context.Context) (any, error) { return a.console.InitialState(ctx) },
	})
	ctrlOpts := controllers.Options{
		ReadPolicy:     cfg.Retry.Read,
		MutationPolicy: cfg.Retry.Mutation,
		Namespace:      cfg.Namespace,
	}
	a.console = controllers.NewConsole(
		controllers.NewGatewayController(a.gateway, a.executor, a.hub, ctrlOpts),
		controllers.NewHTTPRouteController(a.gateway, a.executor, a.hub, ctrlOpts),
	)

	a.monitor.AddObserver(events.HealthObserver(a.hub))
	if cfg.GRPCAddress != "" {
		a.grpc = server.NewGRPCHealth(log.WithName("grpc"), a.monitor.Systems()...)
		a.monitor.AddObserver(a.grpc)
	}

	if cfg.NATS.URL != "" {
		pub, err := publish.NewNATSPublisher(ctx, cfg.NATS.URL, publish.NATSOptions{MaxReconnects: cfg.NATS.MaxReconnects}, log.WithName("nats"))
		if err != nil {
			return nil, err
		}
		mirror := &events.PublisherTransport{Publisher: pub, Prefix: cfg.NATS.SubjectPrefix, Timeout: cfg.RequestTimeout}
		if err := a.hub.Attach(natsMirrorID, mirror, a.hub.Channels()...); err != nil {
			_ = pub.Close()
			return nil, err
		}
	}

	a.server = server.New(log.WithName("server"), a.console, a.monitor, a.hub, server.Options{
		Production:     cfg.Production,
		RequestTimeout: cfg.RequestTimeout,
		WebSocket: server.WebSocketOptions{
			MaxMessageBytes: cfg.WebSocket.MaxMessageBytes,
			ControlRate:     rate.Limit(cfg.WebSocket.ControlRate),
			ControlBurst:    cfg.WebSocket.ControlBurst,
			AllowedOrigins:  cfg.WebSocket.AllowedOrigins,
		},
	})
	return a, nil
}

func (a *app) close() {
	if a.runtime != nil {
		_ = a.runtime.Close()
	}
}

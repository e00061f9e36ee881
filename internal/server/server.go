// Package server exposes the console over HTTP: the REST API, the /ws push
// endpoint, liveness and readiness checks, and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/anvil-platform/gateway-console/controllers"
	"github.com/anvil-platform/gateway-console/internal/events"
	"github.com/anvil-platform/gateway-console/internal/health"
)

// HealthService is the part of *health.Monitor the API needs.
type HealthService interface {
	CheckHealth(ctx context.Context) health.Report
	Reconnect(ctx context.Context, system string) error
	State(system string) health.State
	Last() (health.Report, bool)
}

// Hub is the part of *events.Broadcaster the WebSocket endpoint needs.
type Hub interface {
	Connect(ctx context.Context, id string, t events.Transport) error
	Disconnect(id string) bool
	Subscribe(id, channel string) error
	Unsubscribe(id, channel string) error
	PublishToSubscriber(id string, ev events.Event) error
}

type Options struct {
	// Production hides error details from responses.
	Production bool
	// RequestTimeout bounds every /api/v1 request. Zero disables the bound.
	RequestTimeout time.Duration
	WebSocket      WebSocketOptions
}

type Server struct {
	console *controllers.Console
	health  HealthService
	hub     Hub
	log     logr.Logger
	opts    Options
	engine  *gin.Engine
}

func New(log logr.Logger, console *controllers.Console, healthSvc HealthService, hub Hub, opts Options) *Server {
	opts.WebSocket = opts.WebSocket.withDefaults()
	s := &Server{
		console: console,
		health:  healthSvc,
		hub:     hub,
		log:     log,
		opts:    opts,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the router serving every endpoint.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(recovery(s), requestLogger(s.log))

	checks := s.healthzHandler()
	r.GET("/healthz", checks)
	r.GET("/healthz/:check", checks)
	readiness := s.readyzHandler()
	r.GET("/readyz", readiness)
	r.GET("/readyz/:check", readiness)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	r.GET("/ws", s.handleWebSocket)

	api := r.Group("/api/v1", requestTimeout(s.opts.RequestTimeout))
	api.GET("/health", s.getHealth)
	api.POST("/health/reconnect/:system", s.reconnect)
	api.GET("/topology", s.getTopology)
	s.resourceRoutes(api.Group("/gateways"), s.console.Gateways)
	s.resourceRoutes(api.Group("/httproutes"), s.console.HTTPRoutes)
	return r
}

// Run serves on addr until ctx is cancelled, then shuts the listener down,
// giving in-flight requests up to grace to finish.
func (s *Server) Run(ctx context.Context, addr string, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving HTTP", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error(err, "HTTP shutdown did not complete")
		return srv.Close()
	}
	return nil
}

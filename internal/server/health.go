package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"sigs.k8s.io/controller-runtime/pkg/healthz"

	"github.com/anvil-platform/gateway-console/internal/health"
)

// ReconnectResponse is returned by a successful reconnect.
type ReconnectResponse struct {
	System string       `json:"system"`
	State  health.State `json:"state"`
}

// getHealth runs every probe now. Anything short of healthy is a 503 so load
// balancers can act on the status code alone; the body tells degraded and
// unhealthy apart.
func (s *Server) getHealth(c *gin.Context) {
	report := s.health.CheckHealth(c.Request.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func (s *Server) reconnect(c *gin.Context) {
	system := c.Param("system")
	if err := s.health.Reconnect(c.Request.Context(), system); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ReconnectResponse{System: system, State: s.health.State(system)})
}

func (s *Server) healthzHandler() gin.HandlerFunc {
	return checksHandler("/healthz", map[string]healthz.Checker{"ping": healthz.Ping})
}

// readyzHandler reports ready once the last periodic check saw the cluster
// healthy. It does not probe on its own.
func (s *Server) readyzHandler() gin.HandlerFunc {
	return checksHandler("/readyz", map[string]healthz.Checker{
		"ping":                  healthz.Ping,
		health.SystemKubernetes: s.clusterReady,
	})
}

func (s *Server) clusterReady(_ *http.Request) error {
	report, ok := s.health.Last()
	if !ok {
		return errors.New("no health check has completed yet")
	}
	sys, ok := report.System(health.SystemKubernetes)
	if !ok {
		return errors.New("cluster is not monitored")
	}
	if !sys.Healthy {
		return fmt.Errorf("cluster unhealthy: %s", sys.Message)
	}
	return nil
}

func checksHandler(prefix string, checks map[string]healthz.Checker) gin.HandlerFunc {
	return gin.WrapH(http.StripPrefix(prefix, &healthz.Handler{Checks: checks}))
}

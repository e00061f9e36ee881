package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/anvil-platform/gateway-console/internal/apperr"
)

// requestLogger puts a request-scoped logger into the request context and logs
// each request once it has been served.
func requestLogger(log logr.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		reqLog := log.WithValues("method", c.Request.Method, "route", route)
		c.Request = c.Request.WithContext(logf.IntoContext(c.Request.Context(), reqLog))

		c.Next()

		status := c.Writer.Status()
		kv := []any{"status", status, "duration", time.Since(start), "path", c.Request.URL.Path}
		if status >= http.StatusInternalServerError {
			reqLog.Info("request failed", kv...)
			return
		}
		reqLog.V(1).Info("request served", kv...)
	}
}

func recovery(s *Server) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		err := apperr.New(apperr.KindInternal, "panic: %v", recovered)
		s.log.Error(err, "recovered from panic", "path", c.Request.URL.Path)
		s.writeError(c, err)
	})
}

// requestTimeout bounds the context of API handlers. Handlers observe the
// deadline through the cluster calls they make.
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

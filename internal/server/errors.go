package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	consolev1 "github.com/anvil-platform/gateway-console/api/v1"
	"github.com/anvil-platform/gateway-console/internal/apperr"
)

// writeError renders err in the API error envelope. Details carry the full
// error chain and are left out in production.
func (s *Server) writeError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	c.AbortWithStatusJSON(status, errorResponse(err, status, s.opts.Production))
}

func errorResponse(err error, status int, production bool) consolev1.ErrorResponse {
	resp := consolev1.ErrorResponse{
		Code:    apperr.Code(err),
		Message: publicMessage(err, status),
	}
	if !production {
		resp.Details = err.Error()
	}
	return resp
}

// publicMessage never exposes internal failures, only the message attached
// to a classified error.
func publicMessage(err error, status int) string {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Message != "" && ae.Kind != apperr.KindInternal {
		return ae.Message
	}
	return http.StatusText(status)
}

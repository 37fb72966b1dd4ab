package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"shortbox/internal/logging"
	"shortbox/internal/services"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps a workflow error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrExternal), errors.Is(err, services.ErrTransient), errors.Is(err, services.ErrTimeout):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.WithContext(c.Request.Context(), s.logger).Warn("api request failed",
			logging.String("route", c.FullPath()),
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     services.Kind(err),
		Message:   err.Error(),
		RequestID: requestIDOf(c),
	})
}

func (s *Server) badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:     "bad_request",
		Message:   message,
		RequestID: requestIDOf(c),
	})
}

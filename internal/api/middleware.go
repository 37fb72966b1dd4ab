package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"shortbox/internal/logging"
	"shortbox/internal/services"
)

const requestIDHeader = "X-Request-ID"

// requestID tags the request context with a correlation id, reusing the
// caller's header when present.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger := logging.WithContext(c.Request.Context(), s.logger)
		logger.Debug("api request",
			logging.String("method", c.Request.Method),
			logging.String("route", c.FullPath()),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("elapsed", time.Since(start)),
		)
	}
}

// auth requires the configured bearer token. With no token every request
// passes through.
func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.token == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") || strings.TrimPrefix(header, "Bearer ") != s.token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error:     "unauthorized",
				Message:   "Authorization header with Bearer token is required",
				RequestID: requestIDOf(c),
			})
			return
		}
		c.Next()
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("api handler panic",
					logging.String("route", c.FullPath()),
					logging.String("panic", fmt.Sprint(r)),
					logging.Alert("api_panic"),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Error:   "internal",
					Message: "internal server error",
				})
			}
		}()
		c.Next()
	}
}

func requestIDOf(c *gin.Context) string {
	id, _ := services.RequestIDFromContext(c.Request.Context())
	return id
}

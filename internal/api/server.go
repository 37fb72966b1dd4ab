package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"shortbox/internal/config"
	"shortbox/internal/logging"
	"shortbox/internal/workflow"
)

const (
	defaultWatchInterval = 500 * time.Millisecond
	shutdownTimeout      = 5 * time.Second
)

// Server serves the job API.
type Server struct {
	bind    string
	token   string
	manager *workflow.Manager
	logger  *slog.Logger
	engine  *gin.Engine

	// WatchInterval is how often watch connections check for changes.
	WatchInterval time.Duration

	listener net.Listener
	server   *http.Server
}

// New builds the API server for manager. Routes are registered
// immediately; Start begins listening.
func New(cfg *config.Config, manager *workflow.Manager, logger *slog.Logger) *Server {
	s := &Server{
		manager:       manager,
		logger:        logging.NewComponentLogger(logger, "api"),
		WatchInterval: defaultWatchInterval,
	}
	if cfg != nil {
		s.bind = strings.TrimSpace(cfg.Paths.APIBind)
		s.token = cfg.Paths.APIToken
	}

	engine := gin.New()
	engine.Use(s.recovery(), s.requestID(), s.accessLog())
	s.RegisterRoutes(engine)
	s.engine = engine
	return s
}

// RegisterRoutes sets up every API route on r.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1", s.auth())
	{
		v1.POST("/jobs", s.createJob)
		v1.GET("/jobs", s.listJobs)
		v1.GET("/jobs/:id", s.getJob)
		v1.DELETE("/jobs/:id", s.abandonJob)
		v1.POST("/jobs/:id/start", s.startJob)
		v1.POST("/jobs/:id/cancel", s.cancelJob)
		v1.POST("/jobs/:id/complete", s.completeJob)
		v1.GET("/jobs/:id/watch", s.watchJob)
		v1.GET("/jobs/:id/log", s.jobLog)

		v1.GET("/jobs/:id/search", s.search)
		v1.POST("/jobs/:id/search/more", s.loadMore)
		v1.POST("/jobs/:id/groups/current/approve", s.approve)
		v1.POST("/jobs/:id/groups/current/skip", s.skip)
		v1.POST("/jobs/:id/groups/:index/reset", s.resetGroup)
		v1.POST("/jobs/:id/groups/:index/secondaries", s.approveSecondaries)

		v1.GET("/jobs/:id/files", s.listFiles)
		v1.PATCH("/jobs/:id/files/:fileId/fields", s.updateFields)
		v1.POST("/jobs/:id/files/:fileId/accept", s.acceptFile)
		v1.POST("/jobs/:id/files/:fileId/reject", s.rejectFile)
		v1.POST("/jobs/:id/files/:fileId/restore", s.restoreFile)
		v1.POST("/jobs/:id/files/:fileId/move", s.moveFile)
		v1.POST("/jobs/:id/batch/:kind", s.batch)

		v1.POST("/jobs/:id/apply", s.apply)
		v1.GET("/jobs/:id/apply", s.applyStatus)
	}
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start listens on the configured bind address and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	if s.bind == "" {
		return fmt.Errorf("api listen: no bind address configured")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

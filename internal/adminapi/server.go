package adminapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"changeprop/internal/config"
	"changeprop/internal/constants"
	"changeprop/internal/logger"
	"changeprop/pkg/middleware"
	"changeprop/pkg/tracing"
)

// Server owns the admin HTTP listener's lifecycle, mirroring the
// teacher's management-service App.server/initServer/Run/Shutdown
// split.
type Server struct {
	httpServer *http.Server
	logger     logger.Logger
}

// NewServer builds a gin.Engine wired with the standard middleware
// stack (recovery, request logging, request ID) and every route
// handler registers, then wraps it in an *http.Server listening on
// port.
func NewServer(port int, handler *Handler, reloadRateLimit config.RateLimitConfig, log logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(tracing.GinMiddleware("changeprop-admin-api")...)
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())

	handler.RegisterRoutes(router, reloadRateLimit)

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		},
		logger: log,
	}
}

// Run starts the listener and blocks until ctx is cancelled or the
// server fails to start.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.InfowCtx(ctx, "admin API listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("admin API server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

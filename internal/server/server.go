// Package server exposes a Session over a small local HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lu-zhengda/launchdeck/internal/launcher"
	"github.com/lu-zhengda/launchdeck/internal/metrics"
)

// DefaultAddr keeps the API on the loopback interface.
const DefaultAddr = "127.0.0.1:7420"

// Options configures a Server.
type Options struct {
	Addr    string
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// ClearCache, when set, backs POST /api/apps/rescan?clearCache=1.
	ClearCache func(ctx context.Context) error
}

// Server routes API requests to a Session.
type Server struct {
	session    *launcher.Session
	router     *gin.Engine
	addr       string
	logger     *zap.Logger
	metrics    *metrics.Metrics
	clearCache func(ctx context.Context) error
}

// New builds the router.
func New(session *launcher.Session, opts Options) *Server {
	s := &Server{
		session:    session,
		addr:       opts.Addr,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		clearCache: opts.ClearCache,
	}
	if s.addr == "" {
		s.addr = DefaultAddr
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog(s.logger))

	router.GET("/healthz", s.health)

	api := router.Group("/api")
	api.GET("/apps", s.listApps)
	api.POST("/apps/rescan", s.rescan)
	api.POST("/apps/stop", s.stopApps)
	api.POST("/apps/:id/launch", s.launchApp)
	api.POST("/apps/:id/pin", s.togglePin)
	api.PUT("/apps/:id/group", s.setGroup)
	api.POST("/order/move", s.moveApp)
	api.POST("/order/reset", s.resetOrder)
	api.GET("/runtime", s.runtime)
	api.GET("/news/:category", s.news)

	router.GET("/ws/scan", s.scanStream)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	s.router = router
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve api: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down api: %w", err)
	}
	return nil
}

// Package api exposes the engine over HTTP: simulation runs, retained
// results, optimizer and estimator endpoints, the websocket progress feed,
// and Prometheus metrics.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quantfolio/risk-engine/pkg/utils/logger"
)

// Config holds the configuration for the API server
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server represents the API server
type Server struct {
	config     Config
	engine     *gin.Engine
	httpServer *http.Server
	handlers   *Handlers
	log        *logger.Logger
}

// NewServer creates a new API server
func NewServer(config Config, handlers *Handlers) *Server {
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 10 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 30 * time.Second
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(LoggingMiddleware())
	engine.Use(MetricsMiddleware(handlers.recorder))
	engine.Use(CORSMiddleware())
	engine.Use(ErrorMiddleware())

	server := &Server{
		config:   config,
		engine:   engine,
		handlers: handlers,
		log:      logger.GetLogger("api.server"),
	}
	server.setupRoutes()

	return server
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Metrics endpoint for Prometheus
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/api/v1")
	v1.GET("/health", s.handlers.HealthHandler)

	sim := v1.Group("/simulation")
	sim.POST("/run", s.handlers.RunSimulationHandler)
	sim.GET("/result", s.handlers.GetResultHandler)
	sim.GET("/result/previous", s.handlers.GetPreviousResultHandler)
	sim.GET("/progress", func(c *gin.Context) {
		s.handlers.hub.HandleWebSocket(c.Writer, c.Request)
	})

	opt := v1.Group("/optimizer")
	opt.POST("/swaps", s.handlers.SwapsHandler)
	opt.POST("/riskparity", s.handlers.RiskParityHandler)

	v1.POST("/risk/decompose", s.handlers.DecomposeHandler)
	v1.POST("/estimator/shrink", s.handlers.ShrinkHandler)
}

// Start starts the API server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.log.Infof("Starting API server on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Stop stops the API server gracefully
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		s.log.Info("Stopping API server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

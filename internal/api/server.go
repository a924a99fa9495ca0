package api

import (
	"context"
	"net/http"
	"time"

	"example.com/coastwatch/config"
	"example.com/coastwatch/internal/api/handlers"
	"example.com/coastwatch/internal/hub"
	"example.com/coastwatch/internal/metrics"
	"example.com/coastwatch/internal/spatial"
	"example.com/coastwatch/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Dependencies are the components the HTTP surface exposes
type Dependencies struct {
	Devices   handlers.DeviceService
	Hub       *hub.Hub
	Analyzer  *spatial.Analyzer
	Clusterer *spatial.Clusterer
	Cache     handlers.ReadingCache
	History   handlers.ServiceHistory
	Indexer   handlers.ClusterIndexer
	Metrics   *metrics.Collector
	Tracer    tracing.Tracer
}

// Server represents the HTTP server
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server
	deps       Dependencies
}

// NewServer creates a new HTTP server
func NewServer(cfg config.Config, deps Dependencies) *Server {
	if deps.Tracer == nil {
		deps.Tracer = tracing.Disabled()
	}

	server := &Server{
		config: cfg,
		deps:   deps,
	}
	server.router = server.setupRouter()
	server.httpServer = &http.Server{
		Addr:        cfg.Server.Address,
		Handler:     server.router,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	return server
}

// Router exposes the gin engine for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware())
	if app := s.deps.Tracer.Application(); app != nil {
		router.Use(NewRelicMiddleware(app))
	}

	var recorder handlers.AnalyticsRecorder
	if s.deps.Metrics != nil {
		recorder = s.deps.Metrics
	}

	v1 := router.Group("/api/v1")

	deviceHandler := handlers.NewDeviceHandler(s.deps.Devices, s.deps.Cache, s.deps.History, s.deps.Tracer)
	deviceHandler.RegisterRoutes(v1)

	feedHandler := handlers.NewFeedHandler(s.deps.Hub, s.config.Stream.SubscriberBuffer)
	feedHandler.RegisterRoutes(v1)

	analyticsHandler := handlers.NewAnalyticsHandler(handlers.AnalyticsOptions{
		Analyzer:  s.deps.Analyzer,
		Clusterer: s.deps.Clusterer,
		Indexer:   s.deps.Indexer,
		Recorder:  recorder,
		Tracer:    s.deps.Tracer,
		DefaultK:  s.config.Clustering.DefaultK,
	})
	analyticsHandler.RegisterRoutes(v1)

	router.GET("/health", s.health)
	if s.deps.Metrics != nil && s.config.Metrics.Enabled {
		router.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	return router
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if s.deps.Devices != nil {
		body["devices"] = len(s.deps.Devices.Devices())
	}
	if s.deps.Hub != nil {
		body["subscribers"] = s.deps.Hub.Count()
	}
	c.JSON(http.StatusOK, body)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.Server.Address).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}

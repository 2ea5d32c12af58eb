package network

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// StatsProvider is anything that can report server stats. *Server implements it.
type StatsProvider interface {
	Stats() Stats
}

// StatusConfig holds status API configuration
type StatusConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Gatherer backs GET /metrics. Default: prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

// DefaultStatusConfig returns default status API configuration
func DefaultStatusConfig() *StatusConfig {
	return &StatusConfig{
		Addr:         "127.0.0.1:8889",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		Gatherer:     prometheus.DefaultGatherer,
		Logger:       zerolog.Nop(),
	}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// StatusServer exposes server stats and Prometheus metrics over HTTP.
type StatusServer struct {
	source     StatsProvider
	config     *StatusConfig
	router     *gin.Engine
	httpServer *http.Server
	startTime  time.Time
}

// NewStatusServer creates the HTTP status API for source.
func NewStatusServer(source StatsProvider, config *StatusConfig) *StatusServer {
	if config == nil {
		config = DefaultStatusConfig()
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(loggingMiddleware(config.Logger))
	router.Use(gin.Recovery())

	s := &StatusServer{
		source:    source,
		config:    config,
		router:    router,
		startTime: time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures API routes
func (s *StatusServer) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/status", s.handleStatus)
		v1.GET("/peers", s.handlePeers)
	}

	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))
}

// Handler returns the HTTP handler serving the API.
func (s *StatusServer) Handler() http.Handler {
	return s.router
}

// Start serves the API on the configured address until ctx is done, then shuts down gracefully.
func (s *StatusServer) Start(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.config.Logger.Info().Str("address", listener.Addr().String()).Msg("Status API listening")
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.config.Logger.Info().Msg("Status API shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// handleHealth handles GET /health
func (s *StatusServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(s.startTime).Seconds(),
	})
}

// handleStatus handles GET /api/v1/status
func (s *StatusServer) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.source.Stats())
}

// handlePeers handles GET /api/v1/peers
func (s *StatusServer) handlePeers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"peers": s.source.Stats().Peers})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		status := c.Writer.Status()
		ev := logger.Debug()
		if status >= http.StatusInternalServerError {
			ev = logger.Error()
		}
		ev.Int("status", status).
			Str("client", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Dur("latency", time.Since(startTime)).
			Msg("HTTP request")
	}
}

// Package http serves the hybridq API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/hybridq/internal/engine"
	"github.com/fyrsmithlabs/hybridq/internal/ingest"
	"github.com/fyrsmithlabs/hybridq/internal/logging"
)

// Server provides HTTP endpoints for hybridq.
type Server struct {
	echo     *echo.Echo
	manager  *engine.Manager
	pipeline *ingest.Pipeline
	logger   *logging.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host           string
	Port           int
	MaxUploadBytes int64
	DefaultLimit   int
}

// NewServer creates a new HTTP server.
func NewServer(manager *engine.Manager, pipeline *ingest.Pipeline, logger *logging.Logger, cfg *Config) (*Server, error) {
	if manager == nil {
		return nil, fmt.Errorf("engine manager cannot be nil")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("ingest pipeline cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8000,
		}
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger.Underlying()).MetricsMiddleware())
	e.Use(requestLogger(logger))

	s := &Server{
		echo:     e,
		manager:  manager,
		pipeline: pipeline,
		logger:   logger,
		config:   cfg,
	}

	s.registerRoutes()

	return s, nil
}

// requestLogger puts the request id on the request context and logs every
// request once it completes.
func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			reqID := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithRequestID(c.Request().Context(), reqID)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		}
	}
}

// uploadRoute is the registered path of handleUpload.
const uploadRoute = "/api/upload-documents"

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")
	api.POST("/connect-database", s.handleConnect)
	api.GET("/schema", s.handleSchema)
	api.POST("/upload-documents", s.handleUpload)
	api.POST("/query", s.handleQuery)
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

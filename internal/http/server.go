// Package http serves the eye registry, flows and breaker status over HTTP.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/breaker"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/eyes"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/logging"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/orchestrator"
)

var (
	ErrNilRegistry = errors.New("eye registry is required")
	ErrNilFlows    = errors.New("flows are required")
	ErrNilBreakers = errors.New("breaker registry is required")
	ErrNilLogger   = errors.New("logger is required for request tracking")
)

// Config holds HTTP server configuration.
type Config struct {
	Host        string
	Port        int
	ReadTimeout time.Duration
}

// Deps are the services the server exposes.
type Deps struct {
	Eyes     *eyes.Registry
	Flows    *orchestrator.Flows
	Breakers *breaker.Registry

	// Gatherer backs /metrics. Nil uses the default Prometheus registry.
	Gatherer prometheus.Gatherer
	Metrics  *Metrics
	Logger   *zap.Logger
}

// Server is the HTTP transport.
type Server struct {
	echo     *echo.Echo
	eyes     *eyes.Registry
	flows    *orchestrator.Flows
	breakers *breaker.Registry
	logger   *zap.Logger
	config   *Config
}

// NewServer builds the server and registers routes.
func NewServer(deps Deps, cfg *Config) (*Server, error) {
	switch {
	case deps.Eyes == nil:
		return nil, ErrNilRegistry
	case deps.Flows == nil:
		return nil, ErrNilFlows
	case deps.Breakers == nil:
		return nil, ErrNilBreakers
	case deps.Logger == nil:
		return nil, ErrNilLogger
	}
	if cfg == nil {
		cfg = &Config{Host: "127.0.0.1", Port: 7070}
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if cfg.ReadTimeout > 0 {
		e.Server.ReadTimeout = cfg.ReadTimeout
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(requestContext)
	e.Use(accessLog(deps.Logger))
	if deps.Metrics != nil {
		e.Use(deps.Metrics.Middleware())
	}

	s := &Server{
		echo:     e,
		eyes:     deps.Eyes,
		flows:    deps.Flows,
		breakers: deps.Breakers,
		logger:   deps.Logger,
		config:   cfg,
	}
	s.registerRoutes(gatherer)
	return s, nil
}

func (s *Server) registerRoutes(gatherer prometheus.Gatherer) {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/v1")
	v1.GET("/eyes", s.handleListEyes)
	v1.POST("/eyes/:namespace/:action", s.handleInvoke)
	v1.GET("/sessions/:id/status", s.handleSessionStatus)
	v1.DELETE("/sessions/:id", s.handleResetSession)
	v1.POST("/flows/clarification", s.handleClarification)
	v1.POST("/flows/code-review", s.handleCodeReview)
	v1.POST("/flows/text-validation", s.handleTextValidation)
	v1.GET("/breakers", s.handleBreakers)
	v1.POST("/breakers/reset", s.handleResetBreaker)
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens until Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// requestContext copies the request id into the request's context so
// downstream log lines carry it.
func requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Response().Header().Get(echo.HeaderXRequestID)
		req := c.Request()
		c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		return next(c)
	}
}

func accessLog(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("route", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	}
}

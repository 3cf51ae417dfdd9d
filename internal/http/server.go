// Package http exposes the askd engine over a JSON HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/containerd/errdefs"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/askd/internal/engine"
	"github.com/fyrsmithlabs/askd/internal/logging"
	"github.com/fyrsmithlabs/askd/internal/memory"
	"github.com/fyrsmithlabs/askd/internal/privacy"
)

// Engine is the part of the orchestration engine the API serves.
type Engine interface {
	ProcessQuery(ctx context.Context, raw string) engine.Response
	Status() engine.Status
	ChatHistory() []memory.Message
	ChangeAnswerMode(ctx context.Context, value string) error
	ChangeModelProvider(ctx context.Context, value string) error
	ChangeEmbeddingProvider(ctx context.Context, value string) error
	ChangeMemoryMode(ctx context.Context, value string) error
	ToggleFilter(ctx context.Context, enabled bool) error
	CreateNewSession() string
	LoadSession(ctx context.Context, id string) error
	AllSessions(ctx context.Context) ([]memory.Summary, error)
	DeleteSession(ctx context.Context, id string) (bool, error)
	ClearAllSessions(ctx context.Context) error
	SearchHistory(ctx context.Context, query string, k int) ([]memory.HistoryHit, error)
}

// Scrubber redacts sensitive data from arbitrary text.
type Scrubber interface {
	Scrub(text string) privacy.Result
}

// Server provides HTTP endpoints for askd.
type Server struct {
	echo     *echo.Echo
	engine   Engine
	scrubber Scrubber
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	// MaxBodyBytes limits request bodies; 0 uses 1MB.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`
}

// Option configures a Server.
type Option func(*Server)

// WithMeter records request metrics on m.
func WithMeter(m metric.Meter) Option {
	return func(s *Server) {
		s.echo.Use(NewHTTPMetrics(m, s.logger).MetricsMiddleware())
	}
}

// NewServer creates a new HTTP server.
func NewServer(eng Engine, scrubber Scrubber, logger *zap.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if scrubber == nil {
		return nil, fmt.Errorf("scrubber cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9191,
		}
	}
	limit := cfg.MaxBodyBytes
	if limit <= 0 {
		limit = 1 << 20
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		},
	}))
	e.Use(middleware.BodyLimit(strconv.FormatInt(limit, 10)))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			// URIs can carry search text, so only the route pattern is logged.
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("route", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		engine:   eng,
		scrubber: scrubber,
		logger:   logger,
		config:   cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	// Process and Go runtime metrics from the default registry.
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.POST("/query", s.handleQuery)
	v1.PUT("/modes", s.handleModes)
	v1.GET("/history", s.handleHistory)
	v1.POST("/scrub", s.handleScrub)

	v1.GET("/sessions", s.handleListSessions)
	v1.POST("/sessions", s.handleCreateSession)
	v1.DELETE("/sessions", s.handleClearSessions)
	v1.GET("/sessions/search", s.handleSearchSessions)
	v1.POST("/sessions/:id/load", s.handleLoadSession)
	v1.DELETE("/sessions/:id", s.handleDeleteSession)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.engine.Status())
}

// handleQuery answers a query. Engine failures are already folded into the
// answer text, so this only fails on a bad request.
func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid query request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	return c.JSON(http.StatusOK, s.engine.ProcessQuery(c.Request().Context(), req.Query))
}

// handleModes applies each requested change in a fixed order and stops at
// the first failure. Changes applied before the failure are kept.
func (s *Server) handleModes(c echo.Context) error {
	var req ModesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()

	changes := []struct {
		value  *string
		change func(context.Context, string) error
	}{
		{req.ModelProvider, s.engine.ChangeModelProvider},
		{req.EmbeddingProvider, s.engine.ChangeEmbeddingProvider},
		{req.MemoryMode, s.engine.ChangeMemoryMode},
		{req.AnswerMode, s.engine.ChangeAnswerMode},
	}
	for _, ch := range changes {
		if ch.value == nil {
			continue
		}
		if err := ch.change(ctx, *ch.value); err != nil {
			return s.engineError(err)
		}
	}
	if req.PrivacyFilter != nil {
		if err := s.engine.ToggleFilter(ctx, *req.PrivacyFilter); err != nil {
			return s.engineError(err)
		}
	}
	return c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) handleHistory(c echo.Context) error {
	msgs := s.engine.ChatHistory()
	if msgs == nil {
		msgs = []memory.Message{}
	}
	return c.JSON(http.StatusOK, msgs)
}

// handleScrub redacts sensitive data from the provided content.
func (s *Server) handleScrub(c echo.Context) error {
	var req ScrubRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid scrub request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	}

	result := s.scrubber.Scrub(req.Content)
	total := 0
	for _, n := range result.Counts {
		total += n
	}

	s.logger.Debug("scrubbed content", zap.Int("findings", total))

	return c.JSON(http.StatusOK, ScrubResponse{
		Content:       result.Text,
		FindingsCount: total,
		Categories:    result.Counts,
	})
}

func (s *Server) handleListSessions(c echo.Context) error {
	sessions, err := s.engine.AllSessions(c.Request().Context())
	if err != nil {
		return s.engineError(err)
	}
	if sessions == nil {
		sessions = []memory.Summary{}
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *Server) handleCreateSession(c echo.Context) error {
	return c.JSON(http.StatusCreated, SessionResponse{SessionID: s.engine.CreateNewSession()})
}

func (s *Server) handleLoadSession(c echo.Context) error {
	id := c.Param("id")
	if err := s.engine.LoadSession(c.Request().Context(), id); err != nil {
		return s.engineError(err)
	}
	return c.JSON(http.StatusOK, SessionResponse{SessionID: id, Messages: s.engine.ChatHistory()})
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	existed, err := s.engine.DeleteSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.engineError(err)
	}
	if !existed {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleClearSessions(c echo.Context) error {
	if err := s.engine.ClearAllSessions(c.Request().Context()); err != nil {
		return s.engineError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSearchSessions(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q parameter is required")
	}
	k := 5
	if raw := c.QueryParam("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 50 {
			return echo.NewHTTPError(http.StatusBadRequest, "k must be between 1 and 50")
		}
		k = n
	}
	hits, err := s.engine.SearchHistory(c.Request().Context(), q, k)
	if err != nil {
		return s.engineError(err)
	}
	if hits == nil {
		hits = []memory.HistoryHit{}
	}
	return c.JSON(http.StatusOK, hits)
}

// engineError maps an engine error to an HTTP error by its class.
func (s *Server) engineError(err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, memory.ErrSessionNotFound):
		code = http.StatusNotFound
	case errors.Is(err, memory.ErrTransientMode):
		code = http.StatusConflict
	case errors.Is(err, memory.ErrInvalidSessionID), errdefs.IsInvalidArgument(err):
		code = http.StatusBadRequest
	case errors.Is(err, memory.ErrNoIndex), errdefs.IsUnavailable(err):
		code = http.StatusServiceUnavailable
	}
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	return echo.NewHTTPError(code, err.Error())
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dagbolade/install-integrity-sidecar/internal/audit"
	"github.com/dagbolade/install-integrity-sidecar/internal/auth"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

type Server struct {
	echo   *echo.Echo
	config Config
}

type Config struct {
	Port            int
	ReadTimeout     int
	WriteTimeout    int
	ShutdownTimeout int
	BodyLimit       string
}

func New(cfg Config, reporter CheckReporter, store audit.Store, authManager *auth.Manager) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		config: cfg,
	}

	s.setupMiddleware()
	s.setupRoutes(reporter, store, authManager)

	return s
}

// Handler exposes the routed handler, for serving under httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Info().Int("port", s.config.Port).Msg("starting HTTP server")

	s.echo.Server.ReadTimeout = time.Duration(s.config.ReadTimeout) * time.Second
	s.echo.Server.WriteTimeout = time.Duration(s.config.WriteTimeout) * time.Second

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(s.config.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	return nil
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))

	s.echo.Use(middleware.Recover())

	if s.config.BodyLimit != "" {
		s.echo.Use(middleware.BodyLimit(s.config.BodyLimit))
	}
}

func (s *Server) setupRoutes(reporter CheckReporter, store audit.Store, authManager *auth.Manager) {
	checkHandler := NewCheckHandler(reporter)
	reportHandler := NewReportHandler(store)
	authHandler := auth.NewHandler(authManager)

	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/login", authHandler.Login)

	protected := s.echo.Group("")
	protected.Use(authManager.Middleware())

	protected.GET("/me", authHandler.Me)
	protected.POST("/checks", checkHandler.HandleCheck, authManager.RequireRole(auth.RoleReporter))
	protected.GET("/reports", reportHandler.GetReports, authManager.RequireRole(auth.RoleViewer))
	protected.GET("/reports/summary", reportHandler.GetSummary, authManager.RequireRole(auth.RoleViewer))
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

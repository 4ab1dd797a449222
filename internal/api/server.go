// Package api assembles the status HTTP server: probes, Prometheus metrics
// and the Huma status operations on an Echo router.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/donaldgifford/listing-notifier/internal/api/handlers"
	mw "github.com/donaldgifford/listing-notifier/internal/api/middleware"
)

// Loop is the poll loop state the server exposes.
type Loop interface {
	handlers.ReadinessChecker
	handlers.StatusProvider
}

// Config holds the listen address and timeouts.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Server is the status HTTP server.
type Server struct {
	echo *echo.Echo
	api  huma.API
	cfg  Config
	log  *slog.Logger
}

// NewServer builds the router and registers every route.
func NewServer(cfg Config, loop Loop, version string, log *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	e.Use(mw.Recovery(log))
	e.Use(mw.RequestLog(log))
	e.Use(mw.Metrics())

	health := handlers.NewHealthHandler(loop)
	e.GET("/healthz", health.Healthz)
	e.GET("/readyz", health.Readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	humaCfg := huma.DefaultConfig("listing-notifier", version)
	humaCfg.Info.Description = "Read-only status of the listing-notifier poll loop."
	api := humaecho.New(e, humaCfg)
	handlers.RegisterStatusRoutes(api, handlers.NewStatusHandler(loop))

	return &Server{echo: e, api: api, cfg: cfg, log: log}
}

// Handler returns the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI { return s.api.OpenAPI() }

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting status server", "addr", s.cfg.Addr())
		if err := s.echo.Start(s.cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down status server: %w", err)
	}
	s.log.Info("status server stopped")
	return nil
}

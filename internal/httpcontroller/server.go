// Package httpcontroller bootstraps the echo HTTP server and mounts the
// JSON API, the metrics endpoint and shared middleware.
package httpcontroller

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/wildwatch/wildwatch-go/internal/api"
	"github.com/wildwatch/wildwatch-go/internal/conf"
	"github.com/wildwatch/wildwatch-go/internal/datastore"
	"github.com/wildwatch/wildwatch-go/internal/imagestore"
	"github.com/wildwatch/wildwatch-go/internal/logging"
	"github.com/wildwatch/wildwatch-go/internal/observability"
)

// Server encapsulates the echo server and its wired collaborators.
type Server struct {
	Echo     *echo.Echo
	DS       datastore.Interface
	Settings *conf.Settings
	API      *api.Controller

	metrics   *observability.Metrics
	logger    *log.Logger
	webLogger *slog.Logger
}

// New wires the HTTP server: middleware, the API controller and the
// metrics endpoint. The server does not listen until Start is called.
func New(settings *conf.Settings, ds datastore.Interface, ingestor api.Ingestor,
	blobStore imagestore.Store, metrics *observability.Metrics) *Server {

	e := echo.New()
	e.HideBanner = true
	e.IPExtractor = echo.ExtractIPFromXFFHeader()

	s := &Server{
		Echo:      e,
		DS:        ds,
		Settings:  settings,
		metrics:   metrics,
		logger:    log.Default(),
		webLogger: logging.ForService("httpcontroller"),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64M"))
	if settings.WebServer.Debug {
		e.Use(middleware.Logger())
	}

	s.API = api.New(e, ds, settings, ingestor, blobStore, s.logger)
	e.Use(s.API.LoggingMiddleware())

	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}

	return s
}

// Start begins listening and serving HTTP requests. It blocks until the
// listener stops.
func (s *Server) Start() error {
	port := s.Settings.WebServer.Port
	s.webLogger.Info("HTTP server starting", "port", port)
	return s.Echo.Start(":" + port)
}

// Shutdown stops the server, waiting for in-flight requests to finish.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Echo.Shutdown(ctx)
}

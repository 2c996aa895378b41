// Package httpserver exposes the sample ingest API: multipart sample
// upload, sample and alert retrieval, and a server-sent-events stream of
// pipeline notifications.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/oceansense/edna-go/internal/conf"
	"github.com/oceansense/edna-go/internal/datastore"
	"github.com/oceansense/edna-go/internal/logging"
	"github.com/oceansense/edna-go/internal/notification"
	"github.com/oceansense/edna-go/internal/observability"
	"github.com/oceansense/edna-go/internal/pipeline"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP ingest server.
type Server struct {
	echo     *echo.Echo
	settings *conf.Settings
	store    datastore.Interface
	pipeline *pipeline.Pipeline
	notifier *notification.Service
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// New creates the ingest server and registers all routes.
func New(settings *conf.Settings, store datastore.Interface, pl *pipeline.Pipeline,
	notifier *notification.Service, metrics *observability.Metrics) *Server {

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		settings: settings,
		store:    store,
		pipeline: pl,
		notifier: notifier,
		metrics:  metrics,
		logger:   logging.ForService("httpserver"),
	}

	e.Use(echomw.Recover())
	if settings.WebServer.Debug {
		e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
			LogStatus: true,
			LogURI:    true,
			LogMethod: true,
			LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
				s.logger.Debug("request",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status)
				return nil
			},
		}))
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.echo.Group("/api/v1")
	api.POST("/samples", s.handleUploadSample)
	api.GET("/samples/:id", s.handleGetSample)
	api.GET("/alerts", s.handleListAlerts)
	api.POST("/alerts/:id/read", s.handleMarkAlertRead)
	api.GET("/events", s.handleEventStream)

	s.echo.GET("/healthz", s.handleHealthz)
	s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
}

// Start runs the server until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	addr := ":" + s.settings.WebServer.Port
	s.logger.Info("HTTP server starting", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

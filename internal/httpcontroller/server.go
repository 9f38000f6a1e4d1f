// Package httpcontroller exposes the analysis workflow over HTTP: a JSON
// API for the dashboard frontend, static file serving for uploaded images
// and chart assets, and a Prometheus metrics endpoint.
package httpcontroller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/baseera/baseera-go/internal/catalog"
	"github.com/baseera/baseera-go/internal/charts"
	"github.com/baseera/baseera-go/internal/classifier"
	"github.com/baseera/baseera-go/internal/conf"
	"github.com/baseera/baseera-go/internal/logging"
	"github.com/baseera/baseera-go/internal/observability"
	"github.com/baseera/baseera-go/internal/wizard"
)

// Server encapsulates the Echo server and its collaborators.
type Server struct {
	Echo       *echo.Echo
	Settings   *conf.Settings
	Wizard     *wizard.Wizard
	Catalog    *catalog.Catalog
	Classifier *classifier.Classifier
	Gallery    *charts.Gallery
	Metrics    *observability.Metrics

	sessions       *sessionManager
	analyzeLimiter *rate.Limiter

	webLogger      *slog.Logger
	webLoggerClose func() error
}

// New builds a configured server. The caller starts it with Start.
func New(settings *conf.Settings, wiz *wizard.Wizard, cat *catalog.Catalog, cls *classifier.Classifier, gallery *charts.Gallery, metrics *observability.Metrics) *Server {
	configureDefaultSettings(settings)

	s := &Server{
		Echo:       echo.New(),
		Settings:   settings,
		Wizard:     wiz,
		Catalog:    cat,
		Classifier: cls,
		Gallery:    gallery,
		Metrics:    metrics,
		sessions:   newSessionManager(settings.WebServer.SessionSecret, wiz),
		// Inference is the slow path; keep one client from queueing the
		// whole interpreter behind itself.
		analyzeLimiter: rate.NewLimiter(
			rate.Limit(settings.WebServer.AnalyzeLimit.RPS),
			settings.WebServer.AnalyzeLimit.Burst),
	}

	s.Echo.HideBanner = true
	s.Echo.IPExtractor = echo.ExtractIPFromXFFHeader()

	s.initLogger()
	s.configureMiddleware()
	s.initRoutes()
	return s
}

// Start serves HTTP until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.Echo.Start(":" + s.Settings.WebServer.Port)
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Echo.Shutdown(shutdownCtx)
	})

	s.webLogger.Info("HTTP server started", "port", s.Settings.WebServer.Port)
	err := g.Wait()
	if s.webLoggerClose != nil {
		_ = s.webLoggerClose()
	}
	return err
}

func (s *Server) initLogger() {
	if s.Settings.WebServer.Log.Enabled && s.Settings.WebServer.Log.Path != "" {
		logger, closer, err := logging.NewFileLogger(s.Settings.WebServer.Log.Path, "web", slog.LevelInfo)
		if err == nil {
			s.webLogger = logger
			s.webLoggerClose = closer
			return
		}
		logging.Warn("Failed to open web log file, falling back to default logger",
			"path", s.Settings.WebServer.Log.Path, "error", err)
	}
	s.webLogger = logging.ForService("web")
}

func (s *Server) configureMiddleware() {
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.Gzip())
	s.Echo.Use(s.requestLoggerMiddleware())
}

func (s *Server) requestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.webLogger.Info("Request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"remote_ip", c.RealIP())
			return nil
		},
	})
}

// rateLimitAnalyze rejects analyze calls past the configured rate.
func (s *Server) rateLimitAnalyze(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.analyzeLimiter.Allow() {
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "too many analysis requests, slow down",
			})
		}
		return next(c)
	}
}

func configureDefaultSettings(settings *conf.Settings) {
	if settings.WebServer.Port == "" {
		settings.WebServer.Port = "8080"
	}
	if settings.WebServer.SessionSecret == "" {
		settings.WebServer.SessionSecret = conf.GenerateRandomSecret()
	}
	if settings.WebServer.AnalyzeLimit.RPS <= 0 {
		settings.WebServer.AnalyzeLimit.RPS = 2
	}
	if settings.WebServer.AnalyzeLimit.Burst <= 0 {
		settings.WebServer.AnalyzeLimit.Burst = 5
	}
}

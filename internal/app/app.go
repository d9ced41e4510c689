package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"iotpulse/internal/archive"
	"iotpulse/internal/config"
	apierrors "iotpulse/internal/errors"
	"iotpulse/internal/infrastructure"
	customMiddleware "iotpulse/internal/middleware"
	"iotpulse/internal/services"
	handlers "iotpulse/internal/transport/http"
	"iotpulse/pkg/contracts"
)

// AppName identifies the service in startup logs.
const AppName = "IoT Pulse Sensor Dashboard"

// janitorInterval is how often expired analysis sessions are evicted.
const janitorInterval = 10 * time.Minute

// Application is the composed server: configuration, infrastructure,
// services, and the HTTP surface.
type Application struct {
	Config          *config.Config
	Router          *chi.Mux
	Server          *http.Server
	Archive         *archive.Store
	AnalysisService *services.AnalysisService
	HealthService   *services.HealthService
	Logger          *slog.Logger
	OTelProviders   *infrastructure.OTelProviders
	BusinessMetrics *infrastructure.BusinessMetrics
}

// NewApplication loads configuration and wires every dependency.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", cfg.Server.Port))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	app := &Application{
		Config:          cfg,
		Logger:          logger,
		OTelProviders:   otelProviders,
		BusinessMetrics: metrics,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices builds the archive store and the service layer.
func (a *Application) initializeServices() error {
	store, err := archive.Open(a.Config.GetArchiveFile(), a.Logger)
	if err != nil {
		return fmt.Errorf("failed to open weekly archive: %w", err)
	}
	store.SetMetrics(a.BusinessMetrics)
	a.Archive = store

	a.AnalysisService = services.NewAnalysisService(a.Config.Pipeline, store, a.Logger)
	a.AnalysisService.SetMetrics(a.BusinessMetrics)
	a.HealthService = services.NewHealthService(contracts.Version, a.AnalysisService, a.Logger)

	return nil
}

// setupRouter configures the HTTP router with all routes.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.SecurityHeaders)
	r.Use(customMiddleware.Compress(5))

	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(a.corsConfig()))
	}
	if a.Config.Security.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	errorHandler := apierrors.NewErrorHandler(a.Logger)

	r.Route("/api", func(r chi.Router) {
		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Mount("/health", healthHandler.Routes())

		r.Route("/v1", func(r chi.Router) {
			analysisHandler := handlers.NewAnalysisHandler(a.AnalysisService, a.Logger, errorHandler)
			r.Mount("/analysis", analysisHandler.Routes())

			archiveHandler := handlers.NewArchiveHandler(a.Archive, a.Logger, errorHandler)
			r.Mount("/archive", archiveHandler.Routes())
		})
	})

	// Prometheus scrape endpoint stays outside the middleware chain.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	// The dashboard frontend is plain static files served from the web dir.
	fileServer := http.FileServer(http.Dir(a.Config.Paths.WebDir))
	r.Handle("/*", fileServer)

	a.Router = r
}

func (a *Application) corsConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}
}

// createServer creates the HTTP server.
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Run serves HTTP and the session janitor until ctx is canceled, then shuts
// everything down gracefully.
func (a *Application) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(ctx, "Server listening",
			slog.String("address", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.AnalysisService.RunJanitor(ctx, janitorInterval)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return a.Stop(context.Background())
	})

	return g.Wait()
}

// Stop gracefully stops the server and releases infrastructure.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.Archive != nil {
		if err := a.Archive.Close(); err != nil {
			a.Logger.ErrorContext(ctx, "Failed to close archive",
				slog.String("error", err.Error()))
		}
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Failed to shut down OpenTelemetry",
				slog.String("error", err.Error()))
		}
	}

	if err := infrastructure.CloseLogFile(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}

	a.Logger.Info("Application stopped")
	return nil
}

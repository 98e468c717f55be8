package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"pbrpulse/internal/batch"
	"pbrpulse/internal/config"
	"pbrpulse/internal/errors"
	"pbrpulse/internal/infrastructure"
	"pbrpulse/internal/manual"
	customMiddleware "pbrpulse/internal/middleware"
	"pbrpulse/internal/plot"
	"pbrpulse/internal/services"
	"pbrpulse/internal/storage"
	handlers "pbrpulse/internal/transport/http"
	ws "pbrpulse/internal/websocket"
)

// AppName is the human-readable service name used in startup logs.
const AppName = "PBR Pulse - Pilot Photobioreactor Dashboard"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Catalog       *config.Catalog
	Router        *chi.Mux
	Server        *http.Server
	Buckets       storage.Buckets
	WebSocketHub  *ws.Hub
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	Services      *ServiceContainer

	gcsCloser func() error
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Batch     *services.BatchService
	Dashboard *services.DashboardService
	Manual    *services.ManualService
	Health    *services.HealthService
}

// NewApplication creates a new application instance with dependency injection
func NewApplication(ctx context.Context) (*Application, error) {
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
		slog.String("version", infrastructure.ServiceVersion))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	catalog, err := config.LoadCatalog(cfg.Process.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load variable catalog: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Catalog:       catalog,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
	}

	if err := app.initializeStorage(ctx); err != nil {
		return nil, err
	}

	if err := app.initializeServices(); err != nil {
		return nil, err
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeStorage connects the three object-storage buckets.
func (a *Application) initializeStorage(ctx context.Context) error {
	switch a.Config.Storage.Provider {
	case "gcs":
		client, err := storage.NewGCSClient(ctx, a.Config.Storage.ProjectID, a.Config.Storage.CredentialsFile)
		if err != nil {
			return fmt.Errorf("failed to create storage client: %w", err)
		}
		a.gcsCloser = client.Close
		a.Buckets = storage.Buckets{
			Raw: storage.NewMeteredBucket(
				storage.NewGCSBucket(client, a.Config.Storage.RawBucket, a.Logger),
				a.Metrics, a.Config.Storage.RawBucket),
			Merged: storage.NewMeteredBucket(
				storage.NewGCSBucket(client, a.Config.Storage.MergedBucket, a.Logger),
				a.Metrics, a.Config.Storage.MergedBucket),
			Manual: storage.NewMeteredBucket(
				storage.NewGCSBucket(client, a.Config.Storage.ManualBucket, a.Logger),
				a.Metrics, a.Config.Storage.ManualBucket),
		}
	case "memory":
		a.Logger.Warn("Using in-memory storage, data will not persist")
		a.Buckets = storage.Buckets{
			Raw:    storage.NewMemoryBucket(),
			Merged: storage.NewMemoryBucket(),
			Manual: storage.NewMemoryBucket(),
		}
	default:
		return fmt.Errorf("unknown storage provider: %s", a.Config.Storage.Provider)
	}
	return nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	inoculation, err := a.Config.InoculationDate()
	if err != nil {
		return fmt.Errorf("failed to parse inoculation start: %w", err)
	}

	hub := ws.NewHub(a.Logger)
	hub.Start()
	a.WebSocketHub = hub

	merger := batch.NewMerger(a.Buckets.Raw, a.Buckets.Merged, a.Catalog, a.Logger)
	batchService := services.NewBatchService(merger, a.Buckets.Merged, hub, a.Metrics, a.Logger)

	manualStore := manual.NewStore(a.Buckets.Manual, inoculation, a.Logger)
	manualService := services.NewManualService(manualStore, a.Catalog, a.Metrics, a.Logger)

	analyticsCache := services.NewAnalyticsCache(a.Buckets.Raw, a.Config.Process.AnalyticsObject, inoculation)
	assembler := plot.NewAssembler(a.Buckets.Merged, a.Catalog, analyticsCache, manualStore, a.Logger)
	dashboardService := services.NewDashboardService(assembler, analyticsCache, a.Catalog, a.Metrics, a.Logger)

	healthService := services.NewHealthService(a.Buckets, a.Logger)

	a.Services = &ServiceContainer{
		Batch:     batchService,
		Dashboard: dashboardService,
		Manual:    manualService,
		Health:    healthService,
	}

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Minimal middleware that does not wrap the ResponseWriter, so the
	// WebSocket upgrade keeps working.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.HandleFunc("/ws", a.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.StripSlashes)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Metrics(a.Metrics))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.Compress(5))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(a.getCORSConfig()))

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	// Outside the middleware group for performance.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	errorHandler := errors.NewErrorHandler(a.Logger, false)

	healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
	batchHandler := handlers.NewBatchHandler(a.Services.Batch, a.Logger, errorHandler)
	dashboardHandler := handlers.NewDashboardHandler(
		a.Services.Dashboard, a.Services.Batch, a.Services.Manual, a.Logger, errorHandler)
	manualHandler := handlers.NewManualHandler(a.Services.Manual, a.Logger, errorHandler)

	r.Route("/api", func(r chi.Router) {
		r.NotFound(errorHandler.NotFound)
		r.MethodNotAllowed(errorHandler.MethodNotAllowed)

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

			r.Mount("/health", healthHandler.Routes())
			r.Get("/version", healthHandler.Version)
			r.Mount("/manual", manualHandler.Routes())
			r.Mount("/", dashboardHandler.Routes())
		})

		// Merge runs download and rewrite many objects in one request.
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.MergeTimeout, a.Logger))
			r.Mount("/batches", batchHandler.Routes())
		})
	})
}

// getCORSConfig returns the CORS configuration.
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	cfg := customMiddleware.CORSConfig{
		AllowedOrigins: []string{
			fmt.Sprintf("http://localhost:%d", a.Config.Server.Port),
			fmt.Sprintf("http://127.0.0.1:%d", a.Config.Server.Port),
		},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}

	if a.Config.Security.EnableCORS && len(a.Config.Security.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = append(cfg.AllowedOrigins, a.Config.Security.AllowedOrigins...)
	}

	return cfg
}

// createServer creates the HTTP server
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

// handleWebSocket upgrades dashboard clients and attaches them to the hub.
func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	reqID := customMiddleware.GetRequestID(r.Context())
	if reqID == "" {
		reqID = fmt.Sprintf("ws-%d", time.Now().UnixNano())
	}
	ctx := infrastructure.WithTraceID(r.Context(), reqID)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range a.getCORSConfig().AllowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.ErrorContext(ctx, "WebSocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr))
		return
	}

	a.Logger.InfoContext(ctx, "WebSocket client connected",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("request_id", reqID))

	ws.ServeWS(a.WebSocketHub, conn, reqID)
}

// Start starts the HTTP server.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.Int("port", a.Config.Server.Port),
		slog.String("storage_provider", a.Config.Storage.Provider),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.WebSocketHub.Stop()

	if a.gcsCloser != nil {
		if err := a.gcsCloser(); err != nil {
			a.Logger.ErrorContext(ctx, "Error closing storage client", slog.String("error", err.Error()))
		}
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	if err := infrastructure.CloseLogFile(); err != nil {
		a.Logger.ErrorContext(ctx, "Error closing log file", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}

package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"student-management-api/internal/config"
	"student-management-api/internal/db"
	"student-management-api/internal/events"
	"student-management-api/internal/health"
	"student-management-api/internal/httputil"
	"student-management-api/internal/logger"
	"student-management-api/internal/metrics"
	"student-management-api/internal/middleware"
	"student-management-api/internal/student"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
)

type App struct {
	config    *config.Config
	router    chi.Router
	server    *http.Server
	logger    *slog.Logger
	database  *db.Mongo
	publisher events.Publisher
}

func New() *App {
	slogLogger := logger.NewWithServiceContext(ServiceName, Version)

	// Set as default logger so slog.Info() uses JSON format
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slogLogger.Info("config loaded", "env", cfg.Env)

	app := &App{
		config: cfg,
		router: chi.NewRouter(),
		logger: slogLogger,
	}

	app.database = db.New(cfg.Mongo, slogLogger)

	// The server accepts traffic immediately; the gateway connects in the
	// background and /health reports "starting" until it is done. If every
	// attempt fails the process is not worth keeping alive.
	go func() {
		if err := app.database.Connect(context.Background()); err != nil {
			slogLogger.Error("could not connect to MongoDB, giving up", "error", err)
			os.Exit(1)
		}
	}()

	meter := otel.Meter(ServiceName)
	m, err := metrics.New(meter)
	if err != nil {
		slogLogger.Warn("failed to initialize metrics", "error", err)
		m = metrics.NewMock()
	}

	app.publisher, err = events.NewPublisher(cfg.Events, slogLogger)
	if err != nil {
		slogLogger.Warn("failed to initialize event publisher", "error", err)
		app.publisher = nil
	} else if app.publisher != nil {
		slogLogger.Info("event publisher initialized", "backend", cfg.Events.Backend)
	}

	app.router.Use(middleware.Recover(slogLogger, cfg.Env))
	app.router.Use(middleware.RequestLogger(slogLogger))
	app.router.Use(middleware.CORS(cfg.Server.CORSOrigins, cfg.Env))

	healthHandler := health.NewHandler(ServiceName, app.database)
	healthHandler.RegisterRoutes(app.router)

	studentRepo := student.NewRepository(app.database, slogLogger)
	studentService := student.NewService(studentRepo, app.publisher, slogLogger)
	studentHandler := student.NewHandler(studentService, slogLogger, m)

	app.router.Route("/api", func(r chi.Router) {
		studentHandler.RegisterRoutes(r)
	})

	app.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondWithError(w, http.StatusNotFound, "Resource not found")
	})

	slogLogger.Info("application initialized successfully")

	return app
}

func (a *App) Run() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(a.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(a.config.Server.IdleTimeout) * time.Second,
	}

	a.logger.Info("server starting", "port", a.config.Server.Port, "env", a.config.Env)
	return a.server.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")

	err := a.server.Shutdown(ctx)

	if a.publisher != nil {
		if cerr := a.publisher.Close(); cerr != nil {
			a.logger.Error("failed to close event publisher", "error", cerr)
		}
	}

	if cerr := a.database.Close(ctx); cerr != nil {
		a.logger.Error("failed to close MongoDB connection", "error", cerr)
		if err == nil {
			err = cerr
		}
	}

	return err
}

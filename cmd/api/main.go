// Package main is the entry point for the vehicle request API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pkordes/vehicle-requests/backend/internal/auth"
	"github.com/pkordes/vehicle-requests/backend/internal/catalog"
	"github.com/pkordes/vehicle-requests/backend/internal/config"
	"github.com/pkordes/vehicle-requests/backend/internal/domain"
	"github.com/pkordes/vehicle-requests/backend/internal/handler"
	"github.com/pkordes/vehicle-requests/backend/internal/i18n"
	"github.com/pkordes/vehicle-requests/backend/internal/livesync"
	"github.com/pkordes/vehicle-requests/backend/internal/metrics"
	"github.com/pkordes/vehicle-requests/backend/internal/middleware"
	"github.com/pkordes/vehicle-requests/backend/internal/notify"
	"github.com/pkordes/vehicle-requests/backend/internal/repo"
	"github.com/pkordes/vehicle-requests/backend/internal/repo/mongostore"
	"github.com/pkordes/vehicle-requests/backend/internal/service"
	"github.com/pkordes/vehicle-requests/backend/migrations"
	"github.com/pkordes/vehicle-requests/backend/spec"
)

// store is the storage backend selected by STORE_DRIVER.
type store struct {
	requests    repo.RequestRepo
	trips       repo.TripRepo
	batch       repo.ApprovalBatch
	requestFeed livesync.Source[domain.Request]
	tripFeed    livesync.Source[domain.Trip]
	close       func()
}

func main() {
	// --- Config -----------------------------------------------------------
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Error("dotenv error", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	// JSON to stdout; when LOG_FILE is set the same lines also go to a
	// size-rotated file.
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   true,
		}
		defer rotator.Close()
		out = io.MultiWriter(os.Stdout, rotator)
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Datastore --------------------------------------------------------
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to open datastore", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer st.close()

	// --- Shared infrastructure --------------------------------------------
	m := metrics.New()
	messages, err := i18n.New("en")
	if err != nil {
		slog.Error("failed to load locales", "error", err)
		os.Exit(1)
	}
	catalogCache := catalog.NewCache(catalog.FileLoader{Path: cfg.CatalogFile})
	if _, err := catalogCache.Get(ctx); err != nil {
		// Not fatal: submissions skip the catalog check until it loads.
		slog.Warn("catalog not loaded", "file", cfg.CatalogFile, "error", err)
	}
	hub := notify.NewHub(notify.Options{
		Logger:         logger,
		Recorder:       m,
		AllowedOrigins: cfg.CORSOrigins,
	})
	notifier := notify.NewNotifier(hub, messages)

	// --- Live sync ---------------------------------------------------------
	// Each synchronizer mirrors one collection in memory. Reads are served
	// from it once live; until then the services fall back to the store.
	requestSync := livesync.NewRequests(logger)
	tripSync := livesync.NewTrips(logger)
	requestSync.Observe(notifier.RequestChanged)
	requestSync.Observe(func(c livesync.Change[domain.Request]) {
		m.ObserveDelta(notify.RequestsCollection, string(c.Kind))
	})
	tripSync.Observe(notifier.TripChanged)
	tripSync.Observe(func(c livesync.Change[domain.Trip]) {
		m.ObserveDelta(notify.TripsCollection, string(c.Kind))
	})
	go runSync(ctx, notify.RequestsCollection, func(ctx context.Context) error {
		return requestSync.Run(ctx, st.requestFeed)
	})
	go runSync(ctx, notify.TripsCollection, func(ctx context.Context) error {
		return tripSync.Run(ctx, st.tripFeed)
	})

	// --- Services -----------------------------------------------------------
	clock := service.SystemClock{}
	requestSvc := service.NewRequestService(st.requests, requestSync, catalogCache, notifier, clock, cfg.Location, logger)
	tripSvc := service.NewTripService(st.trips, tripSync, clock, cfg.Location, logger)
	approvalSvc := service.NewApprovalService(st.requests, st.trips, st.batch, tripSvc, notifier, m, clock, logger)
	exportSvc := service.NewExportService(st.requests, requestSync, cfg.Location)

	srv := handler.NewServer(handler.Deps{
		Requests:      requestSvc,
		Trips:         tripSvc,
		Approvals:     approvalSvc,
		Export:        exportSvc,
		Catalog:       catalogCache,
		Notifications: hub,
		Messages:      messages,
		Logger:        logger,
		OpenAPI:       spec.OpenAPI,
	})

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer
	// → CORS → body limit → locale → metrics.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))
	r.Use(middleware.NewLocaleHandler(messages))
	r.Use(m.Middleware)

	srv.Public(r)
	if cfg.MetricsEnabled {
		r.Handle("/metrics", m.Handler())
	}
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthenticator(auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer), messages))
		r.Get("/ws", hub.ServeWS)
		srv.Routes(r)
	})

	// --- HTTP Server ------------------------------------------------------
	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	// Websocket connections manage their own deadlines once upgraded.
	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", httpSrv.Addr, "store", cfg.StoreDriver)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	// Close websocket clients first; Shutdown does not wait for hijacked
	// connections.
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openStore connects the backend named by cfg.StoreDriver.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*store, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		db, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureIndexes(ctx); err != nil {
			_ = db.Close(context.Background())
			return nil, err
		}
		return &store{
			requests:    mongostore.NewRequestStore(db),
			trips:       mongostore.NewTripStore(db),
			batch:       mongostore.NewApprovalBatch(db),
			requestFeed: mongostore.NewRequestFeed(db, logger),
			tripFeed:    mongostore.NewTripFeed(db, logger),
			close: func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = db.Close(closeCtx)
			},
		}, nil

	default:
		// pgxpool manages a pool of Postgres connections.
		// New() does not open connections immediately; the first query does.
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("create pool: %w", err)
		}
		// Verify the DB is reachable before accepting traffic.
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping: %w", err)
		}
		slog.Info("database connection established")

		if err := migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &store{
			requests:    repo.NewRequestRepo(pool),
			trips:       repo.NewTripRepo(pool),
			batch:       repo.NewApprovalBatch(pool),
			requestFeed: repo.NewRequestFeed(pool, logger),
			tripFeed:    repo.NewTripFeed(pool, logger),
			close:       pool.Close,
		}, nil
	}
}

// migrate applies pending goose migrations through a database/sql handle
// borrowed from the pool.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return fmt.Errorf("create goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	for _, res := range results {
		slog.Info("migration applied", "version", res.Source.Version, "duration", res.Duration)
	}
	return nil
}

// runSync runs a synchronizer until ctx ends. The feeds reconnect on their
// own, so Run only returns early when the first subscription fails; reads
// then keep falling back to the store.
func runSync(ctx context.Context, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("live sync stopped", "collection", name, "error", err)
	}
}

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	eventadapter "github.com/viralforge/license-service/internal/adapters/events"
	httpadapter "github.com/viralforge/license-service/internal/adapters/http"
	"github.com/viralforge/license-service/internal/adapters/redisstore"
	"github.com/viralforge/license-service/internal/application"
)

// Demo licenses created when seed_demo_data is enabled. Fixed keys so a
// client application can be pointed at a fresh instance without an admin
// round-trip. Seeding pre-checks and skips existing records.
var demoLicenses = []struct {
	key            string
	maxActivations int
}{
	{key: "DEMO-SINGLE-SEAT-0001", maxActivations: 1},
	{key: "DEMO-TEAM-SEATS-0005", maxActivations: 5},
}

type Runtime struct {
	cfg         Config
	logger      *slog.Logger
	httpServer  *http.Server
	auditWriter *eventadapter.AuditWriter
	cleanupFn   func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping license service", "service_id", cfg.ServiceID, "http_port", cfg.HTTPPort)

	redisClient, err := redisstore.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	store := redisstore.NewStore(redisClient, cfg.StoreOpTimeout, cfg.ActivationRetries)
	auditSink := redisstore.NewAuditSink(redisClient, cfg.AuditRetention, cfg.StoreOpTimeout)
	auditWriter := eventadapter.NewAuditWriter(logger, auditSink, cfg.AuditBufferSize, cfg.AuditMaxRetries, cfg.AuditRetryDelay)

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			DefaultValidity: cfg.DefaultValidity,
		},
		Registry:    store,
		Bindings:    store,
		Activations: store,
		Audit:       auditWriter,
	})

	if cfg.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN not set, admin endpoints will reject all requests")
	}

	if cfg.SeedDemoData {
		if err := seedDemoData(ctx, svc, cfg.DefaultValidity, logger); err != nil {
			_ = redisClient.Close()
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
	}

	handler := httpadapter.NewHandler(svc, cfg.AdminToken, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Runtime{
		cfg:         cfg,
		logger:      logger,
		httpServer:  httpServer,
		auditWriter: auditWriter,
		cleanupFn: func(ctx context.Context) {
			_ = redisClient.Close()
		},
	}, nil
}

// RunAPI serves HTTP and the audit writer until a shutdown signal arrives,
// then shuts down gracefully within a bounded window.
func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	auditCtx, cancelAudit := context.WithCancel(context.Background())
	go func() {
		if err := r.auditWriter.Run(auditCtx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("audit writer stopped", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)

	cancelAudit()
	select {
	case <-r.auditWriter.Done():
	case <-shutdownCtx.Done():
	}

	r.cleanupFn(shutdownCtx)
	return nil
}

func seedDemoData(ctx context.Context, svc *application.Service, validity time.Duration, logger *slog.Logger) error {
	for _, demo := range demoLicenses {
		if err := svc.EnsureLicense(ctx, demo.key, demo.maxActivations, validity); err != nil {
			return fmt.Errorf("ensure %s: %w", demo.key, err)
		}
		logger.Info("demo license ensured", "license_key", demo.key, "max_activations", demo.maxActivations)
	}
	return nil
}

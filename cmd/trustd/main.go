package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridian-firm/trust-ledger-go/internal/config"
	"github.com/meridian-firm/trust-ledger-go/internal/domain"
	"github.com/meridian-firm/trust-ledger-go/internal/handler"
	"github.com/meridian-firm/trust-ledger-go/internal/infra/cache"
	"github.com/meridian-firm/trust-ledger-go/internal/infra/memstore"
	"github.com/meridian-firm/trust-ledger-go/internal/infra/observability"
	"github.com/meridian-firm/trust-ledger-go/internal/infra/sqlitestore"
	"github.com/meridian-firm/trust-ledger-go/internal/port"
	"github.com/meridian-firm/trust-ledger-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("db_path", cfg.DBPath),
		zap.Int("audit_retention", cfg.AuditRetention),
		zap.Duration("report_cache_ttl", cfg.ReportCacheTTL),
		zap.Int("report_concurrency", cfg.ReportConcurrency),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "trust-ledger")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Store ---
	var store port.LedgerStore
	if cfg.DBPath == "" {
		logger.Warn("no db path configured, using in-memory store")
		store = memstore.New(cfg.AuditRetention)
	} else {
		sqlStore, err := sqlitestore.Open(cfg.DBPath, cfg.AuditRetention)
		if err != nil {
			logger.Fatal("failed to open store", zap.Error(err))
		}
		defer sqlStore.Close()
		logger.Info("sqlite store opened", zap.String("path", cfg.DBPath))
		store = sqlStore
	}

	// --- Services ---
	locks := service.NewAccountLocks()
	reportCache := cache.New[*domain.ComplianceReport](cfg.ReportCacheTTL)

	accounts := service.NewAccountRegistry(store, locks, metrics, logger)
	ledger := service.NewTransactionLedger(store, locks, metrics, logger)
	transfers := service.NewTransferCoordinator(store, ledger, locks, metrics, logger)
	alerts := service.NewAlertEngine(store, metrics, logger)
	audit := service.NewAuditLog(store, metrics, logger)
	recon := service.NewReconciliationEngine(store, alerts, metrics, logger)
	reports := service.NewComplianceReporter(store, reportCache, cfg.ReportConcurrency, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Accounts:  accounts,
		Ledger:    ledger,
		Transfers: transfers,
		Alerts:    alerts,
		Audit:     audit,
		Recon:     recon,
		Reports:   reports,
	}, metrics, cfg.JWTSecret, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

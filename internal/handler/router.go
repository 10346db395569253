package handler

import (
	"net/http"
	"time"

	"github.com/meridian-firm/trust-ledger-go/internal/domain"
	"github.com/meridian-firm/trust-ledger-go/internal/infra/observability"
	"github.com/meridian-firm/trust-ledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles everything the router exposes.
type Services struct {
	Accounts  *service.AccountRegistry
	Ledger    *service.TransactionLedger
	Transfers *service.TransferCoordinator
	Alerts    *service.AlertEngine
	Audit     *service.AuditLog
	Recon     *service.ReconciliationEngine
	Reports   *service.ComplianceReporter
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, metrics *observability.Metrics, jwtSecret string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Accounts))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(ActorMiddleware(jwtSecret, logger))

		// =============================================
		// Accounts
		// =============================================
		r.Post("/accounts", createAccountHandler(svc.Accounts, logger))
		r.Get("/accounts", listAccountsHandler(svc.Accounts, logger))
		r.Get("/accounts/{accountId}", getAccountHandler(svc.Accounts, logger))
		r.Patch("/accounts/{accountId}", updateAccountHandler(svc.Accounts, logger))
		r.Post("/accounts/{accountId}/close", closeAccountHandler(svc.Accounts, logger))
		r.Post("/accounts/{accountId}/freeze", freezeAccountHandler(svc.Accounts, logger))
		r.Post("/accounts/{accountId}/unfreeze", unfreezeAccountHandler(svc.Accounts, logger))
		r.Get("/accounts/{accountId}/balance", getBalanceHandler(svc.Accounts, svc.Ledger, logger))

		// =============================================
		// Transactions & transfers
		// =============================================
		r.Post("/accounts/{accountId}/transactions", postTransactionHandler(svc.Ledger, logger))
		r.Get("/accounts/{accountId}/transactions", listAccountTransactionsHandler(svc.Ledger, logger))
		r.Get("/transactions", listTransactionsHandler(svc.Ledger, logger))
		r.Get("/transactions/{transactionId}", getTransactionHandler(svc.Ledger, logger))
		r.Post("/transfers", transferHandler(svc.Transfers, logger))

		// =============================================
		// Alerts
		// =============================================
		r.Get("/alerts", listAlertsHandler(svc.Alerts, logger))
		r.Post("/accounts/{accountId}/alerts", raiseAlertHandler(svc.Alerts, logger))
		r.Get("/accounts/{accountId}/alerts/history", alertHistoryHandler(svc.Alerts, logger))
		r.Post("/alerts/{alertId}/resolve", resolveAlertHandler(svc.Alerts, logger))

		// =============================================
		// Audit trail
		// =============================================
		r.Get("/audit", queryAuditHandler(svc.Audit, logger))
		r.Get("/audit/verify", verifyAuditHandler(svc.Audit, logger))

		// =============================================
		// Reconciliation
		// =============================================
		r.Post("/accounts/{accountId}/reconciliations", reconcileHandler(svc.Recon, logger))
		r.Get("/accounts/{accountId}/reconciliations", listReconciliationsHandler(svc.Recon, logger))
		r.Get("/reconciliations/{reconciliationId}", getReconciliationHandler(svc.Recon, logger))

		// =============================================
		// Compliance reports & ledger metrics
		// =============================================
		r.Post("/reports/compliance", complianceReportHandler(svc.Reports, logger))
		r.Get("/metrics/ledger", ledgerMetricsHandler(metrics))
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(accounts *service.AccountRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		_, err := accounts.List(r.Context(), domain.AccountFilter{Search: "health-check"})
		status := "healthy"
		if err != nil {
			status = "degraded"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"checked_at": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func ledgerMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetLedgerSnapshot())
	}
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/meridian-firm/trust-ledger-go/internal/domain"
	"github.com/meridian-firm/trust-ledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Reconciliation
// ============================================================

func reconcileHandler(recon *service.ReconciliationEngine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountId}/reconciliations")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")
		span.SetAttributes(attribute.String("account.id", accountID))

		var stmt domain.StatementInput
		if err := json.NewDecoder(r.Body).Decode(&stmt); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		rec, err := recon.Reconcile(ctx, ActorFromContext(ctx), accountID, &stmt)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

func listReconciliationsHandler(recon *service.ReconciliationEngine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountId}/reconciliations")
		defer span.End()

		records, err := recon.ListForAccount(ctx, chi.URLParam(r, "accountId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if records == nil {
			records = []domain.ReconciliationRecord{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"reconciliations": records})
	}
}

func getReconciliationHandler(recon *service.ReconciliationEngine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reconciliations/{reconciliationId}")
		defer span.End()

		rec, err := recon.Get(ctx, chi.URLParam(r, "reconciliationId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

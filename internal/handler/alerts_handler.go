package handler

import (
	"encoding/json"
	"net/http"

	"github.com/meridian-firm/trust-ledger-go/internal/domain"
	"github.com/meridian-firm/trust-ledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Alerts
// ============================================================

func listAlertsHandler(alerts *service.AlertEngine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/alerts")
		defer span.End()

		result, err := alerts.List(ctx, r.URL.Query().Get("account_id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if result == nil {
			result = []domain.AccountAlert{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"alerts": result})
	}
}

func raiseAlertHandler(alerts *service.AlertEngine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountId}/alerts")
		defer span.End()

		var input domain.RaiseAlertInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		alert, err := alerts.Raise(ctx, chi.URLParam(r, "accountId"), &input)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, alert)
	}
}

func alertHistoryHandler(alerts *service.AlertEngine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountId}/alerts/history")
		defer span.End()

		result, err := alerts.History(ctx, chi.URLParam(r, "accountId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if result == nil {
			result = []domain.AccountAlert{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"alerts": result})
	}
}

func resolveAlertHandler(alerts *service.AlertEngine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/alerts/{alertId}/resolve")
		defer span.End()

		var body struct {
			Notes string `json:"notes"`
		}
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&body)
		}

		alert, err := alerts.Resolve(ctx, ActorFromContext(ctx), chi.URLParam(r, "alertId"), body.Notes)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, alert)
	}
}

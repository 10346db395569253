package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/meridian-firm/trust-ledger-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Compliance reports
// ============================================================

func complianceReportHandler(reports *service.ComplianceReporter, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/reports/compliance")
		defer span.End()

		var req struct {
			PeriodStart time.Time `json:"period_start"`
			PeriodEnd   time.Time `json:"period_end"`
			AccountID   string    `json:"account_id,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		report, err := reports.GenerateReport(ctx, ActorFromContext(ctx), req.PeriodStart, req.PeriodEnd, req.AccountID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

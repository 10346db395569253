package handler

import (
	"net/http"

	"github.com/meridian-firm/trust-ledger-go/internal/domain"
	"github.com/meridian-firm/trust-ledger-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Audit trail
// ============================================================

func queryAuditHandler(audit *service.AuditLog, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/audit")
		defer span.End()

		entries, err := audit.Query(ctx, r.URL.Query().Get("account_id"), parseLimit(r, 0))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if entries == nil {
			entries = []domain.AuditLogEntry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	}
}

func verifyAuditHandler(audit *service.AuditLog, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/audit/verify")
		defer span.End()

		result, err := audit.Verify(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

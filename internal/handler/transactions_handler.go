package handler

import (
	"encoding/json"
	"net/http"

	"github.com/meridian-firm/trust-ledger-go/internal/domain"
	"github.com/meridian-firm/trust-ledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Transactions & transfers
// ============================================================

func postTransactionHandler(ledger *service.TransactionLedger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountId}/transactions")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")
		span.SetAttributes(attribute.String("account.id", accountID))

		var input domain.PostTransactionInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		txn, err := ledger.Post(ctx, ActorFromContext(ctx), accountID, &input)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, txn)
	}
}

func listAccountTransactionsHandler(ledger *service.TransactionLedger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountId}/transactions")
		defer span.End()

		filter, ok := transactionFilterFromQuery(w, r)
		if !ok {
			return
		}
		filter.AccountIDs = []string{chi.URLParam(r, "accountId")}

		txns, err := ledger.List(ctx, filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if txns == nil {
			txns = []domain.TrustTransaction{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
	}
}

func listTransactionsHandler(ledger *service.TransactionLedger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions")
		defer span.End()

		filter, ok := transactionFilterFromQuery(w, r)
		if !ok {
			return
		}
		filter.AccountIDs = splitParam(r, "account_id")

		txns, err := ledger.List(ctx, filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if txns == nil {
			txns = []domain.TrustTransaction{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
	}
}

func getTransactionHandler(ledger *service.TransactionLedger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions/{transactionId}")
		defer span.End()

		txn, err := ledger.Get(ctx, chi.URLParam(r, "transactionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, txn)
	}
}

func transferHandler(transfers *service.TransferCoordinator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transfers")
		defer span.End()

		var req struct {
			FromAccountID       string          `json:"from_account_id"`
			ToAccountID         string          `json:"to_account_id"`
			Amount              decimal.Decimal `json:"amount"`
			Description         string          `json:"description,omitempty"`
			AuthorizationReason string          `json:"authorization_reason,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(
			attribute.String("transfer.from", req.FromAccountID),
			attribute.String("transfer.to", req.ToAccountID),
		)

		result, err := transfers.Transfer(ctx, ActorFromContext(ctx),
			req.FromAccountID, req.ToAccountID, req.Amount, req.Description, req.AuthorizationReason)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

func transactionFilterFromQuery(w http.ResponseWriter, r *http.Request) (domain.TransactionFilter, bool) {
	filter := domain.TransactionFilter{
		Types:  splitParam(r, "type"),
		Search: r.URL.Query().Get("search"),
		Limit:  parseLimit(r, 0),
	}

	from, ok := parseTimeParam(r, "from")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid from timestamp")
		return filter, false
	}
	filter.From = from

	to, ok := parseTimeParam(r, "to")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid to timestamp")
		return filter, false
	}
	filter.To = to

	if v := r.URL.Query().Get("min_amount"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_amount")
			return filter, false
		}
		filter.MinAmount = &d
	}
	if v := r.URL.Query().Get("max_amount"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid max_amount")
			return filter, false
		}
		filter.MaxAmount = &d
	}
	return filter, true
}

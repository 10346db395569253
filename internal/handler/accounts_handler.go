package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/meridian-firm/trust-ledger-go/internal/domain"
	"github.com/meridian-firm/trust-ledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Accounts
// ============================================================

func createAccountHandler(accounts *service.AccountRegistry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts")
		defer span.End()

		var input domain.CreateAccountInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		account, err := accounts.Create(ctx, ActorFromContext(ctx), &input)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("account.id", account.ID))

		writeJSON(w, http.StatusCreated, account)
	}
}

func listAccountsHandler(accounts *service.AccountRegistry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts")
		defer span.End()

		filter := domain.AccountFilter{
			ClientIDs: splitParam(r, "client_id"),
			MatterIDs: splitParam(r, "matter_id"),
			Statuses:  splitParam(r, "status"),
			Search:    r.URL.Query().Get("search"),
		}
		if v := r.URL.Query().Get("min_balance"); v != "" {
			d, err := decimal.NewFromString(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid min_balance")
				return
			}
			filter.MinBalance = &d
		}
		if v := r.URL.Query().Get("max_balance"); v != "" {
			d, err := decimal.NewFromString(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid max_balance")
				return
			}
			filter.MaxBalance = &d
		}

		result, err := accounts.List(ctx, filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if result == nil {
			result = []domain.TrustAccount{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"accounts": result})
	}
}

func getAccountHandler(accounts *service.AccountRegistry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountId}")
		defer span.End()

		account, err := accounts.Get(ctx, chi.URLParam(r, "accountId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

func updateAccountHandler(accounts *service.AccountRegistry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/accounts/{accountId}")
		defer span.End()

		var patch domain.UpdateAccountInput
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		account, err := accounts.Update(ctx, ActorFromContext(ctx), chi.URLParam(r, "accountId"), &patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

func closeAccountHandler(accounts *service.AccountRegistry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountId}/close")
		defer span.End()

		var body struct {
			Reason string `json:"reason"`
		}
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&body)
		}

		account, err := accounts.Close(ctx, ActorFromContext(ctx), chi.URLParam(r, "accountId"), body.Reason)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

func freezeAccountHandler(accounts *service.AccountRegistry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountId}/freeze")
		defer span.End()

		var body struct {
			Reason string `json:"reason"`
		}
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&body)
		}

		account, err := accounts.Freeze(ctx, ActorFromContext(ctx), chi.URLParam(r, "accountId"), body.Reason)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

func unfreezeAccountHandler(accounts *service.AccountRegistry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountId}/unfreeze")
		defer span.End()

		var body struct {
			Reason string `json:"reason"`
		}
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&body)
		}

		account, err := accounts.Unfreeze(ctx, ActorFromContext(ctx), chi.URLParam(r, "accountId"), body.Reason)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

// getBalanceHandler returns current balances, or the balance as of a
// point in time when ?as_of= is supplied.
func getBalanceHandler(accounts *service.AccountRegistry, ledger *service.TransactionLedger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountId}/balance")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")

		if v := r.URL.Query().Get("as_of"); v != "" {
			asOf, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid as_of timestamp")
				return
			}
			balance, err := ledger.BalanceAsOf(ctx, accountID, asOf)
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"account_id": accountID,
				"balance":    balance,
				"as_of":      asOf.UTC().Format(time.RFC3339),
			})
			return
		}

		account, err := accounts.Get(ctx, accountID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"account_id":        account.ID,
			"current_balance":   account.CurrentBalance,
			"available_balance": account.AvailableBalance,
			"reserved_balance":  account.ReservedBalance,
			"minimum_balance":   account.MinimumBalance,
			"currency":          account.Currency,
		})
	}
}

func splitParam(r *http.Request, name string) []string {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

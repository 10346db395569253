package service

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-firm/trust-ledger-go/internal/domain"
	"github.com/meridian-firm/trust-ledger-go/internal/infra/observability"
	"github.com/meridian-firm/trust-ledger-go/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var ledgerTracer = otel.Tracer("service/ledger")

// TransactionLedger is the source of truth for account balances. Every
// posting runs as one serializable unit per account: validate, compute
// the running balance, append the immutable transaction, update the
// account, evaluate alerts and write the audit entry, committed
// together by the store or not at all.
type TransactionLedger struct {
	store   port.LedgerStore
	locks   *AccountLocks
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewTransactionLedger creates a new ledger service.
func NewTransactionLedger(store port.LedgerStore, locks *AccountLocks, metrics *observability.Metrics, logger *zap.Logger) *TransactionLedger {
	return &TransactionLedger{store: store, locks: locks, metrics: metrics, logger: logger}
}

// Post applies one deposit or withdrawal to an account.
func (l *TransactionLedger) Post(ctx context.Context, actor domain.Actor, accountID string, input *domain.PostTransactionInput) (*domain.TrustTransaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "TransactionLedger.Post")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", accountID),
		attribute.String("transaction.type", input.Type),
	)

	start := time.Now()
	defer func() { l.metrics.RecordOperationDuration("post", time.Since(start)) }()

	unlock := l.locks.Lock(accountID)
	defer unlock()

	txn, err := l.postLocked(ctx, actor, accountID, input)
	if err != nil {
		l.metrics.IncrPosting(input.Type, "rejected")
		return nil, err
	}
	l.metrics.IncrPosting(input.Type, "success")
	return txn, nil
}

// postLocked runs the posting sequence assuming the caller already
// holds the account lock. The transfer coordinator calls this directly
// with both pair locks held.
func (l *TransactionLedger) postLocked(ctx context.Context, actor domain.Actor, accountID string, input *domain.PostTransactionInput) (*domain.TrustTransaction, error) {
	if input.Type != domain.TransactionTypeDeposit && input.Type != domain.TransactionTypeWithdrawal {
		return nil, &domain.ErrValidation{Field: "type", Message: "must be deposit or withdrawal"}
	}
	if !input.Amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}

	account, err := l.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Status != domain.AccountStatusActive {
		return nil, &domain.ErrAccountNotActive{AccountID: accountID, Status: account.Status}
	}

	// Overdraft guard: a withdrawal may never drive the balance negative.
	if input.Type == domain.TransactionTypeWithdrawal && input.Amount.GreaterThan(account.CurrentBalance) {
		return nil, &domain.ErrInsufficientFunds{
			AccountID: accountID,
			Available: account.CurrentBalance,
			Required:  input.Amount,
		}
	}

	newBalance := account.CurrentBalance.Add(input.Amount)
	if input.Type == domain.TransactionTypeWithdrawal {
		newBalance = account.CurrentBalance.Sub(input.Amount)
	}

	now := time.Now().UTC()
	txn := &domain.TrustTransaction{
		ID:                    uuid.New().String(),
		AccountID:             accountID,
		Type:                  input.Type,
		Amount:                input.Amount,
		RunningBalance:        newBalance,
		Description:           input.Description,
		Reference:             input.Reference,
		MatterID:              input.MatterID,
		ClientID:              account.ClientID,
		AuthorizedBy:          actor.ID,
		AuthorizationReason:   input.AuthorizationReason,
		ProcessedBy:           actor.ID,
		CounterpartyAccountID: input.CounterpartyAccountID,
		BatchID:               input.BatchID,
		Method:                input.Method,
		ProcessedAt:           now,
	}
	if input.MatterID == "" {
		txn.MatterID = account.MatterID
	}

	account.CurrentBalance = newBalance
	account.AvailableBalance = newBalance.Sub(account.ReservedBalance)
	account.LastActivityAt = &now
	account.UpdatedAt = now

	var alert *domain.AccountAlert
	if newBalance.LessThan(account.MinimumBalance) {
		threshold := account.MinimumBalance
		current := newBalance
		alert = buildAlert(accountID, &domain.RaiseAlertInput{
			Type:     domain.AlertTypeLowBalance,
			Severity: domain.AlertSeverityWarning,
			Title:    "Balance below minimum",
			Message: fmt.Sprintf("balance %s fell below the minimum of %s",
				newBalance.StringFixed(2), account.MinimumBalance.StringFixed(2)),
			Threshold:    &threshold,
			CurrentValue: &current,
		})
	}

	md := &domain.AuditMetadata{Kind: "posting"}
	if input.BatchID != "" {
		md.Kind = "transfer_leg"
		md.BatchID = input.BatchID
		if input.Method != nil {
			md.TransferLeg = input.Method.TransferLeg
		}
	}
	audit := newAuditEntry(actor, domain.AuditActionPost, domain.AuditEntityTransaction, txn.ID, accountID, input.AuthorizationReason, md)
	audit.NewValues = snapshot(txn)

	// One commit for all five effects. If the store cannot persist the
	// audit entry (or the alert), the posting fails as a whole.
	if err := l.store.PostTransaction(ctx, account, txn, alert, audit); err != nil {
		l.logger.Error("failed to post transaction",
			zap.String("account_id", accountID),
			zap.String("type", input.Type),
			zap.String("amount", input.Amount.StringFixed(2)),
			zap.Error(err),
		)
		return nil, err
	}
	l.metrics.IncrAuditAppend()

	if alert != nil {
		l.metrics.IncrAlertRaised(alert.Type)
		l.logger.Warn("account alert raised",
			zap.String("alert_id", alert.ID),
			zap.String("account_id", accountID),
			zap.String("alert_type", alert.Type),
		)
	}

	l.logger.Info("transaction posted",
		zap.String("transaction_id", txn.ID),
		zap.String("account_id", accountID),
		zap.String("type", txn.Type),
		zap.String("amount", txn.Amount.StringFixed(2)),
		zap.String("running_balance", txn.RunningBalance.StringFixed(2)),
	)
	return txn, nil
}

// List returns transactions matching the filter, newest-first by
// processing time. That ordering is part of the caller contract.
func (l *TransactionLedger) List(ctx context.Context, filter domain.TransactionFilter) ([]domain.TrustTransaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "TransactionLedger.List")
	defer span.End()

	return l.store.ListTransactions(ctx, filter)
}

// Get returns one transaction by id.
func (l *TransactionLedger) Get(ctx context.Context, txnID string) (*domain.TrustTransaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "TransactionLedger.Get")
	defer span.End()

	return l.store.GetTransaction(ctx, txnID)
}

// BalanceAsOf returns the account's book balance at a point in time:
// the running balance of the newest transaction processed at or before
// t. With no activity by t the opening balance still counts, so the
// ledger reverses the earliest later posting to recover it, or reads
// the untouched balance off the record when nothing was ever posted.
// Before OpenedAt the balance is zero.
func (l *TransactionLedger) BalanceAsOf(ctx context.Context, accountID string, t time.Time) (decimal.Decimal, error) {
	ctx, span := ledgerTracer.Start(ctx, "TransactionLedger.BalanceAsOf")
	defer span.End()

	account, err := l.store.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	txns, err := l.store.ListTransactions(ctx, domain.TransactionFilter{
		AccountIDs: []string{accountID},
		To:         &t,
		Limit:      1,
	})
	if err != nil {
		return decimal.Zero, err
	}
	if len(txns) > 0 {
		return txns[0].RunningBalance, nil
	}
	if t.Before(account.OpenedAt) {
		return decimal.Zero, nil
	}

	later, err := l.store.ListTransactions(ctx, domain.TransactionFilter{
		AccountIDs: []string{accountID},
		From:       &t,
	})
	if err != nil {
		return decimal.Zero, err
	}
	if len(later) == 0 {
		return account.CurrentBalance, nil
	}

	// Lists are newest-first; the last element is the first posting
	// after t. Its pre-posting balance is the balance as of t.
	first := later[len(later)-1]
	if first.Type == domain.TransactionTypeWithdrawal {
		return first.RunningBalance.Add(first.Amount), nil
	}
	return first.RunningBalance.Sub(first.Amount), nil
}

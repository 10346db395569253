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

var reconTracer = otel.Tracer("service/reconciliation")

// reconcileTolerance absorbs currency rounding between book and bank
// balances. Anything at or above one cent is a discrepancy.
var reconcileTolerance = decimal.NewFromFloat(0.01)

// ReconciliationEngine compares the ledger's book balance against
// externally supplied bank-statement balances. It records discrepancies
// but never mutates the account or the ledger.
type ReconciliationEngine struct {
	store   port.LedgerStore
	alerts  *AlertEngine
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewReconciliationEngine creates a new reconciliation engine.
func NewReconciliationEngine(store port.LedgerStore, alerts *AlertEngine, metrics *observability.Metrics, logger *zap.Logger) *ReconciliationEngine {
	return &ReconciliationEngine{store: store, alerts: alerts, metrics: metrics, logger: logger}
}

// Reconcile produces an immutable reconciliation record for the period.
// A discrepancy also raises an alert on the account, but the record is
// kept either way: reconciliations supersede, they never edit.
func (e *ReconciliationEngine) Reconcile(ctx context.Context, actor domain.Actor, accountID string, stmt *domain.StatementInput) (*domain.ReconciliationRecord, error) {
	ctx, span := reconTracer.Start(ctx, "ReconciliationEngine.Reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	if stmt.StatementID == "" {
		return nil, &domain.ErrValidation{Field: "statement_id", Message: "required"}
	}
	if stmt.PeriodStart.IsZero() || stmt.PeriodEnd.IsZero() || !stmt.PeriodEnd.After(stmt.PeriodStart) {
		return nil, &domain.ErrValidation{Field: "period", Message: "period_end must be after period_start"}
	}

	account, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	bookBalance := account.CurrentBalance
	difference := bookBalance.Sub(stmt.Balance)

	status := domain.ReconciliationCompleted
	if difference.Abs().GreaterThanOrEqual(reconcileTolerance) {
		status = domain.ReconciliationDiscrepancy
	}

	matched, unmatched, err := e.splitByStatementDate(ctx, accountID, stmt)
	if err != nil {
		return nil, err
	}

	rec := &domain.ReconciliationRecord{
		ID:                      uuid.New().String(),
		AccountID:               accountID,
		PeriodStart:             stmt.PeriodStart,
		PeriodEnd:               stmt.PeriodEnd,
		StatementID:             stmt.StatementID,
		StatementDate:           stmt.StatementDate,
		BookBalance:             bookBalance,
		BankBalance:             stmt.Balance,
		Difference:              difference,
		Status:                  status,
		MatchedTransactionIDs:   matched,
		UnmatchedTransactionIDs: unmatched,
		PerformedBy:             actor.ID,
		CreatedAt:               time.Now().UTC(),
	}

	audit := newAuditEntry(actor, domain.AuditActionReconcile, domain.AuditEntityReconciliation, rec.ID, accountID, "",
		&domain.AuditMetadata{Kind: "reconciliation", Extra: map[string]string{
			"statement_id": stmt.StatementID,
			"status":       status,
			"difference":   difference.StringFixed(2),
		}})
	audit.NewValues = snapshot(rec)

	if err := e.store.CreateReconciliation(ctx, rec, audit); err != nil {
		e.logger.Error("failed to store reconciliation",
			zap.String("account_id", accountID),
			zap.String("statement_id", stmt.StatementID),
			zap.Error(err),
		)
		return nil, err
	}

	e.metrics.IncrReconciliation(status)
	e.logger.Info("reconciliation recorded",
		zap.String("reconciliation_id", rec.ID),
		zap.String("account_id", accountID),
		zap.String("status", status),
		zap.String("difference", difference.StringFixed(2)),
	)

	if status == domain.ReconciliationDiscrepancy {
		threshold := reconcileTolerance
		current := difference.Abs()
		if _, alertErr := e.alerts.Raise(ctx, accountID, &domain.RaiseAlertInput{
			Type:     domain.AlertTypeReconciliationDiscrepancy,
			Severity: domain.AlertSeverityCritical,
			Title:    "Reconciliation discrepancy",
			Message: fmt.Sprintf("book balance %s differs from statement %s by %s",
				bookBalance.StringFixed(2), stmt.Balance.StringFixed(2), difference.StringFixed(2)),
			Threshold:    &threshold,
			CurrentValue: &current,
		}); alertErr != nil {
			// The record is already durable; losing the observer alert
			// must not retract the reconciliation itself.
			e.logger.Error("failed to raise discrepancy alert",
				zap.String("reconciliation_id", rec.ID), zap.Error(alertErr))
		}
	}

	return rec, nil
}

// Get returns one reconciliation record by id.
func (e *ReconciliationEngine) Get(ctx context.Context, recID string) (*domain.ReconciliationRecord, error) {
	ctx, span := reconTracer.Start(ctx, "ReconciliationEngine.Get")
	defer span.End()

	return e.store.GetReconciliation(ctx, recID)
}

// ListForAccount returns the account's reconciliation history, newest-first.
func (e *ReconciliationEngine) ListForAccount(ctx context.Context, accountID string) ([]domain.ReconciliationRecord, error) {
	ctx, span := reconTracer.Start(ctx, "ReconciliationEngine.ListForAccount")
	defer span.End()

	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return e.store.ListReconciliations(ctx, accountID)
}

// splitByStatementDate classifies the period's transactions: anything
// processed on or before the statement date should appear on the
// statement (matched); later activity cannot (unmatched).
func (e *ReconciliationEngine) splitByStatementDate(ctx context.Context, accountID string, stmt *domain.StatementInput) (matched, unmatched []string, err error) {
	txns, err := e.store.ListTransactions(ctx, domain.TransactionFilter{
		AccountIDs: []string{accountID},
		From:       &stmt.PeriodStart,
		To:         &stmt.PeriodEnd,
	})
	if err != nil {
		return nil, nil, err
	}

	for _, t := range txns {
		if t.ProcessedAt.After(stmt.StatementDate) {
			unmatched = append(unmatched, t.ID)
		} else {
			matched = append(matched, t.ID)
		}
	}
	return matched, unmatched, nil
}

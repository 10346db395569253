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

var transferTracer = otel.Tracer("service/transfer")

// TransferCoordinator composes two ledger postings, a debit on the
// source and a credit on the destination, into one logical transfer.
// Both account locks are held in a fixed global order for the whole
// sequence; a failed second leg is compensated by reversing the first
// under the still-held locks.
type TransferCoordinator struct {
	store   port.LedgerStore
	ledger  *TransactionLedger
	locks   *AccountLocks
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewTransferCoordinator creates a new transfer coordinator.
func NewTransferCoordinator(store port.LedgerStore, ledger *TransactionLedger, locks *AccountLocks, metrics *observability.Metrics, logger *zap.Logger) *TransferCoordinator {
	return &TransferCoordinator{store: store, ledger: ledger, locks: locks, metrics: metrics, logger: logger}
}

// Transfer moves amount from one trust account to another. On success
// exactly two transactions exist sharing one batch id: a withdrawal on
// the source and a deposit on the destination, each tagged with the
// other's account id as counterparty.
func (c *TransferCoordinator) Transfer(ctx context.Context, actor domain.Actor, fromID, toID string, amount decimal.Decimal, description, authorizationReason string) (*domain.TransferResult, error) {
	ctx, span := transferTracer.Start(ctx, "TransferCoordinator.Transfer")
	defer span.End()
	span.SetAttributes(
		attribute.String("from.account.id", fromID),
		attribute.String("to.account.id", toID),
	)

	start := time.Now()
	defer func() { c.metrics.RecordOperationDuration("transfer", time.Since(start)) }()

	if !amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	if fromID == toID {
		return nil, &domain.ErrValidation{Field: "to_account_id", Message: "cannot transfer to the same account"}
	}

	// Locks ordered by account id so crossing transfers cannot deadlock.
	unlock := c.locks.LockPair(fromID, toID)
	defer unlock()

	from, err := c.store.GetAccount(ctx, fromID)
	if err != nil {
		return nil, err
	}
	to, err := c.store.GetAccount(ctx, toID)
	if err != nil {
		return nil, err
	}
	if from.Currency != to.Currency {
		return nil, &domain.ErrValidation{Field: "to_account_id", Message: "currency mismatch: " + from.Currency + " vs " + to.Currency}
	}
	if from.Status != domain.AccountStatusActive {
		return nil, &domain.ErrAccountNotActive{AccountID: fromID, Status: from.Status}
	}
	if to.Status != domain.AccountStatusActive {
		return nil, &domain.ErrAccountNotActive{AccountID: toID, Status: to.Status}
	}
	// Both legs are validated before either balance moves.
	if amount.GreaterThan(from.CurrentBalance) {
		return nil, &domain.ErrInsufficientFunds{AccountID: fromID, Available: from.CurrentBalance, Required: amount}
	}

	batchID := uuid.New().String()

	withdrawal, err := c.ledger.postLocked(ctx, actor, fromID, &domain.PostTransactionInput{
		Type:                  domain.TransactionTypeWithdrawal,
		Amount:                amount,
		Description:           description,
		AuthorizationReason:   authorizationReason,
		CounterpartyAccountID: toID,
		BatchID:               batchID,
		Method:                &domain.TransactionMethod{Kind: domain.MethodInternal, TransferLeg: "debit"},
	})
	if err != nil {
		c.metrics.IncrTransfer("rejected")
		return nil, err
	}

	deposit, err := c.ledger.postLocked(ctx, actor, toID, &domain.PostTransactionInput{
		Type:                  domain.TransactionTypeDeposit,
		Amount:                amount,
		Description:           description,
		AuthorizationReason:   authorizationReason,
		CounterpartyAccountID: fromID,
		BatchID:               batchID,
		Method:                &domain.TransactionMethod{Kind: domain.MethodInternal, TransferLeg: "credit"},
	})
	if err != nil {
		return nil, c.compensate(ctx, actor, fromID, toID, amount, batchID, err)
	}

	// One batch-level audit entry on top of the per-leg entries, so the
	// transfer itself is traceable as a single action.
	audit := newAuditEntry(actor, domain.AuditActionTransfer, domain.AuditEntityTransfer, batchID, fromID, authorizationReason,
		&domain.AuditMetadata{Kind: "transfer", BatchID: batchID, Extra: map[string]string{
			"from_account_id": fromID,
			"to_account_id":   toID,
			"amount":          amount.StringFixed(2),
		}})
	if err := c.store.AppendAudit(ctx, audit); err != nil {
		// The audit trail is not optional: surface the failure even
		// though both legs committed.
		c.logger.Error("transfer batch audit failed",
			zap.String("batch_id", batchID), zap.Error(err))
		return nil, err
	}

	c.metrics.IncrTransfer("success")
	c.logger.Info("transfer completed",
		zap.String("batch_id", batchID),
		zap.String("from_account_id", fromID),
		zap.String("to_account_id", toID),
		zap.String("amount", amount.StringFixed(2)),
	)

	return &domain.TransferResult{
		BatchID:    batchID,
		Withdrawal: withdrawal,
		Deposit:    deposit,
	}, nil
}

// compensate reverses the already-posted debit after the credit leg
// failed. If even the reversal cannot be posted, the ledger is left
// inconsistent and ErrPartialTransfer is surfaced for manual remediation.
func (c *TransferCoordinator) compensate(ctx context.Context, actor domain.Actor, fromID, toID string, amount decimal.Decimal, batchID string, legErr error) error {
	_, cerr := c.ledger.postLocked(ctx, actor, fromID, &domain.PostTransactionInput{
		Type:                  domain.TransactionTypeDeposit,
		Amount:                amount,
		Description:           fmt.Sprintf("reversal of failed transfer %s", batchID),
		AuthorizationReason:   "automatic compensation",
		CounterpartyAccountID: toID,
		BatchID:               batchID,
		Method:                &domain.TransactionMethod{Kind: domain.MethodInternal, TransferLeg: "compensation"},
	})
	if cerr != nil {
		c.metrics.IncrTransfer("partial")
		c.logger.Error("transfer compensation failed, manual remediation required",
			zap.String("batch_id", batchID),
			zap.String("from_account_id", fromID),
			zap.String("to_account_id", toID),
			zap.NamedError("leg_error", legErr),
			zap.NamedError("compensation_error", cerr),
		)
		return &domain.ErrPartialTransfer{
			BatchID:       batchID,
			FromAccountID: fromID,
			ToAccountID:   toID,
			LegErr:        legErr,
		}
	}

	c.metrics.IncrTransfer("compensated")
	c.logger.Warn("transfer credit leg failed, debit compensated",
		zap.String("batch_id", batchID),
		zap.String("from_account_id", fromID),
		zap.String("to_account_id", toID),
		zap.Error(legErr),
	)
	return legErr
}

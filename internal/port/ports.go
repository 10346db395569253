// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/meridian-firm/trust-ledger-go/internal/domain"
)

// LedgerStore is the single authoritative store behind the trust-account
// subsystem. Implemented by the in-memory adapter and the SQLite adapter.
//
// Methods that take an *domain.AuditLogEntry commit the business record
// and the audit entry as one unit: if the audit entry cannot be
// persisted the whole mutation must fail. Stores assign PrevHash and
// EntryHash at append time via domain.HashAuditEntry.
type LedgerStore interface {
	// Accounts
	CreateAccount(ctx context.Context, account *domain.TrustAccount, audit *domain.AuditLogEntry) error
	GetAccount(ctx context.Context, accountID string) (*domain.TrustAccount, error)
	ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.TrustAccount, error)
	UpdateAccount(ctx context.Context, account *domain.TrustAccount, audit *domain.AuditLogEntry) error

	// Ledger. PostTransaction commits the transaction append, the
	// account balance update, the optional alert and the audit entry
	// atomically: all effects of a posting, or none.
	PostTransaction(ctx context.Context, account *domain.TrustAccount, txn *domain.TrustTransaction, alert *domain.AccountAlert, audit *domain.AuditLogEntry) error
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.TrustTransaction, error)
	GetTransaction(ctx context.Context, txnID string) (*domain.TrustTransaction, error)

	// Alerts
	CreateAlert(ctx context.Context, alert *domain.AccountAlert) error
	GetAlert(ctx context.Context, alertID string) (*domain.AccountAlert, error)
	UpdateAlert(ctx context.Context, alert *domain.AccountAlert, audit *domain.AuditLogEntry) error
	ListAlerts(ctx context.Context, accountID string, activeOnly bool) ([]domain.AccountAlert, error)

	// Audit
	AppendAudit(ctx context.Context, entry *domain.AuditLogEntry) error
	QueryAudit(ctx context.Context, accountID string, limit int) ([]domain.AuditLogEntry, error)
	AuditChain(ctx context.Context) ([]domain.AuditLogEntry, error) // oldest-first, for verification

	// Reconciliations
	CreateReconciliation(ctx context.Context, rec *domain.ReconciliationRecord, audit *domain.AuditLogEntry) error
	GetReconciliation(ctx context.Context, recID string) (*domain.ReconciliationRecord, error)
	ListReconciliations(ctx context.Context, accountID string) ([]domain.ReconciliationRecord, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Reconciliation
// ============================================================

// Reconciliation status values.
const (
	ReconciliationCompleted   = "completed"
	ReconciliationDiscrepancy = "discrepancy"
)

// ReconciliationRecord compares the ledger's book balance against an
// externally supplied bank-statement balance for one period. Records are
// immutable; a new reconciliation supersedes rather than edits.
type ReconciliationRecord struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`

	PeriodStart   time.Time `json:"period_start"`
	PeriodEnd     time.Time `json:"period_end"`
	StatementID   string    `json:"statement_id"`
	StatementDate time.Time `json:"statement_date"`

	BookBalance decimal.Decimal `json:"book_balance"`
	BankBalance decimal.Decimal `json:"bank_balance"`
	Difference  decimal.Decimal `json:"difference"`
	Status      string          `json:"status"` // completed, discrepancy

	MatchedTransactionIDs   []string `json:"matched_transaction_ids,omitempty"`
	UnmatchedTransactionIDs []string `json:"unmatched_transaction_ids,omitempty"`

	PerformedBy string    `json:"performed_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// StatementInput is the opaque bank-statement data handed to the
// reconciliation engine. Parsing statement files is an external
// collaborator's job; only the resulting balance arrives here.
type StatementInput struct {
	StatementID   string          `json:"statement_id"`
	StatementDate time.Time       `json:"statement_date"`
	Balance       decimal.Decimal `json:"balance"`
	PeriodStart   time.Time       `json:"period_start"`
	PeriodEnd     time.Time       `json:"period_end"`
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Trust transactions (the ledger)
// ============================================================

// Transaction type values.
const (
	TransactionTypeDeposit    = "deposit"
	TransactionTypeWithdrawal = "withdrawal"
	TransactionTypeTransfer   = "transfer"
)

// TrustTransaction is one immutable ledger entry. Amount is always a
// positive magnitude; the sign is carried by Type. RunningBalance is the
// account balance immediately after this transaction was applied, so the
// ledger can be verified point-in-time without replaying it.
type TrustTransaction struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Type      string `json:"type"` // deposit, withdrawal, transfer

	Amount         decimal.Decimal `json:"amount"`
	RunningBalance decimal.Decimal `json:"running_balance"`

	Description string `json:"description,omitempty"`
	Reference   string `json:"reference,omitempty"`
	MatterID    string `json:"matter_id,omitempty"`
	ClientID    string `json:"client_id,omitempty"`

	AuthorizedBy        string `json:"authorized_by"`
	AuthorizationReason string `json:"authorization_reason,omitempty"`
	ProcessedBy         string `json:"processed_by"`

	// Set only when this posting is one leg of a transfer. BatchID links
	// both legs; CounterpartyAccountID is the other side.
	CounterpartyAccountID string `json:"counterparty_account_id,omitempty"`
	BatchID               string `json:"batch_id,omitempty"`

	Method *TransactionMethod `json:"method,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

// Transaction method kinds.
const (
	MethodCheck    = "check"
	MethodWire     = "wire"
	MethodInternal = "internal"
)

// TransactionMethod records how funds moved. Kind selects which of the
// typed fields is meaningful; Extra holds anything a caller supplies
// that the known variants don't cover.
type TransactionMethod struct {
	Kind        string            `json:"kind"` // check, wire, internal
	CheckNumber string            `json:"check_number,omitempty"`
	WireRef     string            `json:"wire_ref,omitempty"`
	TransferLeg string            `json:"transfer_leg,omitempty"` // debit or credit
	Extra       map[string]string `json:"extra,omitempty"`
}

// PostTransactionInput carries the caller-supplied fields for a posting.
type PostTransactionInput struct {
	Type                string             `json:"type"`
	Amount              decimal.Decimal    `json:"amount"`
	Description         string             `json:"description,omitempty"`
	Reference           string             `json:"reference,omitempty"`
	MatterID            string             `json:"matter_id,omitempty"`
	AuthorizationReason string             `json:"authorization_reason,omitempty"`
	Method              *TransactionMethod `json:"method,omitempty"`

	// Transfer linkage, set by the coordinator only.
	CounterpartyAccountID string `json:"-"`
	BatchID               string `json:"-"`
}

// TransactionFilter narrows List results; fields are conjunctive.
type TransactionFilter struct {
	AccountIDs []string
	Types      []string
	From       *time.Time
	To         *time.Time
	MinAmount  *decimal.Decimal
	MaxAmount  *decimal.Decimal
	Search     string // matched against description and reference
	Limit      int
}

// TransferResult is the outcome of one cross-account transfer: exactly
// two transactions sharing a batch id.
type TransferResult struct {
	BatchID    string            `json:"batch_id"`
	Withdrawal *TrustTransaction `json:"withdrawal"`
	Deposit    *TrustTransaction `json:"deposit"`
}

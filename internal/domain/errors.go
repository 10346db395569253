package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Error types for consistent error handling across the ledger.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrInsufficientFunds indicates not enough balance for the operation.
type ErrInsufficientFunds struct {
	AccountID string
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds on account %s: available=%s required=%s",
		e.AccountID, e.Available.StringFixed(2), e.Required.StringFixed(2))
}

// ErrBalanceNotZero indicates a close was attempted on a funded account.
type ErrBalanceNotZero struct {
	AccountID string
	Balance   decimal.Decimal
}

func (e *ErrBalanceNotZero) Error() string {
	return fmt.Sprintf("account %s cannot be closed: balance is %s, must be zero",
		e.AccountID, e.Balance.StringFixed(2))
}

// ErrAccountNotActive indicates a posting against a frozen or closed account.
type ErrAccountNotActive struct {
	AccountID string
	Status    string
}

func (e *ErrAccountNotActive) Error() string {
	return fmt.Sprintf("account %s is %s and cannot accept postings", e.AccountID, e.Status)
}

// ErrPartialTransfer indicates the second leg of a transfer failed after
// the first succeeded and the compensating reversal also failed. The
// ledger is inconsistent and needs a manual compensating entry.
type ErrPartialTransfer struct {
	BatchID       string
	FromAccountID string
	ToAccountID   string
	LegErr        error
}

func (e *ErrPartialTransfer) Error() string {
	return fmt.Sprintf("partial transfer %s: debit on %s posted but credit on %s failed, manual remediation required: %v",
		e.BatchID, e.FromAccountID, e.ToAccountID, e.LegErr)
}

func (e *ErrPartialTransfer) Unwrap() error {
	return e.LegErr
}

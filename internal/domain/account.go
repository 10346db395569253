package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Trust accounts
// ============================================================

// Account status values.
const (
	AccountStatusActive = "active"
	AccountStatusFrozen = "frozen"
	AccountStatusClosed = "closed"
)

// Account type values.
const (
	AccountTypeChecking    = "checking"
	AccountTypeSavings     = "savings"
	AccountTypeMoneyMarket = "money_market"
)

// TrustAccount is a segregated account holding client funds the firm
// does not own. Balance fields are owned exclusively by the ledger;
// every other mutation goes through the registry.
type TrustAccount struct {
	ID            string `json:"id"`
	ClientID      string `json:"client_id"`
	MatterID      string `json:"matter_id,omitempty"`
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name,omitempty"`
	BankRouting   string `json:"bank_routing,omitempty"`
	AccountType   string `json:"account_type"` // checking, savings, money_market
	Currency      string `json:"currency"`
	Status        string `json:"status"` // active, frozen, closed

	CurrentBalance   decimal.Decimal `json:"current_balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	ReservedBalance  decimal.Decimal `json:"reserved_balance"`
	MinimumBalance   decimal.Decimal `json:"minimum_balance"`

	IOLTACompliant bool     `json:"iolta_compliant"`
	Purpose        string   `json:"purpose,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Notes          string   `json:"notes,omitempty"`

	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	OpenedAt       time.Time  `json:"opened_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CreateAccountInput carries the caller-supplied fields for a new account.
type CreateAccountInput struct {
	ClientID       string          `json:"client_id"`
	MatterID       string          `json:"matter_id,omitempty"`
	Name           string          `json:"name"`
	AccountNumber  string          `json:"account_number"`
	BankName       string          `json:"bank_name,omitempty"`
	BankRouting    string          `json:"bank_routing,omitempty"`
	AccountType    string          `json:"account_type"`
	Currency       string          `json:"currency,omitempty"`
	MinimumBalance decimal.Decimal `json:"minimum_balance"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	IOLTACompliant bool            `json:"iolta_compliant"`
	Purpose        string          `json:"purpose,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
}

// UpdateAccountInput is a partial update. Nil pointers leave the field
// untouched. Balance fields are deliberately absent: they are owned by
// the ledger and cannot be set through the registry.
type UpdateAccountInput struct {
	Name           *string          `json:"name,omitempty"`
	MatterID       *string          `json:"matter_id,omitempty"`
	BankName       *string          `json:"bank_name,omitempty"`
	BankRouting    *string          `json:"bank_routing,omitempty"`
	MinimumBalance *decimal.Decimal `json:"minimum_balance,omitempty"`
	IOLTACompliant *bool            `json:"iolta_compliant,omitempty"`
	Purpose        *string          `json:"purpose,omitempty"`
	Tags           []string         `json:"tags,omitempty"`
	Notes          *string          `json:"notes,omitempty"`
}

// AccountFilter narrows List results. Every supplied field must match
// (conjunctive); zero values mean "no constraint".
type AccountFilter struct {
	ClientIDs  []string
	MatterIDs  []string
	Statuses   []string
	MinBalance *decimal.Decimal
	MaxBalance *decimal.Decimal
	Search     string // matched against name, account number and client id
}

// ValidAccountType reports whether t is one of the supported account types.
func ValidAccountType(t string) bool {
	switch t {
	case AccountTypeChecking, AccountTypeSavings, AccountTypeMoneyMarket:
		return true
	}
	return false
}

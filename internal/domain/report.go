package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Compliance reporting
// ============================================================

// Report status values.
const (
	ReportStatusCompliant = "compliant"
	ReportStatusWarning   = "warning"
	ReportStatusViolation = "violation"
)

// ComplianceReport is a point-in-time regulatory snapshot aggregated
// from the registry, the ledger and the alert engine. Immutable.
type ComplianceReport struct {
	ID          string    `json:"id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	AccountIDs  []string  `json:"account_ids"`

	TotalAccounts     int `json:"total_accounts"`
	CompliantAccounts int `json:"compliant_accounts"`

	AggregateBalance decimal.Decimal `json:"aggregate_balance"`
	AverageBalance   decimal.Decimal `json:"average_balance"`
	TotalDeposits    decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals decimal.Decimal `json:"total_withdrawals"`
	DepositCount     int             `json:"deposit_count"`
	WithdrawalCount  int             `json:"withdrawal_count"`

	ComplianceScore decimal.Decimal `json:"compliance_score"` // compliant/total * 100
	Status          string          `json:"status"`           // compliant, warning, violation

	Accounts []AccountCompliance `json:"accounts,omitempty"`

	GeneratedBy string    `json:"generated_by"`
	GeneratedAt time.Time `json:"generated_at"`
}

// AccountCompliance is the per-account detail behind a report.
type AccountCompliance struct {
	AccountID      string          `json:"account_id"`
	Compliant      bool            `json:"compliant"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	Issues         []string        `json:"issues,omitempty"`
}

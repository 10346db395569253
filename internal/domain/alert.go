package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Account alerts
// ============================================================

// Alert type values.
const (
	AlertTypeLowBalance                = "low_balance"
	AlertTypeComplianceViolation       = "compliance_violation"
	AlertTypeUnusualActivity           = "unusual_activity"
	AlertTypeReconciliationDiscrepancy = "reconciliation_discrepancy"
)

// Alert severity values.
const (
	AlertSeverityInfo     = "info"
	AlertSeverityWarning  = "warning"
	AlertSeverityCritical = "critical"
)

// AccountAlert is raised by the alert engine in response to ledger
// events. Alerts are never deleted; resolving one keeps it as history.
type AccountAlert struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Type      string `json:"type"`
	Severity  string `json:"severity"`
	Title     string `json:"title"`
	Message   string `json:"message"`

	Threshold    *decimal.Decimal `json:"threshold,omitempty"`
	CurrentValue *decimal.Decimal `json:"current_value,omitempty"`

	Active          bool       `json:"active"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy      string     `json:"resolved_by,omitempty"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
}

// RaiseAlertInput carries the fields for a new alert.
type RaiseAlertInput struct {
	Type         string           `json:"type"`
	Severity     string           `json:"severity"`
	Title        string           `json:"title"`
	Message      string           `json:"message"`
	Threshold    *decimal.Decimal `json:"threshold,omitempty"`
	CurrentValue *decimal.Decimal `json:"current_value,omitempty"`
}

package domain

import (
	"encoding/json"
	"time"
)

// ============================================================
// Audit log
// ============================================================

// Audit action verbs.
const (
	AuditActionCreate    = "create"
	AuditActionUpdate    = "update"
	AuditActionClose     = "close"
	AuditActionFreeze    = "freeze"
	AuditActionUnfreeze  = "unfreeze"
	AuditActionPost      = "post"
	AuditActionTransfer  = "transfer"
	AuditActionResolve   = "resolve"
	AuditActionReconcile = "reconcile"
)

// Audit entity types.
const (
	AuditEntityAccount        = "account"
	AuditEntityTransaction    = "transaction"
	AuditEntityTransfer       = "transfer"
	AuditEntityAlert          = "alert"
	AuditEntityReconciliation = "reconciliation"
)

// Actor is the opaque identity supplied by the external auth
// collaborator. The ledger never interprets it beyond logging.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`

	// Request metadata, captured at the boundary.
	RemoteAddr string `json:"remote_addr,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
}

// AuditMetadata is structured context attached to an entry. Kind selects
// the known variant; Extra is an open map for anything else.
type AuditMetadata struct {
	Kind        string            `json:"kind,omitempty"` // posting, transfer_leg, status_change, reconciliation
	BatchID     string            `json:"batch_id,omitempty"`
	TransferLeg string            `json:"transfer_leg,omitempty"`
	FromStatus  string            `json:"from_status,omitempty"`
	ToStatus    string            `json:"to_status,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// AuditLogEntry is one immutable record of a mutating operation. Entries
// form a hash chain: EntryHash covers the entry's content plus PrevHash,
// so any edit or removal in the middle of the log is detectable.
type AuditLogEntry struct {
	ID         string `json:"id"`
	Action     string `json:"action"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	AccountID  string `json:"account_id,omitempty"`

	ActorID    string `json:"actor_id"`
	ActorName  string `json:"actor_name,omitempty"`
	ActorRole  string `json:"actor_role,omitempty"`
	RemoteAddr string `json:"remote_addr,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`

	PreviousValues json.RawMessage `json:"previous_values,omitempty"`
	NewValues      json.RawMessage `json:"new_values,omitempty"`

	Reason   string         `json:"reason,omitempty"`
	Metadata *AuditMetadata `json:"metadata,omitempty"`

	PrevHash  string    `json:"prev_hash,omitempty"`
	EntryHash string    `json:"entry_hash"`
	CreatedAt time.Time `json:"created_at"`
}

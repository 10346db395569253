// Package service provides the business logic layer (use cases) of the
// trust-account subsystem: account lifecycle, ledger postings, transfers,
// alerting, audit, reconciliation and compliance reporting.
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/meridian-firm/trust-ledger-go/internal/domain"
	"github.com/meridian-firm/trust-ledger-go/internal/infra/observability"
	"github.com/meridian-firm/trust-ledger-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var auditTracer = otel.Tracer("service/audit")

// AuditLog is the append-only record of every mutating operation.
// Most entries are committed by the stores together with the business
// record they describe; this service is the query/verify surface plus
// the entry point for standalone appends.
type AuditLog struct {
	store   port.LedgerStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewAuditLog creates a new audit log service.
func NewAuditLog(store port.LedgerStore, metrics *observability.Metrics, logger *zap.Logger) *AuditLog {
	return &AuditLog{store: store, metrics: metrics, logger: logger}
}

// Append writes one entry. It never rejects a well-formed entry; a
// storage failure is returned as-is because an unaudited mutation must
// be treated as a failed mutation by the caller.
func (a *AuditLog) Append(ctx context.Context, entry *domain.AuditLogEntry) error {
	ctx, span := auditTracer.Start(ctx, "AuditLog.Append")
	defer span.End()

	if err := a.store.AppendAudit(ctx, entry); err != nil {
		a.logger.Error("audit append failed",
			zap.String("action", entry.Action),
			zap.String("entity_id", entry.EntityID),
			zap.Error(err),
		)
		return err
	}
	a.metrics.IncrAuditAppend()
	return nil
}

// Query returns entries newest-first, optionally filtered to one
// account, capped at limit.
func (a *AuditLog) Query(ctx context.Context, accountID string, limit int) ([]domain.AuditLogEntry, error) {
	ctx, span := auditTracer.Start(ctx, "AuditLog.Query")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}
	return a.store.QueryAudit(ctx, accountID, limit)
}

// ChainVerification is the outcome of walking the audit hash chain.
type ChainVerification struct {
	Entries  int    `json:"entries"`
	Intact   bool   `json:"intact"`
	BrokenAt string `json:"broken_at,omitempty"` // id of the first entry whose hash does not verify
}

// Verify recomputes the hash chain oldest-first and reports the first
// broken link, if any. The retention policy trims oldest entries, so
// the chain is anchored at whatever the oldest retained entry is.
func (a *AuditLog) Verify(ctx context.Context) (*ChainVerification, error) {
	ctx, span := auditTracer.Start(ctx, "AuditLog.Verify")
	defer span.End()

	entries, err := a.store.AuditChain(ctx)
	if err != nil {
		return nil, err
	}

	result := &ChainVerification{Entries: len(entries), Intact: true}
	for i := range entries {
		e := &entries[i]
		if i > 0 && e.PrevHash != entries[i-1].EntryHash {
			result.Intact = false
			result.BrokenAt = e.ID
			break
		}
		if domain.HashAuditEntry(e, e.PrevHash) != e.EntryHash {
			result.Intact = false
			result.BrokenAt = e.ID
			break
		}
	}

	if !result.Intact {
		a.logger.Error("audit chain verification failed",
			zap.String("broken_at", result.BrokenAt),
			zap.Int("entries", result.Entries),
		)
	}
	return result, nil
}

// newAuditEntry builds an unsealed entry; stores assign the hash chain
// fields at commit time.
func newAuditEntry(actor domain.Actor, action, entityType, entityID, accountID, reason string, md *domain.AuditMetadata) *domain.AuditLogEntry {
	return &domain.AuditLogEntry{
		ID:         uuid.New().String(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		AccountID:  accountID,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		ActorRole:  actor.Role,
		RemoteAddr: actor.RemoteAddr,
		UserAgent:  actor.UserAgent,
		Reason:     reason,
		Metadata:   md,
		CreatedAt:  time.Now().UTC(),
	}
}

// snapshot marshals v for an entry's before/after fields. Snapshots are
// best-effort context, not the system of record, so a marshal failure
// degrades to an empty snapshot instead of failing the operation.
func snapshot(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

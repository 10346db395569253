package service

import (
	"context"
	"time"

	"github.com/meridian-firm/trust-ledger-go/internal/domain"
	"github.com/meridian-firm/trust-ledger-go/internal/infra/observability"
	"github.com/meridian-firm/trust-ledger-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var alertTracer = otel.Tracer("service/alerts")

// AlertEngine raises and resolves account alerts. It performs no
// deduplication: repeated threshold breaches produce repeated alerts
// unless the caller checks List first.
type AlertEngine struct {
	store   port.LedgerStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewAlertEngine creates a new alert engine.
func NewAlertEngine(store port.LedgerStore, metrics *observability.Metrics, logger *zap.Logger) *AlertEngine {
	return &AlertEngine{store: store, metrics: metrics, logger: logger}
}

// Raise creates and stores an active alert for the account.
func (e *AlertEngine) Raise(ctx context.Context, accountID string, input *domain.RaiseAlertInput) (*domain.AccountAlert, error) {
	ctx, span := alertTracer.Start(ctx, "AlertEngine.Raise")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID), attribute.String("alert.type", input.Type))

	if input.Type == "" {
		return nil, &domain.ErrValidation{Field: "type", Message: "required"}
	}
	if input.Severity == "" {
		input.Severity = domain.AlertSeverityWarning
	}
	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	alert := buildAlert(accountID, input)
	if err := e.store.CreateAlert(ctx, alert); err != nil {
		e.logger.Error("failed to create alert",
			zap.String("account_id", accountID),
			zap.String("alert_type", input.Type),
			zap.Error(err),
		)
		return nil, err
	}

	e.metrics.IncrAlertRaised(alert.Type)
	e.logger.Warn("account alert raised",
		zap.String("alert_id", alert.ID),
		zap.String("account_id", accountID),
		zap.String("alert_type", alert.Type),
		zap.String("severity", alert.Severity),
	)
	return alert, nil
}

// Resolve acknowledges an alert. Alerts are never deleted; a resolved
// alert stays queryable through History.
func (e *AlertEngine) Resolve(ctx context.Context, actor domain.Actor, alertID, notes string) (*domain.AccountAlert, error) {
	ctx, span := alertTracer.Start(ctx, "AlertEngine.Resolve")
	defer span.End()

	alert, err := e.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if !alert.Active {
		return nil, &domain.ErrValidation{Field: "alert_id", Message: "alert is already resolved"}
	}

	now := time.Now().UTC()
	alert.Active = false
	alert.ResolvedAt = &now
	alert.ResolvedBy = actor.ID
	alert.ResolutionNotes = notes

	audit := newAuditEntry(actor, domain.AuditActionResolve, domain.AuditEntityAlert, alert.ID, alert.AccountID, notes, nil)
	audit.NewValues = snapshot(alert)

	if err := e.store.UpdateAlert(ctx, alert, audit); err != nil {
		return nil, err
	}

	e.logger.Info("account alert resolved",
		zap.String("alert_id", alert.ID),
		zap.String("account_id", alert.AccountID),
		zap.String("resolved_by", actor.ID),
	)
	return alert, nil
}

// List returns currently-active alerts, optionally scoped to one account.
func (e *AlertEngine) List(ctx context.Context, accountID string) ([]domain.AccountAlert, error) {
	ctx, span := alertTracer.Start(ctx, "AlertEngine.List")
	defer span.End()

	return e.store.ListAlerts(ctx, accountID, true)
}

// History returns all alerts for an account, resolved ones included.
func (e *AlertEngine) History(ctx context.Context, accountID string) ([]domain.AccountAlert, error) {
	ctx, span := alertTracer.Start(ctx, "AlertEngine.History")
	defer span.End()

	if accountID == "" {
		return nil, &domain.ErrValidation{Field: "account_id", Message: "required"}
	}
	return e.store.ListAlerts(ctx, accountID, false)
}

// buildAlert constructs the stored alert record. Split out so the
// ledger can build a low-balance alert for its atomic posting commit
// without going through Raise's account lookup.
func buildAlert(accountID string, input *domain.RaiseAlertInput) *domain.AccountAlert {
	return &domain.AccountAlert{
		ID:           uuid.New().String(),
		AccountID:    accountID,
		Type:         input.Type,
		Severity:     input.Severity,
		Title:        input.Title,
		Message:      input.Message,
		Threshold:    input.Threshold,
		CurrentValue: input.CurrentValue,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
}

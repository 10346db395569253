package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/meridian-firm/trust-ledger-go/internal/domain"
	"github.com/meridian-firm/trust-ledger-go/internal/infra/memstore"
	"github.com/meridian-firm/trust-ledger-go/internal/infra/observability"
	"github.com/meridian-firm/trust-ledger-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newAlertFixture(t *testing.T) (*service.AlertEngine, *domain.TrustAccount) {
	t.Helper()
	store := memstore.New(0)
	locks := service.NewAccountLocks()
	metrics := observability.NewMetrics()
	registry := service.NewAccountRegistry(store, locks, metrics, zap.NewNop())
	engine := service.NewAlertEngine(store, metrics, zap.NewNop())

	account, err := registry.Create(context.Background(), testActor, checkingInput())
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return engine, account
}

func TestRaiseAlert(t *testing.T) {
	engine, account := newAlertFixture(t)
	ctx := context.Background()

	threshold := decimal.NewFromInt(500)
	alert, err := engine.Raise(ctx, account.ID, &domain.RaiseAlertInput{
		Type:      domain.AlertTypeUnusualActivity,
		Title:     "Rapid withdrawal sequence",
		Message:   "five withdrawals inside one minute",
		Threshold: &threshold,
	})
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	if !alert.Active {
		t.Error("expected alert to be active")
	}
	if alert.Severity != domain.AlertSeverityWarning {
		t.Errorf("expected default severity warning, got %s", alert.Severity)
	}

	_, err = engine.Raise(ctx, "missing", &domain.RaiseAlertInput{Type: domain.AlertTypeUnusualActivity})
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound for unknown account, got %v", err)
	}

	_, err = engine.Raise(ctx, account.ID, &domain.RaiseAlertInput{})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for missing type, got %v", err)
	}
}

func TestResolveAlert(t *testing.T) {
	engine, account := newAlertFixture(t)
	ctx := context.Background()

	alert, err := engine.Raise(ctx, account.ID, &domain.RaiseAlertInput{
		Type:     domain.AlertTypeComplianceViolation,
		Severity: domain.AlertSeverityCritical,
	})
	if err != nil {
		t.Fatalf("raise: %v", err)
	}

	resolved, err := engine.Resolve(ctx, testActor, alert.ID, "false positive")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Active {
		t.Error("expected alert inactive after resolve")
	}
	if resolved.ResolvedBy != testActor.ID || resolved.ResolvedAt == nil {
		t.Error("expected resolution attribution")
	}

	// Resolving twice is rejected.
	if _, err := engine.Resolve(ctx, testActor, alert.ID, "again"); err == nil {
		t.Error("expected error resolving an already-resolved alert")
	}
}

func TestAlertListAndHistory(t *testing.T) {
	engine, account := newAlertFixture(t)
	ctx := context.Background()

	first, err := engine.Raise(ctx, account.ID, &domain.RaiseAlertInput{Type: domain.AlertTypeLowBalance})
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	if _, err := engine.Raise(ctx, account.ID, &domain.RaiseAlertInput{Type: domain.AlertTypeUnusualActivity}); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if _, err := engine.Resolve(ctx, testActor, first.ID, "funded"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	active, err := engine.List(ctx, account.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 1 || active[0].Type != domain.AlertTypeUnusualActivity {
		t.Fatalf("expected only the unresolved alert, got %d", len(active))
	}

	history, err := engine.History(ctx, account.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected full history of 2, got %d", len(history))
	}

	if _, err := engine.History(ctx, ""); err == nil {
		t.Error("expected validation error for history without account")
	}
}

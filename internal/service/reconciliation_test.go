package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/meridian-firm/trust-ledger-go/internal/domain"
	"github.com/meridian-firm/trust-ledger-go/internal/infra/memstore"
	"github.com/meridian-firm/trust-ledger-go/internal/infra/observability"
	"github.com/meridian-firm/trust-ledger-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type reconFixture struct {
	store    *memstore.Store
	registry *service.AccountRegistry
	ledger   *service.TransactionLedger
	alerts   *service.AlertEngine
	recon    *service.ReconciliationEngine
	account  *domain.TrustAccount
}

func newReconFixture(t *testing.T) *reconFixture {
	t.Helper()
	store := memstore.New(0)
	locks := service.NewAccountLocks()
	metrics := observability.NewMetrics()
	registry := service.NewAccountRegistry(store, locks, metrics, zap.NewNop())
	ledger := service.NewTransactionLedger(store, locks, metrics, zap.NewNop())
	alerts := service.NewAlertEngine(store, metrics, zap.NewNop())
	recon := service.NewReconciliationEngine(store, alerts, metrics, zap.NewNop())

	account, err := registry.Create(context.Background(), testActor, checkingInput())
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return &reconFixture{store: store, registry: registry, ledger: ledger, alerts: alerts, recon: recon, account: account}
}

func statement(balance int64) *domain.StatementInput {
	now := time.Now().UTC()
	return &domain.StatementInput{
		StatementID:   "stmt-2026-08",
		StatementDate: now,
		Balance:       decimal.NewFromInt(balance),
		PeriodStart:   now.Add(-30 * 24 * time.Hour),
		PeriodEnd:     now.Add(time.Hour),
	}
}

func TestReconcile_Matched(t *testing.T) {
	f := newReconFixture(t) // book balance 1000
	ctx := context.Background()

	rec, err := f.recon.Reconcile(ctx, testActor, f.account.ID, statement(1000))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if rec.Status != domain.ReconciliationCompleted {
		t.Errorf("expected completed, got %s", rec.Status)
	}
	if !rec.Difference.IsZero() {
		t.Errorf("expected zero difference, got %s", rec.Difference)
	}

	alerts, _ := f.alerts.List(ctx, f.account.ID)
	if len(alerts) != 0 {
		t.Errorf("matched reconciliation must not raise alerts, got %d", len(alerts))
	}
}

func TestReconcile_DiscrepancyRaisesCriticalAlert(t *testing.T) {
	f := newReconFixture(t) // book balance 1000
	ctx := context.Background()

	rec, err := f.recon.Reconcile(ctx, testActor, f.account.ID, statement(950))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if rec.Status != domain.ReconciliationDiscrepancy {
		t.Errorf("expected discrepancy, got %s", rec.Status)
	}
	if !rec.Difference.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected difference 50, got %s", rec.Difference)
	}

	alerts, _ := f.alerts.List(ctx, f.account.ID)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Type != domain.AlertTypeReconciliationDiscrepancy || alerts[0].Severity != domain.AlertSeverityCritical {
		t.Errorf("unexpected alert: type=%s severity=%s", alerts[0].Type, alerts[0].Severity)
	}
}

// Sub-cent mismatch stays within tolerance.
func TestReconcile_WithinTolerance(t *testing.T) {
	f := newReconFixture(t)
	ctx := context.Background()

	stmt := statement(0)
	stmt.Balance = decimal.RequireFromString("999.995")
	rec, err := f.recon.Reconcile(ctx, testActor, f.account.ID, stmt)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if rec.Status != domain.ReconciliationCompleted {
		t.Errorf("expected completed within tolerance, got %s", rec.Status)
	}
}

func TestReconcile_SplitsByStatementDate(t *testing.T) {
	f := newReconFixture(t)
	ctx := context.Background()

	txn, err := f.ledger.Post(ctx, testActor, f.account.ID, &domain.PostTransactionInput{
		Type:   domain.TransactionTypeDeposit,
		Amount: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("post: %v", err)
	}

	// Statement cut before the deposit: the deposit cannot appear on it.
	stmt := statement(1000)
	stmt.StatementDate = txn.ProcessedAt.Add(-time.Second)
	rec, err := f.recon.Reconcile(ctx, testActor, f.account.ID, stmt)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(rec.MatchedTransactionIDs) != 0 {
		t.Errorf("expected no matched transactions, got %d", len(rec.MatchedTransactionIDs))
	}
	if len(rec.UnmatchedTransactionIDs) != 1 || rec.UnmatchedTransactionIDs[0] != txn.ID {
		t.Fatalf("expected the deposit unmatched, got %v", rec.UnmatchedTransactionIDs)
	}

	// Statement cut after the deposit: now it matches.
	stmt2 := statement(1100)
	stmt2.StatementID = "stmt-2026-09"
	stmt2.StatementDate = txn.ProcessedAt.Add(time.Second)
	rec2, err := f.recon.Reconcile(ctx, testActor, f.account.ID, stmt2)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(rec2.MatchedTransactionIDs) != 1 || rec2.MatchedTransactionIDs[0] != txn.ID {
		t.Fatalf("expected the deposit matched, got %v", rec2.MatchedTransactionIDs)
	}
}

func TestReconcile_Validation(t *testing.T) {
	f := newReconFixture(t)
	ctx := context.Background()
	var verr *domain.ErrValidation

	stmt := statement(1000)
	stmt.StatementID = ""
	if _, err := f.recon.Reconcile(ctx, testActor, f.account.ID, stmt); !errors.As(err, &verr) {
		t.Fatalf("expected validation error for statement_id, got %v", err)
	}

	stmt = statement(1000)
	stmt.PeriodEnd = stmt.PeriodStart
	if _, err := f.recon.Reconcile(ctx, testActor, f.account.ID, stmt); !errors.As(err, &verr) {
		t.Fatalf("expected validation error for period, got %v", err)
	}
}

func TestReconcile_HistoryImmutable(t *testing.T) {
	f := newReconFixture(t)
	ctx := context.Background()

	first, err := f.recon.Reconcile(ctx, testActor, f.account.ID, statement(1000))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	second := statement(950)
	second.StatementID = "stmt-2026-09"
	if _, err := f.recon.Reconcile(ctx, testActor, f.account.ID, second); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	// Both records remain; the earlier one is unchanged.
	records, err := f.recon.ListForAccount(ctx, f.account.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	got, err := f.recon.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.ReconciliationCompleted {
		t.Errorf("earlier record changed: %s", got.Status)
	}
}

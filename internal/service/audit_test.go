package service_test

import (
	"context"
	"testing"

	"github.com/meridian-firm/trust-ledger-go/internal/domain"
	"github.com/meridian-firm/trust-ledger-go/internal/infra/memstore"
	"github.com/meridian-firm/trust-ledger-go/internal/infra/observability"
	"github.com/meridian-firm/trust-ledger-go/internal/port"
	"github.com/meridian-firm/trust-ledger-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newAuditFixture(t *testing.T, retention int) (*service.AuditLog, *memstore.Store, *service.AccountRegistry) {
	t.Helper()
	store := memstore.New(retention)
	locks := service.NewAccountLocks()
	metrics := observability.NewMetrics()
	registry := service.NewAccountRegistry(store, locks, metrics, zap.NewNop())
	return service.NewAuditLog(store, metrics, zap.NewNop()), store, registry
}

func TestAuditChain_IntactAfterOperations(t *testing.T) {
	audit, store, registry := newAuditFixture(t, 0)
	ctx := context.Background()

	account, err := registry.Create(ctx, testActor, checkingInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	newName := "renamed"
	if _, err := registry.Update(ctx, testActor, account.ID, &domain.UpdateAccountInput{Name: &newName}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := registry.Freeze(ctx, testActor, account.ID, "hold"); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	result, err := audit.Verify(ctx)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Intact {
		t.Fatalf("expected intact chain, broken at %s", result.BrokenAt)
	}
	if result.Entries != 3 {
		t.Errorf("expected 3 entries, got %d", result.Entries)
	}

	// Each entry links to its predecessor.
	entries, _ := store.AuditChain(ctx)
	if entries[0].PrevHash != "" {
		t.Error("first entry must have empty prev hash")
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].PrevHash != entries[i-1].EntryHash {
			t.Errorf("entry %d not linked to predecessor", i)
		}
	}
}

// tamperedStore rewrites one field of a stored entry on read,
// simulating post-hoc modification of the log.
type tamperedStore struct {
	port.LedgerStore
	tamperIndex int
}

func (s *tamperedStore) AuditChain(ctx context.Context) ([]domain.AuditLogEntry, error) {
	entries, err := s.LedgerStore.AuditChain(ctx)
	if err != nil {
		return nil, err
	}
	if s.tamperIndex < len(entries) {
		entries[s.tamperIndex].Reason = "doctored"
	}
	return entries, nil
}

func TestAuditChain_DetectsTampering(t *testing.T) {
	_, store, registry := newAuditFixture(t, 0)
	ctx := context.Background()

	account, err := registry.Create(ctx, testActor, checkingInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := registry.Freeze(ctx, testActor, account.ID, "hold"); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if _, err := registry.Unfreeze(ctx, testActor, account.ID, "lifted"); err != nil {
		t.Fatalf("unfreeze: %v", err)
	}

	metrics := observability.NewMetrics()
	tampered := service.NewAuditLog(&tamperedStore{LedgerStore: store, tamperIndex: 1}, metrics, zap.NewNop())

	result, err := tampered.Verify(ctx)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Intact {
		t.Fatal("expected tampering to be detected")
	}
	if result.BrokenAt == "" {
		t.Error("expected broken entry id to be reported")
	}
}

// Retention drops oldest entries; the remaining chain still verifies
// from its new anchor.
func TestAuditChain_RetentionKeepsNewest(t *testing.T) {
	audit, store, registry := newAuditFixture(t, 5)
	ctx := context.Background()

	account, err := registry.Create(ctx, testActor, checkingInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	min := decimal.NewFromInt(100)
	for i := 0; i < 8; i++ {
		if _, err := registry.Update(ctx, testActor, account.ID, &domain.UpdateAccountInput{MinimumBalance: &min}); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}

	entries, err := store.AuditChain(ctx)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected retention cap of 5, got %d", len(entries))
	}

	result, err := audit.Verify(ctx)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Intact {
		t.Errorf("trimmed chain should still verify, broken at %s", result.BrokenAt)
	}
}

func TestAuditQuery_ScopedAndLimited(t *testing.T) {
	audit, _, registry := newAuditFixture(t, 0)
	ctx := context.Background()

	a, err := registry.Create(ctx, testActor, checkingInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	other := checkingInput()
	other.ClientID = "cli-200"
	other.AccountNumber = "0042-9911"
	b, err := registry.Create(ctx, testActor, other)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	forA, err := audit.Query(ctx, a.ID, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(forA) != 1 || forA[0].AccountID != a.ID {
		t.Fatalf("expected 1 entry for account a, got %d", len(forA))
	}

	all, err := audit.Query(ctx, "", 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected limit 1 to cap results, got %d", len(all))
	}
	// Newest first: the most recent creation is account b.
	if all[0].EntityID != b.ID {
		t.Errorf("expected newest entry first, got entity %s", all[0].EntityID)
	}
}

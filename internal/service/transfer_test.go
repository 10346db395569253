package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/meridian-firm/trust-ledger-go/internal/domain"
	"github.com/meridian-firm/trust-ledger-go/internal/infra/memstore"
	"github.com/meridian-firm/trust-ledger-go/internal/infra/observability"
	"github.com/meridian-firm/trust-ledger-go/internal/port"
	"github.com/meridian-firm/trust-ledger-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type transferFixture struct {
	store     *memstore.Store
	registry  *service.AccountRegistry
	ledger    *service.TransactionLedger
	transfers *service.TransferCoordinator
	from      *domain.TrustAccount
	to        *domain.TrustAccount
}

func newTransferFixture(t *testing.T, fromBalance, toBalance int64) *transferFixture {
	t.Helper()
	store := memstore.New(0)
	f := newTransferFixtureWithStore(t, store, fromBalance, toBalance)
	return f
}

func newTransferFixtureWithStore(t *testing.T, store *memstore.Store, fromBalance, toBalance int64) *transferFixture {
	t.Helper()
	locks := service.NewAccountLocks()
	metrics := observability.NewMetrics()
	registry := service.NewAccountRegistry(store, locks, metrics, zap.NewNop())
	ledger := service.NewTransactionLedger(store, locks, metrics, zap.NewNop())
	transfers := service.NewTransferCoordinator(store, ledger, locks, metrics, zap.NewNop())

	ctx := context.Background()
	fromInput := checkingInput()
	fromInput.OpeningBalance = decimal.NewFromInt(fromBalance)
	fromInput.MinimumBalance = decimal.Zero
	from, err := registry.Create(ctx, testActor, fromInput)
	if err != nil {
		t.Fatalf("create from account: %v", err)
	}

	toInput := checkingInput()
	toInput.ClientID = "cli-200"
	toInput.AccountNumber = "0042-9911"
	toInput.OpeningBalance = decimal.NewFromInt(toBalance)
	toInput.MinimumBalance = decimal.Zero
	to, err := registry.Create(ctx, testActor, toInput)
	if err != nil {
		t.Fatalf("create to account: %v", err)
	}

	return &transferFixture{store: store, registry: registry, ledger: ledger, transfers: transfers, from: from, to: to}
}

func TestTransfer_Success(t *testing.T) {
	f := newTransferFixture(t, 1000, 0)
	ctx := context.Background()

	result, err := f.transfers.Transfer(ctx, testActor, f.from.ID, f.to.ID,
		decimal.NewFromInt(400), "settlement disbursement", "court order 17-b")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if result.BatchID == "" {
		t.Fatal("expected batch id")
	}
	if result.Withdrawal.BatchID != result.BatchID || result.Deposit.BatchID != result.BatchID {
		t.Error("legs do not share the batch id")
	}
	if result.Withdrawal.CounterpartyAccountID != f.to.ID {
		t.Errorf("withdrawal counterparty = %s, want %s", result.Withdrawal.CounterpartyAccountID, f.to.ID)
	}
	if result.Deposit.CounterpartyAccountID != f.from.ID {
		t.Errorf("deposit counterparty = %s, want %s", result.Deposit.CounterpartyAccountID, f.from.ID)
	}

	from, _ := f.registry.Get(ctx, f.from.ID)
	to, _ := f.registry.Get(ctx, f.to.ID)
	if !from.CurrentBalance.Equal(decimal.NewFromInt(600)) {
		t.Errorf("expected source balance 600, got %s", from.CurrentBalance)
	}
	if !to.CurrentBalance.Equal(decimal.NewFromInt(400)) {
		t.Errorf("expected destination balance 400, got %s", to.CurrentBalance)
	}

	// Two leg entries plus one batch-level transfer entry.
	entries, _ := f.store.AuditChain(ctx)
	var transferEntries int
	for _, e := range entries {
		if e.Action == domain.AuditActionTransfer {
			transferEntries++
		}
	}
	if transferEntries != 1 {
		t.Errorf("expected 1 batch-level audit entry, got %d", transferEntries)
	}
}

// An insufficient-funds transfer fails validation before either leg
// posts: both balances stay put and no transactions exist.
func TestTransfer_InsufficientFunds(t *testing.T) {
	f := newTransferFixture(t, 200, 0)
	ctx := context.Background()

	_, err := f.transfers.Transfer(ctx, testActor, f.from.ID, f.to.ID,
		decimal.NewFromInt(250), "", "")
	var insufficient *domain.ErrInsufficientFunds
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	from, _ := f.registry.Get(ctx, f.from.ID)
	to, _ := f.registry.Get(ctx, f.to.ID)
	if !from.CurrentBalance.Equal(decimal.NewFromInt(200)) || !to.CurrentBalance.IsZero() {
		t.Errorf("balances moved on rejected transfer: from=%s to=%s", from.CurrentBalance, to.CurrentBalance)
	}
	txns, _ := f.ledger.List(ctx, domain.TransactionFilter{})
	if len(txns) != 0 {
		t.Errorf("expected no transactions, got %d", len(txns))
	}
}

func TestTransfer_Validation(t *testing.T) {
	f := newTransferFixture(t, 1000, 0)
	ctx := context.Background()
	var verr *domain.ErrValidation

	_, err := f.transfers.Transfer(ctx, testActor, f.from.ID, f.from.ID, decimal.NewFromInt(10), "", "")
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for same account, got %v", err)
	}

	_, err = f.transfers.Transfer(ctx, testActor, f.from.ID, f.to.ID, decimal.NewFromInt(-5), "", "")
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for negative amount, got %v", err)
	}
}

func TestTransfer_FrozenDestinationRejected(t *testing.T) {
	f := newTransferFixture(t, 1000, 0)
	ctx := context.Background()

	if _, err := f.registry.Freeze(ctx, testActor, f.to.ID, "hold"); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	_, err := f.transfers.Transfer(ctx, testActor, f.from.ID, f.to.ID, decimal.NewFromInt(10), "", "")
	var notActive *domain.ErrAccountNotActive
	if !errors.As(err, &notActive) {
		t.Fatalf("expected ErrAccountNotActive, got %v", err)
	}

	from, _ := f.registry.Get(ctx, f.from.ID)
	if !from.CurrentBalance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("source balance moved: %s", from.CurrentBalance)
	}
}

// failingStore passes through to the wrapped store but fails
// PostTransaction for one account, simulating a storage fault on the
// credit leg.
type failingStore struct {
	port.LedgerStore
	failAccountID string
	failErr       error
}

func (s *failingStore) PostTransaction(ctx context.Context, account *domain.TrustAccount, txn *domain.TrustTransaction, alert *domain.AccountAlert, audit *domain.AuditLogEntry) error {
	if txn.AccountID == s.failAccountID {
		return s.failErr
	}
	return s.LedgerStore.PostTransaction(ctx, account, txn, alert, audit)
}

// When the credit leg fails after the debit committed, the coordinator
// posts a compensating reversal and surfaces the leg error. The source
// account ends where it started.
func TestTransfer_CompensatesFailedCreditLeg(t *testing.T) {
	mem := memstore.New(0)
	locks := service.NewAccountLocks()
	metrics := observability.NewMetrics()
	registry := service.NewAccountRegistry(mem, locks, metrics, zap.NewNop())

	ctx := context.Background()
	fromInput := checkingInput()
	fromInput.MinimumBalance = decimal.Zero
	from, err := registry.Create(ctx, testActor, fromInput)
	if err != nil {
		t.Fatalf("create from: %v", err)
	}
	toInput := checkingInput()
	toInput.ClientID = "cli-200"
	toInput.AccountNumber = "0042-9911"
	toInput.OpeningBalance = decimal.Zero
	toInput.MinimumBalance = decimal.Zero
	to, err := registry.Create(ctx, testActor, toInput)
	if err != nil {
		t.Fatalf("create to: %v", err)
	}

	boom := errors.New("disk full")
	store := &failingStore{LedgerStore: mem, failAccountID: to.ID, failErr: boom}
	ledger := service.NewTransactionLedger(store, locks, metrics, zap.NewNop())
	transfers := service.NewTransferCoordinator(store, ledger, locks, metrics, zap.NewNop())

	_, err = transfers.Transfer(ctx, testActor, from.ID, to.ID, decimal.NewFromInt(300), "", "")
	if !errors.Is(err, boom) {
		t.Fatalf("expected leg error, got %v", err)
	}
	var partial *domain.ErrPartialTransfer
	if errors.As(err, &partial) {
		t.Fatal("compensation succeeded, error must not be ErrPartialTransfer")
	}

	// Debit plus compensating reversal: net zero.
	account, _ := registry.Get(ctx, from.ID)
	if !account.CurrentBalance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected source balance restored to 1000, got %s", account.CurrentBalance)
	}

	txns, _ := ledger.List(ctx, domain.TransactionFilter{AccountIDs: []string{from.ID}})
	if len(txns) != 2 {
		t.Fatalf("expected debit and reversal, got %d transactions", len(txns))
	}
}

// Crossing transfers lock the pair in a fixed global order, so A->B
// concurrent with B->A completes instead of deadlocking.
func TestTransfer_CrossingNoDeadlock(t *testing.T) {
	f := newTransferFixture(t, 1000, 1000)
	ctx := context.Background()

	const rounds = 20
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if _, err := f.transfers.Transfer(ctx, testActor, f.from.ID, f.to.ID, decimal.NewFromInt(5), "", ""); err != nil {
				t.Errorf("a->b transfer: %v", err)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if _, err := f.transfers.Transfer(ctx, testActor, f.to.ID, f.from.ID, decimal.NewFromInt(5), "", ""); err != nil {
				t.Errorf("b->a transfer: %v", err)
			}
		}
	}()
	wg.Wait()

	from, _ := f.registry.Get(ctx, f.from.ID)
	to, _ := f.registry.Get(ctx, f.to.ID)
	total := from.CurrentBalance.Add(to.CurrentBalance)
	if !total.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("funds not conserved: total=%s", total)
	}
	if !from.CurrentBalance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected symmetric transfers to cancel, from=%s", from.CurrentBalance)
	}
}

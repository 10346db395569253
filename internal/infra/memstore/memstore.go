// Package memstore is the in-memory LedgerStore used by tests and
// single-process development runs. All maps live behind one RWMutex;
// reads hand out copies so callers never observe a half-applied write.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/meridian-firm/trust-ledger-go/internal/domain"
)

// Store is a thread-safe in-memory implementation of port.LedgerStore.
type Store struct {
	mu sync.RWMutex

	accounts map[string]*domain.TrustAccount

	txns     []domain.TrustTransaction // append order, oldest first
	txnByID  map[string]int
	alerts   map[string]*domain.AccountAlert
	alertSeq []string // creation order

	audit     []domain.AuditLogEntry // oldest first; the hash chain
	lastHash  string
	auditMax  int
	recs      map[string]*domain.ReconciliationRecord
	recsByAcc map[string][]string // newest first
}

// New creates an empty store. auditRetention caps the audit log; zero
// or negative means unbounded.
func New(auditRetention int) *Store {
	return &Store{
		accounts:  make(map[string]*domain.TrustAccount),
		txnByID:   make(map[string]int),
		alerts:    make(map[string]*domain.AccountAlert),
		auditMax:  auditRetention,
		recs:      make(map[string]*domain.ReconciliationRecord),
		recsByAcc: make(map[string][]string),
	}
}

// ============================================================
// Accounts
// ============================================================

func (s *Store) CreateAccount(_ context.Context, account *domain.TrustAccount, audit *domain.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; exists {
		return &domain.ErrValidation{Field: "id", Message: "account id already exists"}
	}
	s.accounts[account.ID] = cloneAccount(account)
	s.sealAudit(audit)
	return nil
}

func (s *Store) GetAccount(_ context.Context, accountID string) (*domain.TrustAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	return cloneAccount(account), nil
}

func (s *Store) ListAccounts(_ context.Context, filter domain.AccountFilter) ([]domain.TrustAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TrustAccount, 0, len(s.accounts))
	for _, account := range s.accounts {
		if matchAccount(account, &filter) {
			out = append(out, *cloneAccount(account))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateAccount(_ context.Context, account *domain.TrustAccount, audit *domain.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; !ok {
		return &domain.ErrNotFound{Resource: "account", ID: account.ID}
	}
	s.accounts[account.ID] = cloneAccount(account)
	s.sealAudit(audit)
	return nil
}

// ============================================================
// Ledger
// ============================================================

// PostTransaction commits the transaction, the balance update, the
// optional alert and the audit entry under one lock acquisition, so the
// posting is all-or-nothing.
func (s *Store) PostTransaction(_ context.Context, account *domain.TrustAccount, txn *domain.TrustTransaction, alert *domain.AccountAlert, audit *domain.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; !ok {
		return &domain.ErrNotFound{Resource: "account", ID: account.ID}
	}

	s.txns = append(s.txns, *txn)
	s.txnByID[txn.ID] = len(s.txns) - 1
	s.accounts[account.ID] = cloneAccount(account)
	if alert != nil {
		s.alerts[alert.ID] = cloneAlert(alert)
		s.alertSeq = append(s.alertSeq, alert.ID)
	}
	s.sealAudit(audit)
	return nil
}

func (s *Store) ListTransactions(_ context.Context, filter domain.TransactionFilter) ([]domain.TrustTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.TrustTransaction
	// Walk newest-append-first so the Limit cut keeps recent entries.
	for i := len(s.txns) - 1; i >= 0; i-- {
		t := &s.txns[i]
		if !matchTransaction(t, &filter) {
			continue
		}
		out = append(out, *t)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ProcessedAt.After(out[j].ProcessedAt) })
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, txnID string) (*domain.TrustTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.txnByID[txnID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: txnID}
	}
	t := s.txns[idx]
	return &t, nil
}

// ============================================================
// Alerts
// ============================================================

func (s *Store) CreateAlert(_ context.Context, alert *domain.AccountAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts[alert.ID] = cloneAlert(alert)
	s.alertSeq = append(s.alertSeq, alert.ID)
	return nil
}

func (s *Store) GetAlert(_ context.Context, alertID string) (*domain.AccountAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, ok := s.alerts[alertID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "alert", ID: alertID}
	}
	return cloneAlert(alert), nil
}

func (s *Store) UpdateAlert(_ context.Context, alert *domain.AccountAlert, audit *domain.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.alerts[alert.ID]; !ok {
		return &domain.ErrNotFound{Resource: "alert", ID: alert.ID}
	}
	s.alerts[alert.ID] = cloneAlert(alert)
	s.sealAudit(audit)
	return nil
}

func (s *Store) ListAlerts(_ context.Context, accountID string, activeOnly bool) ([]domain.AccountAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.AccountAlert
	// Newest first.
	for i := len(s.alertSeq) - 1; i >= 0; i-- {
		alert := s.alerts[s.alertSeq[i]]
		if accountID != "" && alert.AccountID != accountID {
			continue
		}
		if activeOnly && !alert.Active {
			continue
		}
		out = append(out, *cloneAlert(alert))
	}
	return out, nil
}

// ============================================================
// Audit
// ============================================================

func (s *Store) AppendAudit(_ context.Context, entry *domain.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sealAudit(entry)
	return nil
}

func (s *Store) QueryAudit(_ context.Context, accountID string, limit int) ([]domain.AuditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.AuditLogEntry
	for i := len(s.audit) - 1; i >= 0; i-- {
		e := &s.audit[i]
		if accountID != "" && e.AccountID != accountID {
			continue
		}
		out = append(out, *e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) AuditChain(_ context.Context) ([]domain.AuditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditLogEntry, len(s.audit))
	copy(out, s.audit)
	return out, nil
}

// sealAudit links the entry into the hash chain and applies retention.
// Callers must hold the write lock.
func (s *Store) sealAudit(entry *domain.AuditLogEntry) {
	if entry == nil {
		return
	}
	entry.PrevHash = s.lastHash
	entry.EntryHash = domain.HashAuditEntry(entry, s.lastHash)
	s.lastHash = entry.EntryHash

	s.audit = append(s.audit, *entry)
	if s.auditMax > 0 && len(s.audit) > s.auditMax {
		// Drop oldest; the chain stays verifiable from the new anchor.
		s.audit = s.audit[len(s.audit)-s.auditMax:]
	}
}

// ============================================================
// Reconciliations
// ============================================================

func (s *Store) CreateReconciliation(_ context.Context, rec *domain.ReconciliationRecord, audit *domain.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *rec
	s.recs[rec.ID] = &clone
	s.recsByAcc[rec.AccountID] = append([]string{rec.ID}, s.recsByAcc[rec.AccountID]...)
	s.sealAudit(audit)
	return nil
}

func (s *Store) GetReconciliation(_ context.Context, recID string) (*domain.ReconciliationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.recs[recID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "reconciliation", ID: recID}
	}
	clone := *rec
	return &clone, nil
}

func (s *Store) ListReconciliations(_ context.Context, accountID string) ([]domain.ReconciliationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.recsByAcc[accountID]
	out := make([]domain.ReconciliationRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.recs[id])
	}
	return out, nil
}

// ============================================================
// Filter matching and copies
// ============================================================

func matchAccount(a *domain.TrustAccount, f *domain.AccountFilter) bool {
	if len(f.ClientIDs) > 0 && !contains(f.ClientIDs, a.ClientID) {
		return false
	}
	if len(f.MatterIDs) > 0 && !contains(f.MatterIDs, a.MatterID) {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, a.Status) {
		return false
	}
	if f.MinBalance != nil && a.CurrentBalance.LessThan(*f.MinBalance) {
		return false
	}
	if f.MaxBalance != nil && a.CurrentBalance.GreaterThan(*f.MaxBalance) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(a.Name), q) &&
			!strings.Contains(strings.ToLower(a.AccountNumber), q) &&
			!strings.Contains(strings.ToLower(a.ClientID), q) {
			return false
		}
	}
	return true
}

func matchTransaction(t *domain.TrustTransaction, f *domain.TransactionFilter) bool {
	if len(f.AccountIDs) > 0 && !contains(f.AccountIDs, t.AccountID) {
		return false
	}
	if len(f.Types) > 0 && !contains(f.Types, t.Type) {
		return false
	}
	if f.From != nil && t.ProcessedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && t.ProcessedAt.After(*f.To) {
		return false
	}
	if f.MinAmount != nil && t.Amount.LessThan(*f.MinAmount) {
		return false
	}
	if f.MaxAmount != nil && t.Amount.GreaterThan(*f.MaxAmount) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Description), q) &&
			!strings.Contains(strings.ToLower(t.Reference), q) {
			return false
		}
	}
	return true
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func cloneAccount(a *domain.TrustAccount) *domain.TrustAccount {
	clone := *a
	if a.Tags != nil {
		clone.Tags = append([]string(nil), a.Tags...)
	}
	return &clone
}

func cloneAlert(a *domain.AccountAlert) *domain.AccountAlert {
	clone := *a
	return &clone
}

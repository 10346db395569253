package service

import (
	"context"
	"strings"
	"time"

	"github.com/meridian-firm/trust-ledger-go/internal/domain"
	"github.com/meridian-firm/trust-ledger-go/internal/infra/observability"
	"github.com/meridian-firm/trust-ledger-go/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var registryTracer = otel.Tracer("service/registry")

// AccountRegistry owns trust-account records and their lifecycle.
// Balance fields are never mutated here; they belong to the ledger.
type AccountRegistry struct {
	store   port.LedgerStore
	locks   *AccountLocks
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewAccountRegistry creates a new account registry.
func NewAccountRegistry(store port.LedgerStore, locks *AccountLocks, metrics *observability.Metrics, logger *zap.Logger) *AccountRegistry {
	return &AccountRegistry{store: store, locks: locks, metrics: metrics, logger: logger}
}

// Create validates the input, assigns identity and writes the account
// together with its audit entry.
func (r *AccountRegistry) Create(ctx context.Context, actor domain.Actor, input *domain.CreateAccountInput) (*domain.TrustAccount, error) {
	ctx, span := registryTracer.Start(ctx, "AccountRegistry.Create")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", input.ClientID))

	if input.ClientID == "" {
		return nil, &domain.ErrValidation{Field: "client_id", Message: "required"}
	}
	if input.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if input.AccountNumber == "" {
		return nil, &domain.ErrValidation{Field: "account_number", Message: "required"}
	}
	if !domain.ValidAccountType(input.AccountType) {
		return nil, &domain.ErrValidation{Field: "account_type", Message: "must be checking, savings or money_market"}
	}
	if input.MinimumBalance.IsNegative() {
		return nil, &domain.ErrValidation{Field: "minimum_balance", Message: "must not be negative"}
	}
	if input.OpeningBalance.IsNegative() {
		return nil, &domain.ErrValidation{Field: "opening_balance", Message: "must not be negative"}
	}

	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}

	now := time.Now().UTC()
	account := &domain.TrustAccount{
		ID:               uuid.New().String(),
		ClientID:         input.ClientID,
		MatterID:         input.MatterID,
		Name:             input.Name,
		AccountNumber:    input.AccountNumber,
		BankName:         input.BankName,
		BankRouting:      input.BankRouting,
		AccountType:      input.AccountType,
		Currency:         currency,
		Status:           domain.AccountStatusActive,
		CurrentBalance:   input.OpeningBalance,
		AvailableBalance: input.OpeningBalance,
		ReservedBalance:  decimal.Zero,
		MinimumBalance:   input.MinimumBalance,
		IOLTACompliant:   input.IOLTACompliant,
		Purpose:          input.Purpose,
		Tags:             input.Tags,
		OpenedAt:         now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	audit := newAuditEntry(actor, domain.AuditActionCreate, domain.AuditEntityAccount, account.ID, account.ID, "", nil)
	audit.NewValues = snapshot(account)

	if err := r.store.CreateAccount(ctx, account, audit); err != nil {
		r.logger.Error("failed to create account",
			zap.String("client_id", input.ClientID),
			zap.Error(err),
		)
		return nil, err
	}

	r.logger.Info("trust account created",
		zap.String("account_id", account.ID),
		zap.String("client_id", account.ClientID),
		zap.String("account_type", account.AccountType),
		zap.String("opening_balance", account.CurrentBalance.StringFixed(2)),
	)
	return account, nil
}

// Get returns the account or ErrNotFound.
func (r *AccountRegistry) Get(ctx context.Context, accountID string) (*domain.TrustAccount, error) {
	ctx, span := registryTracer.Start(ctx, "AccountRegistry.Get")
	defer span.End()

	return r.store.GetAccount(ctx, accountID)
}

// List returns accounts matching all supplied filter fields.
func (r *AccountRegistry) List(ctx context.Context, filter domain.AccountFilter) ([]domain.TrustAccount, error) {
	ctx, span := registryTracer.Start(ctx, "AccountRegistry.List")
	defer span.End()

	return r.store.ListAccounts(ctx, filter)
}

// Update merges the non-balance fields of patch into the account and
// records before/after snapshots in the audit log. Balance fields are
// structurally absent from UpdateAccountInput; they are owned by the
// ledger and cannot pass through here.
func (r *AccountRegistry) Update(ctx context.Context, actor domain.Actor, accountID string, patch *domain.UpdateAccountInput) (*domain.TrustAccount, error) {
	ctx, span := registryTracer.Start(ctx, "AccountRegistry.Update")
	defer span.End()

	// UpdateAccount persists the whole record, so a posting committing
	// between the read and the write would be reverted without the lock.
	unlock := r.locks.Lock(accountID)
	defer unlock()

	account, err := r.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	before := *account

	if patch.MinimumBalance != nil && patch.MinimumBalance.IsNegative() {
		return nil, &domain.ErrValidation{Field: "minimum_balance", Message: "must not be negative"}
	}

	if patch.Name != nil {
		account.Name = *patch.Name
	}
	if patch.MatterID != nil {
		account.MatterID = *patch.MatterID
	}
	if patch.BankName != nil {
		account.BankName = *patch.BankName
	}
	if patch.BankRouting != nil {
		account.BankRouting = *patch.BankRouting
	}
	if patch.MinimumBalance != nil {
		account.MinimumBalance = *patch.MinimumBalance
	}
	if patch.IOLTACompliant != nil {
		account.IOLTACompliant = *patch.IOLTACompliant
	}
	if patch.Purpose != nil {
		account.Purpose = *patch.Purpose
	}
	if patch.Tags != nil {
		account.Tags = patch.Tags
	}
	if patch.Notes != nil {
		account.Notes = *patch.Notes
	}
	account.UpdatedAt = time.Now().UTC()

	audit := newAuditEntry(actor, domain.AuditActionUpdate, domain.AuditEntityAccount, account.ID, account.ID, "", nil)
	audit.PreviousValues = snapshot(&before)
	audit.NewValues = snapshot(account)

	if err := r.store.UpdateAccount(ctx, account, audit); err != nil {
		return nil, err
	}

	r.logger.Info("trust account updated", zap.String("account_id", account.ID))
	return account, nil
}

// Close marks the account closed. It fails while any funds remain; the
// caller must first disburse the balance through the ledger.
func (r *AccountRegistry) Close(ctx context.Context, actor domain.Actor, accountID, reason string) (*domain.TrustAccount, error) {
	ctx, span := registryTracer.Start(ctx, "AccountRegistry.Close")
	defer span.End()

	// Close is balance-affecting: it must not race a posting.
	unlock := r.locks.Lock(accountID)
	defer unlock()

	account, err := r.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Status == domain.AccountStatusClosed {
		return nil, &domain.ErrValidation{Field: "status", Message: "account already closed"}
	}
	if !account.CurrentBalance.IsZero() {
		return nil, &domain.ErrBalanceNotZero{AccountID: accountID, Balance: account.CurrentBalance}
	}

	before := *account
	now := time.Now().UTC()
	account.Status = domain.AccountStatusClosed
	account.ClosedAt = &now
	account.UpdatedAt = now
	if reason != "" {
		account.Notes = appendNote(account.Notes, "closed: "+reason)
	}

	audit := newAuditEntry(actor, domain.AuditActionClose, domain.AuditEntityAccount, account.ID, account.ID, reason,
		&domain.AuditMetadata{Kind: "status_change", FromStatus: before.Status, ToStatus: domain.AccountStatusClosed})
	audit.PreviousValues = snapshot(&before)
	audit.NewValues = snapshot(account)

	if err := r.store.UpdateAccount(ctx, account, audit); err != nil {
		return nil, err
	}

	r.logger.Info("trust account closed",
		zap.String("account_id", account.ID),
		zap.String("reason", reason),
	)
	return account, nil
}

// Freeze suspends postings on the account until it is unfrozen.
func (r *AccountRegistry) Freeze(ctx context.Context, actor domain.Actor, accountID, reason string) (*domain.TrustAccount, error) {
	ctx, span := registryTracer.Start(ctx, "AccountRegistry.Freeze")
	defer span.End()

	return r.setStatus(ctx, actor, accountID, domain.AccountStatusActive, domain.AccountStatusFrozen, domain.AuditActionFreeze, reason)
}

// Unfreeze reactivates a frozen account.
func (r *AccountRegistry) Unfreeze(ctx context.Context, actor domain.Actor, accountID, reason string) (*domain.TrustAccount, error) {
	ctx, span := registryTracer.Start(ctx, "AccountRegistry.Unfreeze")
	defer span.End()

	return r.setStatus(ctx, actor, accountID, domain.AccountStatusFrozen, domain.AccountStatusActive, domain.AuditActionUnfreeze, reason)
}

func (r *AccountRegistry) setStatus(ctx context.Context, actor domain.Actor, accountID, fromStatus, toStatus, action, reason string) (*domain.TrustAccount, error) {
	unlock := r.locks.Lock(accountID)
	defer unlock()

	account, err := r.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Status != fromStatus {
		return nil, &domain.ErrValidation{Field: "status", Message: "account is " + account.Status + ", expected " + fromStatus}
	}

	before := *account
	account.Status = toStatus
	account.UpdatedAt = time.Now().UTC()

	audit := newAuditEntry(actor, action, domain.AuditEntityAccount, account.ID, account.ID, reason,
		&domain.AuditMetadata{Kind: "status_change", FromStatus: fromStatus, ToStatus: toStatus})
	audit.PreviousValues = snapshot(&before)
	audit.NewValues = snapshot(account)

	if err := r.store.UpdateAccount(ctx, account, audit); err != nil {
		return nil, err
	}

	r.logger.Info("trust account status changed",
		zap.String("account_id", account.ID),
		zap.String("from", fromStatus),
		zap.String("to", toStatus),
	)
	return account, nil
}

func appendNote(notes, note string) string {
	if notes == "" {
		return note
	}
	return strings.TrimRight(notes, "\n") + "\n" + note
}

// Package sqlitestore is the durable LedgerStore backend. Everything a
// posting touches (transaction, balance, alert, audit entry) commits
// in one SQL transaction.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/meridian-firm/trust-ledger-go/internal/domain"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Store implements port.LedgerStore on a SQLite database.
type Store struct {
	db       *sql.DB
	auditMax int
}

// Open opens (creating if necessary) the database at path and runs the
// schema migration. auditRetention caps the audit log; zero or negative
// means unbounded.
func Open(path string, auditRetention int) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	// modernc's driver is not safe for concurrent writers on one
	// connection pool; a single connection serializes them.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, auditMax: auditRetention}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		matter_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		account_number TEXT NOT NULL,
		bank_name TEXT NOT NULL DEFAULT '',
		bank_routing TEXT NOT NULL DEFAULT '',
		account_type TEXT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		current_balance TEXT NOT NULL,
		available_balance TEXT NOT NULL,
		reserved_balance TEXT NOT NULL,
		minimum_balance TEXT NOT NULL,
		iolta_compliant INTEGER NOT NULL DEFAULT 0,
		purpose TEXT NOT NULL DEFAULT '',
		tags TEXT,
		notes TEXT NOT NULL DEFAULT '',
		last_activity_at TEXT,
		opened_at TEXT NOT NULL,
		closed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		running_balance TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		reference TEXT NOT NULL DEFAULT '',
		matter_id TEXT NOT NULL DEFAULT '',
		client_id TEXT NOT NULL DEFAULT '',
		authorized_by TEXT NOT NULL,
		authorization_reason TEXT NOT NULL DEFAULT '',
		processed_by TEXT NOT NULL,
		counterparty_account_id TEXT NOT NULL DEFAULT '',
		batch_id TEXT NOT NULL DEFAULT '',
		method TEXT,
		processed_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_account_processed
		ON transactions(account_id, processed_at);

	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		threshold TEXT,
		current_value TEXT,
		active INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		resolved_at TEXT,
		resolved_by TEXT NOT NULL DEFAULT '',
		resolution_notes TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_account ON alerts(account_id, active);

	CREATE TABLE IF NOT EXISTS audit_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		account_id TEXT NOT NULL DEFAULT '',
		actor_id TEXT NOT NULL,
		actor_name TEXT NOT NULL DEFAULT '',
		actor_role TEXT NOT NULL DEFAULT '',
		remote_addr TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		previous_values TEXT,
		new_values TEXT,
		reason TEXT NOT NULL DEFAULT '',
		metadata TEXT,
		prev_hash TEXT NOT NULL DEFAULT '',
		entry_hash TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_account ON audit_log(account_id);

	CREATE TABLE IF NOT EXISTS reconciliations (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		statement_id TEXT NOT NULL,
		statement_date TEXT NOT NULL,
		book_balance TEXT NOT NULL,
		bank_balance TEXT NOT NULL,
		difference TEXT NOT NULL,
		status TEXT NOT NULL,
		matched_ids TEXT,
		unmatched_ids TEXT,
		performed_by TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reconciliations_account
		ON reconciliations(account_id, created_at);
	`)
	return err
}

// ============================================================
// Accounts
// ============================================================

const accountColumns = `id, client_id, matter_id, name, account_number, bank_name, bank_routing,
	account_type, currency, status, current_balance, available_balance, reserved_balance,
	minimum_balance, iolta_compliant, purpose, tags, notes, last_activity_at, opened_at,
	closed_at, created_at, updated_at`

func (s *Store) CreateAccount(ctx context.Context, account *domain.TrustAccount, audit *domain.AuditLogEntry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertAccount(ctx, tx, account); err != nil {
			return err
		}
		return s.appendAuditTx(ctx, tx, audit)
	})
}

func insertAccount(ctx context.Context, tx *sql.Tx, a *domain.TrustAccount) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.ClientID, a.MatterID, a.Name, a.AccountNumber, a.BankName, a.BankRouting,
		a.AccountType, a.Currency, a.Status,
		a.CurrentBalance.String(), a.AvailableBalance.String(), a.ReservedBalance.String(),
		a.MinimumBalance.String(), boolToInt(a.IOLTACompliant), a.Purpose,
		marshalJSON(a.Tags), a.Notes,
		timePtrToStr(a.LastActivityAt), timeToStr(a.OpenedAt), timePtrToStr(a.ClosedAt),
		timeToStr(a.CreatedAt), timeToStr(a.UpdatedAt),
	)
	return err
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (*domain.TrustAccount, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, accountID)
	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	return account, err
}

func (s *Store) ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.TrustAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	var conds []string
	var args []any

	if len(filter.ClientIDs) > 0 {
		conds = append(conds, "client_id IN "+placeholders(len(filter.ClientIDs)))
		args = appendStrings(args, filter.ClientIDs)
	}
	if len(filter.MatterIDs) > 0 {
		conds = append(conds, "matter_id IN "+placeholders(len(filter.MatterIDs)))
		args = appendStrings(args, filter.MatterIDs)
	}
	if len(filter.Statuses) > 0 {
		conds = append(conds, "status IN "+placeholders(len(filter.Statuses)))
		args = appendStrings(args, filter.Statuses)
	}
	if filter.Search != "" {
		conds = append(conds, "(name LIKE ? COLLATE NOCASE OR account_number LIKE ? COLLATE NOCASE OR client_id LIKE ? COLLATE NOCASE)")
		q := "%" + filter.Search + "%"
		args = append(args, q, q, q)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TrustAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		// Balance range compares decimals, which TEXT storage cannot
		// order correctly; filter after the scan.
		if filter.MinBalance != nil && account.CurrentBalance.LessThan(*filter.MinBalance) {
			continue
		}
		if filter.MaxBalance != nil && account.CurrentBalance.GreaterThan(*filter.MaxBalance) {
			continue
		}
		out = append(out, *account)
	}
	return out, rows.Err()
}

func (s *Store) UpdateAccount(ctx context.Context, account *domain.TrustAccount, audit *domain.AuditLogEntry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := updateAccount(ctx, tx, account); err != nil {
			return err
		}
		return s.appendAuditTx(ctx, tx, audit)
	})
}

func updateAccount(ctx context.Context, tx *sql.Tx, a *domain.TrustAccount) error {
	res, err := tx.ExecContext(ctx, `UPDATE accounts SET
		client_id=?, matter_id=?, name=?, account_number=?, bank_name=?, bank_routing=?,
		account_type=?, currency=?, status=?, current_balance=?, available_balance=?,
		reserved_balance=?, minimum_balance=?, iolta_compliant=?, purpose=?, tags=?, notes=?,
		last_activity_at=?, closed_at=?, updated_at=?
		WHERE id=?`,
		a.ClientID, a.MatterID, a.Name, a.AccountNumber, a.BankName, a.BankRouting,
		a.AccountType, a.Currency, a.Status,
		a.CurrentBalance.String(), a.AvailableBalance.String(), a.ReservedBalance.String(),
		a.MinimumBalance.String(), boolToInt(a.IOLTACompliant), a.Purpose,
		marshalJSON(a.Tags), a.Notes,
		timePtrToStr(a.LastActivityAt), timePtrToStr(a.ClosedAt), timeToStr(a.UpdatedAt),
		a.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "account", ID: a.ID}
	}
	return nil
}

// ============================================================
// Ledger
// ============================================================

const txnColumns = `id, account_id, type, amount, running_balance, description, reference,
	matter_id, client_id, authorized_by, authorization_reason, processed_by,
	counterparty_account_id, batch_id, method, processed_at`

func (s *Store) PostTransaction(ctx context.Context, account *domain.TrustAccount, txn *domain.TrustTransaction, alert *domain.AccountAlert, audit *domain.AuditLogEntry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO transactions (`+txnColumns+`)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			txn.ID, txn.AccountID, txn.Type, txn.Amount.String(), txn.RunningBalance.String(),
			txn.Description, txn.Reference, txn.MatterID, txn.ClientID,
			txn.AuthorizedBy, txn.AuthorizationReason, txn.ProcessedBy,
			txn.CounterpartyAccountID, txn.BatchID, marshalJSON(txn.Method), timeToStr(txn.ProcessedAt),
		)
		if err != nil {
			return err
		}
		if err := updateAccount(ctx, tx, account); err != nil {
			return err
		}
		if alert != nil {
			if err := insertAlert(ctx, tx, alert); err != nil {
				return err
			}
		}
		return s.appendAuditTx(ctx, tx, audit)
	})
}

func (s *Store) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.TrustTransaction, error) {
	query := `SELECT ` + txnColumns + ` FROM transactions`
	var conds []string
	var args []any

	if len(filter.AccountIDs) > 0 {
		conds = append(conds, "account_id IN "+placeholders(len(filter.AccountIDs)))
		args = appendStrings(args, filter.AccountIDs)
	}
	if len(filter.Types) > 0 {
		conds = append(conds, "type IN "+placeholders(len(filter.Types)))
		args = appendStrings(args, filter.Types)
	}
	if filter.From != nil {
		conds = append(conds, "processed_at >= ?")
		args = append(args, timeToStr(*filter.From))
	}
	if filter.To != nil {
		conds = append(conds, "processed_at <= ?")
		args = append(args, timeToStr(*filter.To))
	}
	if filter.Search != "" {
		conds = append(conds, "(description LIKE ? COLLATE NOCASE OR reference LIKE ? COLLATE NOCASE)")
		q := "%" + filter.Search + "%"
		args = append(args, q, q)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY processed_at DESC, rowid DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TrustTransaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		if filter.MinAmount != nil && txn.Amount.LessThan(*filter.MinAmount) {
			continue
		}
		if filter.MaxAmount != nil && txn.Amount.GreaterThan(*filter.MaxAmount) {
			continue
		}
		out = append(out, *txn)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, rows.Err()
}

func (s *Store) GetTransaction(ctx context.Context, txnID string) (*domain.TrustTransaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+txnColumns+` FROM transactions WHERE id = ?`, txnID)
	txn, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: txnID}
	}
	return txn, err
}

// ============================================================
// Alerts
// ============================================================

const alertColumns = `id, account_id, type, severity, title, message, threshold, current_value,
	active, created_at, resolved_at, resolved_by, resolution_notes`

func (s *Store) CreateAlert(ctx context.Context, alert *domain.AccountAlert) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertAlert(ctx, tx, alert)
	})
}

func insertAlert(ctx context.Context, tx *sql.Tx, a *domain.AccountAlert) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO alerts (`+alertColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.AccountID, a.Type, a.Severity, a.Title, a.Message,
		decPtrToStr(a.Threshold), decPtrToStr(a.CurrentValue),
		boolToInt(a.Active), timeToStr(a.CreatedAt), timePtrToStr(a.ResolvedAt),
		a.ResolvedBy, a.ResolutionNotes,
	)
	return err
}

func (s *Store) GetAlert(ctx context.Context, alertID string) (*domain.AccountAlert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, alertID)
	alert, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, &domain.ErrNotFound{Resource: "alert", ID: alertID}
	}
	return alert, err
}

func (s *Store) UpdateAlert(ctx context.Context, alert *domain.AccountAlert, audit *domain.AuditLogEntry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE alerts SET
			active=?, resolved_at=?, resolved_by=?, resolution_notes=? WHERE id=?`,
			boolToInt(alert.Active), timePtrToStr(alert.ResolvedAt),
			alert.ResolvedBy, alert.ResolutionNotes, alert.ID,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &domain.ErrNotFound{Resource: "alert", ID: alert.ID}
		}
		return s.appendAuditTx(ctx, tx, audit)
	})
}

func (s *Store) ListAlerts(ctx context.Context, accountID string, activeOnly bool) ([]domain.AccountAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts`
	var conds []string
	var args []any
	if accountID != "" {
		conds = append(conds, "account_id = ?")
		args = append(args, accountID)
	}
	if activeOnly {
		conds = append(conds, "active = 1")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AccountAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *alert)
	}
	return out, rows.Err()
}

// ============================================================
// Audit
// ============================================================

const auditColumns = `id, action, entity_type, entity_id, account_id, actor_id, actor_name,
	actor_role, remote_addr, user_agent, previous_values, new_values, reason, metadata,
	prev_hash, entry_hash, created_at`

func (s *Store) AppendAudit(ctx context.Context, entry *domain.AuditLogEntry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.appendAuditTx(ctx, tx, entry)
	})
}

// appendAuditTx seals the entry against the newest stored hash and
// inserts it inside the caller's transaction, so the chain and the
// business record commit or roll back together.
func (s *Store) appendAuditTx(ctx context.Context, tx *sql.Tx, entry *domain.AuditLogEntry) error {
	if entry == nil {
		return nil
	}

	var lastHash string
	err := tx.QueryRowContext(ctx, `SELECT entry_hash FROM audit_log ORDER BY seq DESC LIMIT 1`).Scan(&lastHash)
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	entry.PrevHash = lastHash
	entry.EntryHash = domain.HashAuditEntry(entry, lastHash)

	_, err = tx.ExecContext(ctx, `INSERT INTO audit_log (`+auditColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		entry.ID, entry.Action, entry.EntityType, entry.EntityID, entry.AccountID,
		entry.ActorID, entry.ActorName, entry.ActorRole, entry.RemoteAddr, entry.UserAgent,
		nullableStr(string(entry.PreviousValues)), nullableStr(string(entry.NewValues)),
		entry.Reason, marshalJSON(entry.Metadata),
		entry.PrevHash, entry.EntryHash, timeToStr(entry.CreatedAt),
	)
	if err != nil {
		return err
	}

	if s.auditMax > 0 {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM audit_log WHERE seq NOT IN (SELECT seq FROM audit_log ORDER BY seq DESC LIMIT ?)`,
			s.auditMax)
	}
	return err
}

func (s *Store) QueryAudit(ctx context.Context, accountID string, limit int) ([]domain.AuditLogEntry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_log`
	var args []any
	if accountID != "" {
		query += " WHERE account_id = ?"
		args = append(args, accountID)
	}
	query += " ORDER BY seq DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryAuditRows(ctx, query, args...)
}

func (s *Store) AuditChain(ctx context.Context) ([]domain.AuditLogEntry, error) {
	return s.queryAuditRows(ctx, `SELECT `+auditColumns+` FROM audit_log ORDER BY seq ASC`)
}

func (s *Store) queryAuditRows(ctx context.Context, query string, args ...any) ([]domain.AuditLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditLogEntry
	for rows.Next() {
		var e domain.AuditLogEntry
		var prev, next, md sql.NullString
		var created string
		if err := rows.Scan(&e.ID, &e.Action, &e.EntityType, &e.EntityID, &e.AccountID,
			&e.ActorID, &e.ActorName, &e.ActorRole, &e.RemoteAddr, &e.UserAgent,
			&prev, &next, &e.Reason, &md, &e.PrevHash, &e.EntryHash, &created); err != nil {
			return nil, err
		}
		if prev.Valid {
			e.PreviousValues = json.RawMessage(prev.String)
		}
		if next.Valid {
			e.NewValues = json.RawMessage(next.String)
		}
		if md.Valid && md.String != "" {
			var m domain.AuditMetadata
			if err := json.Unmarshal([]byte(md.String), &m); err == nil {
				e.Metadata = &m
			}
		}
		e.CreatedAt = strToTime(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ============================================================
// Reconciliations
// ============================================================

const recColumns = `id, account_id, period_start, period_end, statement_id, statement_date,
	book_balance, bank_balance, difference, status, matched_ids, unmatched_ids,
	performed_by, created_at`

func (s *Store) CreateReconciliation(ctx context.Context, rec *domain.ReconciliationRecord, audit *domain.AuditLogEntry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO reconciliations (`+recColumns+`)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			rec.ID, rec.AccountID, timeToStr(rec.PeriodStart), timeToStr(rec.PeriodEnd),
			rec.StatementID, timeToStr(rec.StatementDate),
			rec.BookBalance.String(), rec.BankBalance.String(), rec.Difference.String(), rec.Status,
			marshalJSON(rec.MatchedTransactionIDs), marshalJSON(rec.UnmatchedTransactionIDs),
			rec.PerformedBy, timeToStr(rec.CreatedAt),
		)
		if err != nil {
			return err
		}
		return s.appendAuditTx(ctx, tx, audit)
	})
}

func (s *Store) GetReconciliation(ctx context.Context, recID string) (*domain.ReconciliationRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recColumns+` FROM reconciliations WHERE id = ?`, recID)
	rec, err := scanReconciliation(row)
	if err == sql.ErrNoRows {
		return nil, &domain.ErrNotFound{Resource: "reconciliation", ID: recID}
	}
	return rec, err
}

func (s *Store) ListReconciliations(ctx context.Context, accountID string) ([]domain.ReconciliationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recColumns+` FROM reconciliations WHERE account_id = ? ORDER BY created_at DESC, rowid DESC`,
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReconciliationRecord
	for rows.Next() {
		rec, err := scanReconciliation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ============================================================
// Helpers
// ============================================================

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.TrustAccount, error) {
	var a domain.TrustAccount
	var cur, avail, res, min string
	var iolta int
	var tags sql.NullString
	var lastAct, closedAt sql.NullString
	var opened, created, updated string

	err := row.Scan(&a.ID, &a.ClientID, &a.MatterID, &a.Name, &a.AccountNumber,
		&a.BankName, &a.BankRouting, &a.AccountType, &a.Currency, &a.Status,
		&cur, &avail, &res, &min, &iolta, &a.Purpose, &tags, &a.Notes,
		&lastAct, &opened, &closedAt, &created, &updated)
	if err != nil {
		return nil, err
	}

	a.CurrentBalance = strToDec(cur)
	a.AvailableBalance = strToDec(avail)
	a.ReservedBalance = strToDec(res)
	a.MinimumBalance = strToDec(min)
	a.IOLTACompliant = iolta != 0
	if tags.Valid && tags.String != "" {
		json.Unmarshal([]byte(tags.String), &a.Tags)
	}
	a.LastActivityAt = strToTimePtr(lastAct)
	a.OpenedAt = strToTime(opened)
	a.ClosedAt = strToTimePtr(closedAt)
	a.CreatedAt = strToTime(created)
	a.UpdatedAt = strToTime(updated)
	return &a, nil
}

func scanTransaction(row rowScanner) (*domain.TrustTransaction, error) {
	var t domain.TrustTransaction
	var amount, running string
	var method sql.NullString
	var processed string

	err := row.Scan(&t.ID, &t.AccountID, &t.Type, &amount, &running,
		&t.Description, &t.Reference, &t.MatterID, &t.ClientID,
		&t.AuthorizedBy, &t.AuthorizationReason, &t.ProcessedBy,
		&t.CounterpartyAccountID, &t.BatchID, &method, &processed)
	if err != nil {
		return nil, err
	}

	t.Amount = strToDec(amount)
	t.RunningBalance = strToDec(running)
	if method.Valid && method.String != "" {
		var m domain.TransactionMethod
		if err := json.Unmarshal([]byte(method.String), &m); err == nil {
			t.Method = &m
		}
	}
	t.ProcessedAt = strToTime(processed)
	return &t, nil
}

func scanAlert(row rowScanner) (*domain.AccountAlert, error) {
	var a domain.AccountAlert
	var threshold, current, resolvedAt sql.NullString
	var active int
	var created string

	err := row.Scan(&a.ID, &a.AccountID, &a.Type, &a.Severity, &a.Title, &a.Message,
		&threshold, &current, &active, &created, &resolvedAt, &a.ResolvedBy, &a.ResolutionNotes)
	if err != nil {
		return nil, err
	}

	a.Threshold = strToDecPtr(threshold)
	a.CurrentValue = strToDecPtr(current)
	a.Active = active != 0
	a.CreatedAt = strToTime(created)
	a.ResolvedAt = strToTimePtr(resolvedAt)
	return &a, nil
}

func scanReconciliation(row rowScanner) (*domain.ReconciliationRecord, error) {
	var r domain.ReconciliationRecord
	var pStart, pEnd, stmtDate, created string
	var book, bank, diff string
	var matched, unmatched sql.NullString

	err := row.Scan(&r.ID, &r.AccountID, &pStart, &pEnd, &r.StatementID, &stmtDate,
		&book, &bank, &diff, &r.Status, &matched, &unmatched, &r.PerformedBy, &created)
	if err != nil {
		return nil, err
	}

	r.PeriodStart = strToTime(pStart)
	r.PeriodEnd = strToTime(pEnd)
	r.StatementDate = strToTime(stmtDate)
	r.BookBalance = strToDec(book)
	r.BankBalance = strToDec(bank)
	r.Difference = strToDec(diff)
	if matched.Valid && matched.String != "" {
		json.Unmarshal([]byte(matched.String), &r.MatchedTransactionIDs)
	}
	if unmatched.Valid && unmatched.String != "" {
		json.Unmarshal([]byte(unmatched.String), &r.UnmatchedTransactionIDs)
	}
	r.CreatedAt = strToTime(created)
	return &r, nil
}

func placeholders(n int) string {
	return "(" + strings.TrimRight(strings.Repeat("?,", n), ",") + ")"
}

func appendStrings(args []any, vals []string) []any {
	for _, v := range vals {
		args = append(args, v)
	}
	return args
}

// marshalJSON stores v as a JSON TEXT column, or NULL. A typed-nil
// pointer passes the interface nil check but marshals to "null"; store
// that as NULL too so it scans back as a nil pointer, not a zero struct.
func marshalJSON(v any) any {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return nil
	}
	return string(b)
}

func nullableStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timeToStr(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func timePtrToStr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return timeToStr(*t)
}

func strToTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func strToTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := strToTime(s.String)
	return &t
}

func strToDec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func decPtrToStr(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func strToDecPtr(s sql.NullString) *decimal.Decimal {
	if !s.Valid || s.String == "" {
		return nil
	}
	d := strToDec(s.String)
	return &d
}

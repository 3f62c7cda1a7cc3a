package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"ledgerly/internal/core"
	"ledgerly/internal/ledger"

	_ "modernc.org/sqlite"
)

// ErrNotFound is ledger.ErrNotFound, re-exported for callers of this package.
var ErrNotFound = ledger.ErrNotFound

// SQLiteRepository keeps a local copy of the ledger collections. Rows are
// read back in insertion order, which is the source order of the last
// snapshot written by ReplaceSnapshot.
type SQLiteRepository struct {
	db *sql.DB
}

var _ ledger.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const (
	selectExpenses = `SELECT id, account_id, title, amount, category, vendor, note, receipt_url, created_at FROM expenses ORDER BY rowid`
	selectRevenues = `SELECT id, account_id, title, amount, category, payer_name, note, created_at FROM revenues ORDER BY rowid`
	selectAccounts = `SELECT id, name, type, balance, currency, created_at FROM accounts ORDER BY rowid`

	insertExpense = `INSERT INTO expenses (id, account_id, title, amount, category, vendor, note, receipt_url, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	insertRevenue = `INSERT INTO revenues (id, account_id, title, amount, category, payer_name, note, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	insertAccount = `INSERT INTO accounts (id, name, type, balance, currency, created_at) VALUES (?, ?, ?, ?, ?, ?)`

	updateExpense = `UPDATE expenses SET account_id = ?, title = ?, amount = ?, category = ?, vendor = ?, note = ?, receipt_url = ?, created_at = ? WHERE id = ?`
	updateRevenue = `UPDATE revenues SET account_id = ?, title = ?, amount = ?, category = ?, payer_name = ?, note = ?, created_at = ? WHERE id = ?`
	updateAccount = `UPDATE accounts SET name = ?, type = ?, balance = ?, currency = ?, created_at = ? WHERE id = ?`
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.RawTransaction, error) {
	rows, err := r.db.QueryContext(ctx, selectExpenses)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.RawTransaction
	for rows.Next() {
		var t core.RawTransaction
		var amount string
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Title, &amount, &t.Category, &t.Vendor, &t.Note, &t.ReceiptURL, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if t.Amount, err = core.ParseAmount(amount); err != nil {
			return nil, fmt.Errorf("expense %s amount %q: %w", t.ID, amount, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListRevenues(ctx context.Context) ([]core.RawTransaction, error) {
	rows, err := r.db.QueryContext(ctx, selectRevenues)
	if err != nil {
		return nil, fmt.Errorf("query revenues: %w", err)
	}
	defer rows.Close()

	var out []core.RawTransaction
	for rows.Next() {
		var t core.RawTransaction
		var amount string
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Title, &amount, &t.Category, &t.PayerName, &t.Note, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan revenue: %w", err)
		}
		if t.Amount, err = core.ParseAmount(amount); err != nil {
			return nil, fmt.Errorf("revenue %s amount %q: %w", t.ID, amount, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, selectAccounts)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		var balance, typ string
		if err := rows.Scan(&a.ID, &a.Name, &typ, &balance, &a.Currency, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Type = core.AccountType(typ)
		if a.Balance, err = core.ParseAmount(balance); err != nil {
			return nil, fmt.Errorf("account %s balance %q: %w", a.ID, balance, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func insertTransaction(ctx context.Context, db execer, kind core.Kind, t core.RawTransaction) error {
	var err error
	switch kind {
	case core.Expense:
		_, err = db.ExecContext(ctx, insertExpense, t.ID, t.AccountID, t.Title, t.Amount.String(), t.Category, t.Vendor, t.Note, t.ReceiptURL, t.CreatedAt)
	case core.Revenue:
		_, err = db.ExecContext(ctx, insertRevenue, t.ID, t.AccountID, t.Title, t.Amount.String(), t.Category, t.PayerName, t.Note, t.CreatedAt)
	default:
		return core.ErrInvalidKind
	}
	if err != nil {
		return fmt.Errorf("insert %s %s: %w", kind, t.ID, err)
	}
	return nil
}

// Create inserts t, assigning a uuid when it has no id.
func (r *SQLiteRepository) Create(ctx context.Context, kind core.Kind, t core.RawTransaction) (core.RawTransaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := insertTransaction(ctx, r.db, kind, t); err != nil {
		return core.RawTransaction{}, err
	}
	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"type", kind,
		"amount", t.Amount.String())
	return t, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, kind core.Kind, t core.RawTransaction) (core.RawTransaction, error) {
	var res sql.Result
	var err error
	switch kind {
	case core.Expense:
		res, err = r.db.ExecContext(ctx, updateExpense, t.AccountID, t.Title, t.Amount.String(), t.Category, t.Vendor, t.Note, t.ReceiptURL, t.CreatedAt, t.ID)
	case core.Revenue:
		res, err = r.db.ExecContext(ctx, updateRevenue, t.AccountID, t.Title, t.Amount.String(), t.Category, t.PayerName, t.Note, t.CreatedAt, t.ID)
	default:
		return core.RawTransaction{}, core.ErrInvalidKind
	}
	if err != nil {
		return core.RawTransaction{}, fmt.Errorf("update %s %s: %w", kind, t.ID, err)
	}
	if err := requireOneRow(res, kind.String(), t.ID); err != nil {
		return core.RawTransaction{}, err
	}
	return t, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, kind core.Kind, id string) error {
	var query string
	switch kind {
	case core.Expense:
		query = `DELETE FROM expenses WHERE id = ?`
	case core.Revenue:
		query = `DELETE FROM revenues WHERE id = ?`
	default:
		return core.ErrInvalidKind
	}
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	return requireOneRow(res, kind.String(), id)
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, err := r.db.ExecContext(ctx, insertAccount, a.ID, a.Name, string(a.Type), a.Balance.String(), a.Currency, a.CreatedAt); err != nil {
		return core.Account{}, fmt.Errorf("insert account %s: %w", a.ID, err)
	}
	return a, nil
}

func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	res, err := r.db.ExecContext(ctx, updateAccount, a.Name, string(a.Type), a.Balance.String(), a.Currency, a.CreatedAt, a.ID)
	if err != nil {
		return core.Account{}, fmt.Errorf("update account %s: %w", a.ID, err)
	}
	if err := requireOneRow(res, "account", a.ID); err != nil {
		return core.Account{}, err
	}
	return a, nil
}

func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account %s: %w", id, err)
	}
	return requireOneRow(res, "account", id)
}

func requireOneRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", what, id, ErrNotFound)
	}
	return nil
}

// ReplaceSnapshot overwrites all three tables with snap inside a single
// transaction. Readers see either the previous snapshot or the new one.
// Records that failed to decode upstream are not copied.
func (r *SQLiteRepository) ReplaceSnapshot(ctx context.Context, snap *ledger.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"expenses", "revenues", "accounts"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	for _, t := range snap.Expenses {
		if t.Invalid != "" {
			continue
		}
		if err := insertTransaction(ctx, tx, core.Expense, t); err != nil {
			return err
		}
	}
	for _, t := range snap.Revenues {
		if t.Invalid != "" {
			continue
		}
		if err := insertTransaction(ctx, tx, core.Revenue, t); err != nil {
			return err
		}
	}
	for _, a := range snap.Accounts {
		if _, err := tx.ExecContext(ctx, insertAccount, a.ID, a.Name, string(a.Type), a.Balance.String(), a.Currency, a.CreatedAt); err != nil {
			return fmt.Errorf("insert account %s: %w", a.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// MirrorRun records one attempt to copy the backend into this database.
type MirrorRun struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Expenses   int
	Revenues   int
	Accounts   int
	Error      string
}

func (r *SQLiteRepository) RecordMirrorRun(ctx context.Context, run MirrorRun) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO mirror_runs (started_at, finished_at, expenses, revenues, accounts, error) VALUES (?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UTC().Format(time.RFC3339Nano), run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.Expenses, run.Revenues, run.Accounts, run.Error)
	if err != nil {
		return 0, fmt.Errorf("record mirror run: %w", err)
	}
	return res.LastInsertId()
}

// LastMirrorRun returns the most recent run, or ErrNotFound when none has
// been recorded.
func (r *SQLiteRepository) LastMirrorRun(ctx context.Context) (MirrorRun, error) {
	var run MirrorRun
	var started, finished string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, expenses, revenues, accounts, error FROM mirror_runs ORDER BY id DESC LIMIT 1`).
		Scan(&run.ID, &started, &finished, &run.Expenses, &run.Revenues, &run.Accounts, &run.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return MirrorRun{}, fmt.Errorf("mirror run: %w", ErrNotFound)
	}
	if err != nil {
		return MirrorRun{}, fmt.Errorf("query last mirror run: %w", err)
	}
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
	return run, nil
}

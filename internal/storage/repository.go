package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ledger/internal/core"
	"ledger/internal/ledger"

	_ "modernc.org/sqlite"
)

// createdAtLayout matches SQLite's CURRENT_TIMESTAMP text form.
const createdAtLayout = "2006-01-02 15:04:05"

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ ledger.Store = (*SQLiteRepository)(nil)

// sqliteDSN waits on a locked database instead of failing with SQLITE_BUSY,
// and uses WAL so an open read scope does not block appends.
func sqliteDSN(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return core.WrapStorage("ping", r.db.PingContext(ctx))
}

// Append implements ledger.TransactionWriter
func (r *SQLiteRepository) Append(ctx context.Context, t core.Transaction) (int64, error) {
	var note sql.NullString
	if t.Note != "" {
		note = sql.NullString{String: t.Note, Valid: true}
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (amount, kind, category, date, note, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.Amount, string(t.Kind), t.Category, t.Date.String(), note, r.now().UTC().Format(createdAtLayout))
	if err != nil {
		return 0, core.WrapStorage("insert transaction", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, core.WrapStorage("insert transaction id", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", id,
		"kind", t.Kind,
		"category", t.Category,
		"amount", t.Amount,
		"date", t.Date.String())

	return id, nil
}

// Get implements ledger.TransactionGetter
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, amount, kind, category, date, note, created_at FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, core.WrapStorage("get transaction", err)
	}
	return t, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, core.WrapStorage("count transactions", err)
	}
	return n, nil
}

// View implements ledger.StatsReader. All reads share one SQLite transaction
// so they observe the same rows; the transaction is always rolled back.
func (r *SQLiteRepository) View(ctx context.Context, fn func(ledger.Snapshot) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapStorage("begin read", err)
	}
	defer tx.Rollback()

	return fn(&sqliteSnapshot{tx: tx})
}

type sqliteSnapshot struct {
	tx *sql.Tx
}

func (s *sqliteSnapshot) SumAmount(ctx context.Context, f core.Filter, kind core.Kind) (float64, error) {
	where, args := whereClause(f)
	var total float64
	err := s.tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE kind = ? AND `+where,
		append([]any{string(kind)}, args...)...).Scan(&total)
	if err != nil {
		return 0, core.WrapStorage("sum "+string(kind), err)
	}
	return total, nil
}

func (s *sqliteSnapshot) CategoryTotals(ctx context.Context, f core.Filter, kind core.Kind) ([]core.CategoryAmount, error) {
	where, args := whereClause(f)
	rows, err := s.tx.QueryContext(ctx,
		`SELECT category, COALESCE(SUM(amount), 0) AS total
		FROM transactions
		WHERE kind = ? AND `+where+`
		GROUP BY category
		ORDER BY total DESC, category ASC`,
		append([]any{string(kind)}, args...)...)
	if err != nil {
		return nil, core.WrapStorage("category totals", err)
	}
	defer rows.Close()

	var out []core.CategoryAmount
	for rows.Next() {
		var ca core.CategoryAmount
		if err := rows.Scan(&ca.Name, &ca.Amount); err != nil {
			return nil, core.WrapStorage("scan category total", err)
		}
		out = append(out, ca)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapStorage("category totals", err)
	}
	return out, nil
}

func (s *sqliteSnapshot) List(ctx context.Context, f core.Filter) ([]core.Transaction, error) {
	where, args := whereClause(f)
	rows, err := s.tx.QueryContext(ctx,
		`SELECT id, amount, kind, category, date, note, created_at
		FROM transactions
		WHERE `+where+`
		ORDER BY date DESC, id DESC`, args...)
	if err != nil {
		return nil, core.WrapStorage("list transactions", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, core.WrapStorage("scan transaction", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapStorage("list transactions", err)
	}
	return out, nil
}

// whereClause translates a filter into a parameterised SQL predicate.
func whereClause(f core.Filter) (string, []any) {
	conds := []string{"date BETWEEN ? AND ?"}
	args := []any{f.StartDate.String(), f.EndDate.String()}

	if c := strings.TrimSpace(f.Category); c != "" {
		conds = append(conds, "category = ?")
		args = append(args, c)
	}
	if f.MinAmount != nil {
		conds = append(conds, "amount >= ?")
		args = append(args, *f.MinAmount)
	}
	if f.MaxAmount != nil {
		conds = append(conds, "amount <= ?")
		args = append(args, *f.MaxAmount)
	}

	return strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t         core.Transaction
		kind      string
		date      string
		note      sql.NullString
		createdAt sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Amount, &kind, &t.Category, &date, &note, &createdAt); err != nil {
		return core.Transaction{}, err
	}

	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse date %q of transaction %d: %w", date, t.ID, err)
	}
	t.Kind = core.Kind(kind)
	t.Date = d
	t.Note = note.String
	if createdAt.Valid {
		if ts, err := time.Parse(createdAtLayout, createdAt.String); err == nil {
			t.CreatedAt = ts
		}
	}
	return t, nil
}

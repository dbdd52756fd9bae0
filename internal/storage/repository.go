package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"expensepro/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("storage: not found")

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens the database, creating its directory, and runs
// pending migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
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

// CreateExpense stores e and returns it with its ID and creation time.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (date, description, amount_cents, category, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.Date.String(), e.Description, e.Amount.Cents, e.Category, e.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("read expense id: %w", err)
	}
	e.ID = id
	return e, nil
}

// ListExpenses returns one page of expenses matching q, q normalized.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, q core.ExpenseQuery) ([]core.Expense, error) {
	q = q.Normalize()
	where, args := expenseWhere(q)
	query := `SELECT id, date, description, amount_cents, category, created_at FROM expenses` +
		where + ` ORDER BY ` + expenseOrderBy(q) + ` LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, append(args, q.PageSize, q.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var items []core.Expense
	for rows.Next() {
		var (
			e               core.Expense
			date, createdAt string
		)
		if err := rows.Scan(&e.ID, &date, &e.Description, &e.Amount.Cents, &e.Category, &createdAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("expense %d: %w", e.ID, err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		items = append(items, e)
	}
	return items, rows.Err()
}

// CountExpenses counts every expense matching q.
func (r *SQLiteRepository) CountExpenses(ctx context.Context, q core.ExpenseQuery) (int, error) {
	where, args := expenseWhere(q.Normalize())
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

// SumExpenses totals every expense matching q.
func (r *SQLiteRepository) SumExpenses(ctx context.Context, q core.ExpenseQuery) (core.Money, error) {
	where, args := expenseWhere(q.Normalize())
	var cents int64
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount_cents), 0) FROM expenses`+where, args...).Scan(&cents); err != nil {
		return core.Money{}, fmt.Errorf("sum expenses: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// ListCategorySummaries returns one page of per-category aggregates.
func (r *SQLiteRepository) ListCategorySummaries(ctx context.Context, q core.CategoryQuery) ([]core.CategorySummary, error) {
	q = q.Normalize()
	where, args := categoryWhere(q)
	query := `SELECT category, COUNT(*) AS n, SUM(amount_cents) AS total FROM expenses` + where +
		` GROUP BY category ORDER BY ` + categoryOrderBy(q) + ` LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, append(args, q.PageSize, q.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var items []core.CategorySummary
	for rows.Next() {
		var c core.CategorySummary
		if err := rows.Scan(&c.Name, &c.Count, &c.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// CountCategories counts the distinct categories matching q.
func (r *SQLiteRepository) CountCategories(ctx context.Context, q core.CategoryQuery) (int, error) {
	where, args := categoryWhere(q.Normalize())
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT category) FROM expenses`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return n, nil
}

// CategoryNames lists every category in use, alphabetically. It feeds the
// category filter and the entry form.
func (r *SQLiteRepository) CategoryNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT category FROM expenses ORDER BY category COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("list category names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// SaveFilter remembers query as the last-used filter of view.
func (r *SQLiteRepository) SaveFilter(ctx context.Context, view, query string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO saved_filters (view, query, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(view) DO UPDATE SET query = excluded.query, updated_at = excluded.updated_at`,
		view, query, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save filter for %s: %w", view, err)
	}
	return nil
}

// LoadFilter returns the last-used filter of view, or ErrNotFound.
func (r *SQLiteRepository) LoadFilter(ctx context.Context, view string) (string, error) {
	var query string
	err := r.db.QueryRowContext(ctx, `SELECT query FROM saved_filters WHERE view = ?`, view).Scan(&query)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load filter for %s: %w", view, err)
	}
	return query, nil
}

var expenseSortColumns = map[string]string{
	core.SortExpenseDate:        "date",
	core.SortExpenseAmount:      "amount_cents",
	core.SortExpenseDescription: "description COLLATE NOCASE",
	core.SortExpenseCategory:    "category COLLATE NOCASE",
}

var categorySortColumns = map[string]string{
	core.SortCategoryName:  "category COLLATE NOCASE",
	core.SortCategoryTotal: "total",
	core.SortCategoryCount: "n",
}

func expenseWhere(q core.ExpenseQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if q.Search != "" {
		conds = append(conds, `(description LIKE ? ESCAPE '\' OR category LIKE ? ESCAPE '\')`)
		pattern := likePattern(q.Search)
		args = append(args, pattern, pattern)
	}
	if q.Category != "" {
		conds = append(conds, `category = ? COLLATE NOCASE`)
		args = append(args, q.Category)
	}
	if q.Year > 0 {
		conds = append(conds, `CAST(strftime('%Y', date) AS INTEGER) = ?`)
		args = append(args, q.Year)
	}
	if q.Month > 0 {
		conds = append(conds, `CAST(strftime('%m', date) AS INTEGER) = ?`)
		args = append(args, q.Month)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func categoryWhere(q core.CategoryQuery) (string, []any) {
	if q.Search == "" {
		return "", nil
	}
	return ` WHERE category LIKE ? ESCAPE '\'`, []any{likePattern(q.Search)}
}

// The column comes from a fixed map; the id tie-breaker keeps paging stable.
func expenseOrderBy(q core.ExpenseQuery) string {
	dir := direction(q.Desc)
	return expenseSortColumns[q.SortBy] + " " + dir + ", id " + dir
}

func categoryOrderBy(q core.CategoryQuery) string {
	dir := direction(q.Desc)
	return categorySortColumns[q.SortBy] + " " + dir + ", category " + dir
}

func direction(desc bool) string {
	if desc {
		return "DESC"
	}
	return "ASC"
}

func likePattern(s string) string {
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}

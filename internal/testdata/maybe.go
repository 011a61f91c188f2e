// Package testdata builds a sqlite stand-in for the Maybe database so the sync
// core can be exercised without postgres.
package testdata

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jask/finbridge/internal/database"
	"github.com/jask/finbridge/internal/target"
)

// Schema migration versions written for each generation.
const (
	CurrentVersion = "20250413141446"
	LegacyVersion  = "20250101000000"
)

// Maybe is a sqlite database laid out like one Maybe schema generation.
type Maybe struct {
	DB     *sql.DB
	Path   string
	Schema target.Schema
}

// NewMaybe creates the fixture database in dir.
func NewMaybe(ctx context.Context, dir string, schema target.Schema) (*Maybe, error) {
	path := filepath.Join(dir, "maybe-"+schema.Name+".db")
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}
	version := CurrentVersion
	if schema.Name == target.LegacySchema.Name {
		version = LegacyVersion
	}
	stmts := []string{
		`CREATE TABLE schema_migrations (version TEXT PRIMARY KEY)`,
		`INSERT INTO schema_migrations(version) VALUES ('20240101000000'), ('` + version + `')`,
		`CREATE TABLE families (id TEXT PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE accounts (id TEXT PRIMARY KEY, name TEXT NOT NULL, family_id TEXT NOT NULL, currency TEXT NOT NULL DEFAULT 'USD', accountable_type TEXT NOT NULL)`,
		`CREATE TABLE categories (id TEXT PRIMARY KEY, name TEXT NOT NULL, parent_id TEXT, color TEXT, family_id TEXT)`,
		fmt.Sprintf(`CREATE TABLE %s (
			id TEXT PRIMARY KEY, account_id TEXT NOT NULL, entryable_type TEXT NOT NULL, entryable_id TEXT NOT NULL,
			amount NUMERIC NOT NULL, currency TEXT NOT NULL, date TEXT NOT NULL, name TEXT NOT NULL,
			created_at DATETIME NOT NULL, updated_at DATETIME NOT NULL, plaid_id TEXT)`, schema.Entries),
		fmt.Sprintf(`CREATE TABLE %s (id TEXT PRIMARY KEY, category_id TEXT, created_at DATETIME NOT NULL, updated_at DATETIME NOT NULL)`, schema.Transactions),
		fmt.Sprintf(`CREATE TABLE %s (id TEXT PRIMARY KEY, created_at DATETIME NOT NULL, updated_at DATETIME NOT NULL)`, schema.Valuations),
		`CREATE TABLE budgets (id TEXT PRIMARY KEY, family_id TEXT NOT NULL, start_date TEXT NOT NULL, end_date TEXT NOT NULL, budgeted_spending NUMERIC, currency TEXT)`,
		`CREATE TABLE budget_categories (id TEXT PRIMARY KEY, budget_id TEXT NOT NULL, category_id TEXT NOT NULL, budgeted_spending NUMERIC, currency TEXT)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("fixture %q: %w", strings.Fields(stmt)[2], err)
		}
	}
	return &Maybe{DB: db, Path: path, Schema: schema}, nil
}

// Store returns a fresh adapter over the fixture, as a sync pass would open.
func (m *Maybe) Store() *target.Store { return target.New(m.DB, target.SQLite) }

// Open returns a store over a new handle to the fixture file. Closing the
// store leaves the fixture usable.
func (m *Maybe) Open() (*target.Store, error) {
	db, err := database.Open(m.Path)
	if err != nil {
		return nil, err
	}
	return target.New(db, target.SQLite), nil
}

func (m *Maybe) Close() error { return m.DB.Close() }

func (m *Maybe) AddFamily(ctx context.Context, id, name string) error {
	_, err := m.DB.ExecContext(ctx, `INSERT INTO families(id, name) VALUES(?, ?)`, id, name)
	return err
}

func (m *Maybe) AddAccount(ctx context.Context, a target.Account) error {
	if a.Currency == "" {
		a.Currency = "USD"
	}
	_, err := m.DB.ExecContext(ctx, `INSERT INTO accounts(id, name, family_id, currency, accountable_type) VALUES(?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.FamilyID, a.Currency, a.AccountableType)
	return err
}

func (m *Maybe) AddCategory(ctx context.Context, c target.Category) error {
	_, err := m.DB.ExecContext(ctx, `INSERT INTO categories(id, name, parent_id, color) VALUES(?, ?, ?, ?)`,
		c.ID, c.Name, c.ParentID, c.Color)
	return err
}

// AddBudget creates a budget covering month with a limit per category id.
func (m *Maybe) AddBudget(ctx context.Context, id, familyID string, month time.Time, limits map[string]decimal.Decimal) error {
	start := target.MonthStart(month)
	end := start.AddDate(0, 1, -1)
	if _, err := m.DB.ExecContext(ctx, `INSERT INTO budgets(id, family_id, start_date, end_date, currency) VALUES(?, ?, ?, ?, 'USD')`,
		id, familyID, start.Format("2006-01-02"), end.Format("2006-01-02")); err != nil {
		return err
	}
	for categoryID, limit := range limits {
		if _, err := m.DB.ExecContext(ctx, `INSERT INTO budget_categories(id, budget_id, category_id, budgeted_spending, currency) VALUES(?, ?, ?, ?, 'USD')`,
			uuid.NewString(), id, categoryID, limit); err != nil {
			return err
		}
	}
	return nil
}

// AddSpend writes a categorised ledger transaction with a positive (outflow)
// amount, as if entered in Maybe directly.
func (m *Maybe) AddSpend(ctx context.Context, accountID, categoryID string, amount decimal.Decimal, day time.Time) error {
	txID := uuid.NewString()
	if _, err := m.DB.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s(id, category_id, created_at, updated_at) VALUES(?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`, m.Schema.Transactions),
		txID, categoryID); err != nil {
		return err
	}
	_, err := m.DB.ExecContext(ctx, fmt.Sprintf(`
	INSERT INTO %s(id, account_id, entryable_type, entryable_id, amount, currency, date, name, created_at, updated_at)
	VALUES(?, ?, ?, ?, ?, 'USD', ?, 'manual', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`, m.Schema.Entries),
		uuid.NewString(), accountID, m.Schema.TransactionKind, txID, amount, day.UTC().Format("2006-01-02"))
	return err
}

// Entry is a ledger row as stored.
type Entry struct {
	ID          string
	AccountID   string
	Kind        string
	EntryableID string
	Amount      decimal.Decimal
	Currency    string
	Date        string
	Name        string
	ExternalID  *string
	CategoryID  *string
}

// Entries lists ledger rows of one kind for an account ordered by date.
func (m *Maybe) Entries(ctx context.Context, accountID, kind string) ([]Entry, error) {
	rows, err := m.DB.QueryContext(ctx, fmt.Sprintf(`
	SELECT e.id, e.account_id, e.entryable_type, e.entryable_id, e.amount, e.currency, e.date, e.name, e.plaid_id, t.category_id
	FROM %s e LEFT JOIN %s t ON t.id = e.entryable_id
	WHERE e.account_id = ? AND e.entryable_type = ?
	ORDER BY e.date, e.id`, m.Schema.Entries, m.Schema.Transactions), accountID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var ext, cat sql.NullString
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Kind, &e.EntryableID, &e.Amount, &e.Currency, &e.Date, &e.Name, &ext, &cat); err != nil {
			return nil, err
		}
		if ext.Valid {
			e.ExternalID = &ext.String
		}
		if cat.Valid {
			e.CategoryID = &cat.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Seed adds one family with a checking and an investment account and a small
// category tree.
func (m *Maybe) Seed(ctx context.Context) error {
	if err := m.AddFamily(ctx, "fam-1", "Household"); err != nil {
		return err
	}
	accounts := []target.Account{
		{ID: "acct-checking", Name: "Checking", FamilyID: "fam-1", AccountableType: target.Depository},
		{ID: "acct-invest", Name: "401k", FamilyID: "fam-1", AccountableType: target.Investment},
		{ID: "acct-property", Name: "House", FamilyID: "fam-1", AccountableType: "Property"},
	}
	for _, a := range accounts {
		if err := m.AddAccount(ctx, a); err != nil {
			return err
		}
	}
	food := "cat-food"
	cats := []target.Category{
		{ID: food, Name: "Food"},
		{ID: "cat-coffee", Name: "Coffee", ParentID: &food},
		{ID: "cat-fees", Name: "Fees"},
		{ID: "cat-income", Name: "Income"},
	}
	for _, c := range cats {
		if err := m.AddCategory(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

package target

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Budget is a Maybe budget covering one calendar month.
type Budget struct {
	ID       string
	FamilyID string
}

// BudgetCategory is the spending limit for one category within a budget.
type BudgetCategory struct {
	ID           string
	BudgetID     string
	CategoryID   string
	CategoryName string
	Limit        decimal.Decimal
}

// MonthStart returns the first day of t's month in UTC.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ActiveBudgets returns budgets whose date range covers month.
func (s *Store) ActiveBudgets(ctx context.Context, month time.Time) ([]Budget, error) {
	day := MonthStart(month).Format(dateLayout)
	rows, err := s.db.QueryContext(ctx, s.rebind(`
	SELECT id, family_id FROM budgets
	WHERE start_date <= ? AND end_date >= ?
	ORDER BY start_date, id`), day, day)
	if err != nil {
		return nil, storeErr("active budgets", err)
	}
	defer rows.Close()
	var out []Budget
	for rows.Next() {
		var b Budget
		if err := rows.Scan(&b.ID, &b.FamilyID); err != nil {
			return nil, storeErr("active budgets", err)
		}
		out = append(out, b)
	}
	return out, storeErr("active budgets", rows.Err())
}

// BudgetCategories returns the categories of a budget ordered by name.
func (s *Store) BudgetCategories(ctx context.Context, budgetID string) ([]BudgetCategory, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
	SELECT bc.id, bc.budget_id, bc.category_id, c.name, COALESCE(bc.budgeted_spending, 0)
	FROM budget_categories bc
	JOIN categories c ON bc.category_id = c.id
	WHERE bc.budget_id = ?
	ORDER BY c.name`), budgetID)
	if err != nil {
		return nil, storeErr("budget categories", err)
	}
	defer rows.Close()
	var out []BudgetCategory
	for rows.Next() {
		var bc BudgetCategory
		if err := rows.Scan(&bc.ID, &bc.BudgetID, &bc.CategoryID, &bc.CategoryName, &bc.Limit); err != nil {
			return nil, storeErr("budget categories", err)
		}
		out = append(out, bc)
	}
	return out, storeErr("budget categories", rows.Err())
}

// CategorySpend sums positive ledger transaction amounts (outflows) in the
// category dated within [from, to). An empty familyID spans every family.
func (s *Store) CategorySpend(ctx context.Context, familyID, categoryID string, from, to time.Time) (decimal.Decimal, error) {
	schema, err := s.Schema(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	q := fmt.Sprintf(`
	SELECT COALESCE(SUM(e.amount), 0)
	FROM %s e
	JOIN %s t ON e.entryable_id = t.id
	JOIN accounts a ON e.account_id = a.id
	WHERE e.entryable_type = ?
	 AND t.category_id = ?
	 AND e.date >= ? AND e.date < ?
	 AND e.amount > 0`, schema.Entries, schema.Transactions)
	args := []interface{}{schema.TransactionKind, categoryID, from.UTC().Format(dateLayout), to.UTC().Format(dateLayout)}
	if familyID != "" {
		q += ` AND a.family_id = ?`
		args = append(args, familyID)
	}
	var spent decimal.Decimal
	if err := s.db.QueryRowContext(ctx, s.rebind(q), args...).Scan(&spent); err != nil {
		return decimal.Zero, storeErr("category spend", err)
	}
	return spent, nil
}

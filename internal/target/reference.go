package target

import (
	"context"
	"database/sql"
)

// Account classifications (Maybe accountable_type) this module syncs.
const (
	Depository = "Depository"
	CreditCard = "CreditCard"
	Loan       = "Loan"
	Investment = "Investment"
)

// Supported reports whether accounts of the classification can be linked.
func Supported(accountableType string) bool {
	switch accountableType {
	case Depository, CreditCard, Loan, Investment:
		return true
	}
	return false
}

// Category is a Maybe category.
type Category struct {
	ID       string
	Name     string
	ParentID *string
	Color    *string
}

// Account is a Maybe account.
type Account struct {
	ID              string
	Name            string
	FamilyID        string
	Currency        string
	AccountableType string
}

func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, parent_id, color FROM categories ORDER BY name`)
	if err != nil {
		return nil, storeErr("list categories", err)
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		var parent, color sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &parent, &color); err != nil {
			return nil, storeErr("list categories", err)
		}
		if parent.Valid {
			p := parent.String
			c.ParentID = &p
		}
		if color.Valid {
			col := color.String
			c.Color = &col
		}
		out = append(out, c)
	}
	return out, storeErr("list categories", rows.Err())
}

// ListAccounts returns accounts, optionally limited to one family.
func (s *Store) ListAccounts(ctx context.Context, familyID string) ([]Account, error) {
	q := `SELECT id, name, family_id, currency, accountable_type FROM accounts`
	var args []interface{}
	if familyID != "" {
		q += ` WHERE family_id = ?`
		args = append(args, familyID)
	}
	q += ` ORDER BY name`
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, storeErr("list accounts", err)
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Name, &a.FamilyID, &a.Currency, &a.AccountableType); err != nil {
			return nil, storeErr("list accounts", err)
		}
		out = append(out, a)
	}
	return out, storeErr("list accounts", rows.Err())
}

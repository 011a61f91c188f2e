package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// AccountID derives the stable local id for an account from its kind and
// external identifier.
func AccountID(kind, identifier string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("account:"+kind+":"+identifier)).String()
}

// AccountRepo handles cached accounts.
type AccountRepo struct {
	db *sql.DB
}

func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

// Upsert inserts or refreshes an account keyed by (identifier, kind) and
// returns its local id.
func (r *AccountRepo) Upsert(ctx context.Context, a Account) (string, error) {
	if a.ID == "" {
		a.ID = AccountID(a.Kind, a.Identifier)
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO accounts(id, kind, identifier, display_name, currency, org_name, accountable_type, family_id, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT(identifier, kind) DO UPDATE SET
	 display_name=excluded.display_name,
	 currency=excluded.currency,
	 org_name=excluded.org_name,
	 accountable_type=excluded.accountable_type,
	 family_id=excluded.family_id,
	 updated_at=CURRENT_TIMESTAMP;
	`, a.ID, a.Kind, a.Identifier, a.DisplayName, a.Currency, a.OrgName, a.AccountableType, a.FamilyID)
	if err != nil {
		return "", err
	}
	var id string
	err = r.db.QueryRowContext(ctx, `SELECT id FROM accounts WHERE identifier = ? AND kind = ?`, a.Identifier, a.Kind).Scan(&id)
	return id, err
}

const accountColumns = `id, kind, identifier, display_name, currency, org_name, accountable_type, family_id, created_at, updated_at`

// Get returns nil when the account does not exist.
func (r *AccountRepo) Get(ctx context.Context, id string) (*Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// List returns accounts of one kind, or all kinds when kind is empty.
func (r *AccountRepo) List(ctx context.Context, kind string) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	var args []interface{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY kind, display_name`
	return r.query(ctx, query, args...)
}

// ListUnlinked returns accounts of kind that are not part of any linkage.
func (r *AccountRepo) ListUnlinked(ctx context.Context, kind string) ([]Account, error) {
	return r.query(ctx, `
	SELECT `+accountColumns+` FROM accounts a
	WHERE a.kind = ?
	 AND NOT EXISTS (SELECT 1 FROM linkages l WHERE l.source_account_id = a.id OR l.target_account_id = a.id)
	ORDER BY a.display_name`, kind)
}

func (r *AccountRepo) query(ctx context.Context, query string, args ...interface{}) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row scanner) (Account, error) {
	var a Account
	var org, accountable, family sql.NullString
	if err := row.Scan(&a.ID, &a.Kind, &a.Identifier, &a.DisplayName, &a.Currency,
		&org, &accountable, &family, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Account{}, err
	}
	a.OrgName = nullString(org)
	a.AccountableType = nullString(accountable)
	a.FamilyID = nullString(family)
	return a, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

package target

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// ExistingTransaction is a ledger transaction previously imported from the
// source, keyed by its external id (stored in entries.plaid_id).
type ExistingTransaction struct {
	ExternalID    string
	EntryID       string
	TransactionID string
	CategoryID    *string
}

// NewTransaction is a source transaction to write. Amount uses the source
// convention: positive is an inflow to the account holder.
type NewTransaction struct {
	ExternalID string
	Name       string
	Amount     decimal.Decimal
	Posted     time.Time
}

// LedgerAmount converts a source amount to the ledger's sign convention.
// This is the only place the sign flips.
func LedgerAmount(source decimal.Decimal) decimal.Decimal { return source.Neg() }

// ExistingTransactions lists imported transactions for an account dated on or
// after since.
func (s *Store) ExistingTransactions(ctx context.Context, accountID string, since time.Time) ([]ExistingTransaction, error) {
	schema, err := s.Schema(ctx)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
	SELECT e.plaid_id, e.id, e.entryable_id, t.category_id
	FROM %s e
	LEFT JOIN %s t ON e.entryable_id = t.id
	WHERE e.account_id = ?
	 AND e.plaid_id IS NOT NULL
	 AND e.date >= ?`, schema.Entries, schema.Transactions)
	rows, err := s.db.QueryContext(ctx, s.rebind(q), accountID, since.UTC().Format(dateLayout))
	if err != nil {
		return nil, storeErr("existing transactions", err)
	}
	defer rows.Close()
	var out []ExistingTransaction
	for rows.Next() {
		var et ExistingTransaction
		var category sql.NullString
		if err := rows.Scan(&et.ExternalID, &et.EntryID, &et.TransactionID, &category); err != nil {
			return nil, storeErr("existing transactions", err)
		}
		if category.Valid && category.String != "" {
			c := category.String
			et.CategoryID = &c
		}
		out = append(out, et)
	}
	return out, storeErr("existing transactions", rows.Err())
}

// CreateTransaction writes the transaction row and its ledger entry
// atomically and returns the entry id.
func (s *Store) CreateTransaction(ctx context.Context, accountID string, txn NewTransaction, currency string, categoryID *string) (string, error) {
	schema, err := s.Schema(ctx)
	if err != nil {
		return "", err
	}
	entryID := uuid.NewString()
	transactionID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", storeErr("create transaction", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(fmt.Sprintf(`
	INSERT INTO %s (id, category_id, created_at, updated_at)
	VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`, schema.Transactions)),
		transactionID, categoryID); err != nil {
		_ = tx.Rollback()
		return "", storeErr("create transaction", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(fmt.Sprintf(`
	INSERT INTO %s (id, account_id, entryable_type, entryable_id, amount, currency, date, name, created_at, updated_at, plaid_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, ?)`, schema.Entries)),
		entryID, accountID, schema.TransactionKind, transactionID, LedgerAmount(txn.Amount), currency,
		txn.Posted.UTC().Format(dateLayout), txn.Name, txn.ExternalID); err != nil {
		_ = tx.Rollback()
		return "", storeErr("create entry", err)
	}
	if err := tx.Commit(); err != nil {
		return "", storeErr("create transaction", err)
	}
	return entryID, nil
}

// UpdateTransactionCategory sets the category of a transaction row. It
// reports false without error when no row was updated.
func (s *Store) UpdateTransactionCategory(ctx context.Context, transactionID, categoryID string) (bool, error) {
	if transactionID == "" || categoryID == "" {
		return false, nil
	}
	schema, err := s.Schema(ctx)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, s.rebind(fmt.Sprintf(`
	UPDATE %s SET category_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, schema.Transactions)),
		categoryID, transactionID)
	if err != nil {
		return false, storeErr("update category", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("update category", err)
	}
	return n > 0, nil
}

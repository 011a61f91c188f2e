package target

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ValuationName is the entry name Maybe shows for imported balances.
const ValuationName = "Balance Update"

// Balance is a point-in-time account balance.
type Balance struct {
	Amount   decimal.Decimal
	Date     time.Time
	Currency string
}

// UpsertBalanceValuation records a balance snapshot for the account on the
// balance date. When a valuation entry already exists for that date its id is
// returned with created=false and nothing is written. A zero Date is a no-op.
func (s *Store) UpsertBalanceValuation(ctx context.Context, accountID string, b Balance) (string, bool, error) {
	if b.Date.IsZero() {
		return "", false, nil
	}
	schema, err := s.Schema(ctx)
	if err != nil {
		return "", false, err
	}
	day := b.Date.UTC().Format(dateLayout)
	currency := b.Currency
	if currency == "" {
		currency = "USD"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, storeErr("upsert valuation", err)
	}
	var existing string
	err = tx.QueryRowContext(ctx, s.rebind(fmt.Sprintf(`
	SELECT id FROM %s WHERE account_id = ? AND date = ? AND entryable_type = ? LIMIT 1`, schema.Entries)),
		accountID, day, schema.ValuationKind).Scan(&existing)
	switch {
	case err == nil:
		_ = tx.Rollback()
		return existing, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		_ = tx.Rollback()
		return "", false, storeErr("find valuation", err)
	}

	entryID := uuid.NewString()
	valuationID := uuid.NewString()
	if _, err := tx.ExecContext(ctx, s.rebind(fmt.Sprintf(`
	INSERT INTO %s (id, created_at, updated_at) VALUES (?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`, schema.Valuations)),
		valuationID); err != nil {
		_ = tx.Rollback()
		return "", false, storeErr("create valuation", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(fmt.Sprintf(`
	INSERT INTO %s (id, account_id, entryable_type, entryable_id, amount, currency, date, name, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`, schema.Entries)),
		entryID, accountID, schema.ValuationKind, valuationID, b.Amount, currency, day, ValuationName); err != nil {
		_ = tx.Rollback()
		return "", false, storeErr("create valuation entry", err)
	}
	if err := tx.Commit(); err != nil {
		return "", false, storeErr("upsert valuation", err)
	}
	return entryID, true, nil
}

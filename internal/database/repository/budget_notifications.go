package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// BudgetNotificationRepo tracks budget threshold notifications.
type BudgetNotificationRepo struct{ db *sql.DB }

func NewBudgetNotificationRepo(db *sql.DB) *BudgetNotificationRepo {
	return &BudgetNotificationRepo{db: db}
}

const budgetNotificationColumns = `id, budget_id, category_id, month, budget_amount, spent_amount, notification_sent, sent_at, created_at, updated_at`

// Get returns nil when no row exists for the triple.
func (r *BudgetNotificationRepo) Get(ctx context.Context, budgetID, categoryID, month string) (*BudgetNotification, error) {
	n, err := scanBudgetNotification(r.db.QueryRowContext(ctx, `
	SELECT `+budgetNotificationColumns+` FROM budget_notifications
	WHERE budget_id = ? AND category_id = ? AND month = ?`, budgetID, categoryID, month))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

// Track records the latest amounts for the triple and returns the stored row.
// The sent flag and timestamp are never touched here.
func (r *BudgetNotificationRepo) Track(ctx context.Context, n BudgetNotification) (BudgetNotification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO budget_notifications(id, budget_id, category_id, month, budget_amount, spent_amount, notification_sent, created_at, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, 0, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT(budget_id, category_id, month) DO UPDATE SET
	 budget_amount=excluded.budget_amount,
	 spent_amount=excluded.spent_amount,
	 updated_at=CURRENT_TIMESTAMP`,
		n.ID, n.BudgetID, n.CategoryID, n.Month, n.BudgetAmount.String(), n.SpentAmount.String())
	if err != nil {
		return BudgetNotification{}, err
	}
	stored, err := r.Get(ctx, n.BudgetID, n.CategoryID, n.Month)
	if err != nil {
		return BudgetNotification{}, err
	}
	if stored == nil {
		return BudgetNotification{}, sql.ErrNoRows
	}
	return *stored, nil
}

// MarkSent flips notification_sent to true. It reports false when the row was
// already marked or does not exist.
func (r *BudgetNotificationRepo) MarkSent(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
	UPDATE budget_notifications SET notification_sent = 1, sent_at = ?, updated_at=CURRENT_TIMESTAMP
	WHERE id = ? AND notification_sent = 0`, at.UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListMonth returns all tracked rows for a month.
func (r *BudgetNotificationRepo) ListMonth(ctx context.Context, month string) ([]BudgetNotification, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT `+budgetNotificationColumns+` FROM budget_notifications
	WHERE month = ? ORDER BY budget_id, category_id`, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BudgetNotification
	for rows.Next() {
		n, err := scanBudgetNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanBudgetNotification(row scanner) (BudgetNotification, error) {
	var n BudgetNotification
	var sentAt sql.NullTime
	if err := row.Scan(&n.ID, &n.BudgetID, &n.CategoryID, &n.Month, &n.BudgetAmount, &n.SpentAmount,
		&n.NotificationSent, &sentAt, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return BudgetNotification{}, err
	}
	if sentAt.Valid {
		t := sentAt.Time
		n.SentAt = &t
	}
	return n, nil
}

func nowUTC() time.Time { return time.Now().UTC().Truncate(time.Second) }

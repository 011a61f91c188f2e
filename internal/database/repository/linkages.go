package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrAccountLinked is returned when an account already belongs to a linkage.
var ErrAccountLinked = errors.New("account already linked")

// LinkageRepo handles linkages.
type LinkageRepo struct {
	db *sql.DB
}

func NewLinkageRepo(db *sql.DB) *LinkageRepo { return &LinkageRepo{db: db} }

// Create pairs a source and a target account. Each account may appear in at
// most one linkage.
func (r *LinkageRepo) Create(ctx context.Context, sourceAccountID, targetAccountID string) (Linkage, error) {
	var inUse int
	if err := r.db.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM linkages
	WHERE source_account_id IN (?, ?) OR target_account_id IN (?, ?)`,
		sourceAccountID, targetAccountID, sourceAccountID, targetAccountID).Scan(&inUse); err != nil {
		return Linkage{}, err
	}
	if inUse > 0 {
		return Linkage{}, ErrAccountLinked
	}
	l := Linkage{
		ID:              uuid.NewString(),
		SourceAccountID: sourceAccountID,
		TargetAccountID: targetAccountID,
		Enabled:         true,
		SyncStatus:      StatusInitialized,
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO linkages(id, source_account_id, target_account_id, enabled, sync_status, created_at, updated_at)
	VALUES(?, ?, ?, 1, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		l.ID, l.SourceAccountID, l.TargetAccountID, l.SyncStatus)
	if err != nil {
		return Linkage{}, fmt.Errorf("insert linkage: %w", err)
	}
	return l, nil
}

const linkageColumns = `id, source_account_id, target_account_id, enabled, sync_status, last_sync, last_error, created_at, updated_at`

// Get returns nil when the linkage does not exist.
func (r *LinkageRepo) Get(ctx context.Context, id string) (*Linkage, error) {
	l, err := scanLinkage(r.db.QueryRowContext(ctx, `SELECT `+linkageColumns+` FROM linkages WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

func (r *LinkageRepo) List(ctx context.Context) ([]Linkage, error) {
	return r.query(ctx, `SELECT `+linkageColumns+` FROM linkages ORDER BY created_at, id`)
}

func (r *LinkageRepo) ListEnabled(ctx context.Context) ([]Linkage, error) {
	return r.query(ctx, `SELECT `+linkageColumns+` FROM linkages WHERE enabled = 1 ORDER BY created_at, id`)
}

func (r *LinkageRepo) SetEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE linkages SET enabled = ?, updated_at=CURRENT_TIMESTAMP WHERE id = ?`, enabled, id)
	return err
}

func (r *LinkageRepo) SetStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE linkages SET sync_status = ?, updated_at=CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	return err
}

// MarkComplete records a successful pass and clears the last error.
func (r *LinkageRepo) MarkComplete(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE linkages SET sync_status = ?, last_sync = ?, last_error = NULL, updated_at=CURRENT_TIMESTAMP
	WHERE id = ?`, StatusComplete, at.UTC(), id)
	return err
}

// MarkError records a failed pass with a human-readable message.
func (r *LinkageRepo) MarkError(ctx context.Context, id, msg string) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE linkages SET sync_status = ?, last_error = ?, updated_at=CURRENT_TIMESTAMP
	WHERE id = ?`, StatusError, msg, id)
	return err
}

func (r *LinkageRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM linkages WHERE id = ?`, id)
	return err
}

func (r *LinkageRepo) query(ctx context.Context, query string, args ...interface{}) ([]Linkage, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Linkage
	for rows.Next() {
		l, err := scanLinkage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLinkage(row scanner) (Linkage, error) {
	var l Linkage
	var lastSync sql.NullTime
	var lastErr sql.NullString
	if err := row.Scan(&l.ID, &l.SourceAccountID, &l.TargetAccountID, &l.Enabled, &l.SyncStatus,
		&lastSync, &lastErr, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return Linkage{}, err
	}
	if lastSync.Valid {
		t := lastSync.Time
		l.LastSync = &t
	}
	l.LastError = nullString(lastErr)
	return l, nil
}

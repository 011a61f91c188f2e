package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// Setting keys read by the sync core.
const (
	SettingSimpleFINUsername = "simplefin_username"
	SettingSimpleFINPassword = "simplefin_password"
	SettingMaybeHost         = "maybe_postgres_host"
	SettingMaybePort         = "maybe_postgres_port"
	SettingMaybeDB           = "maybe_postgres_db"
	SettingMaybeUser         = "maybe_postgres_user"
	SettingMaybePassword     = "maybe_postgres_password"
	SettingLookbackDays      = "lookback_days"
	SettingSchedule          = "synchronization_schedule"
)

// SettingRepo handles key/value settings.
type SettingRepo struct{ db *sql.DB }

func NewSettingRepo(db *sql.DB) *SettingRepo { return &SettingRepo{db: db} }

// Get returns the trimmed value for key, or "" when unset.
func (r *SettingRepo) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(v), nil
}

// Set writes value for key, creating the row if needed.
func (r *SettingRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO settings(key, display_name, value, created_at, updated_at)
	VALUES(?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=CURRENT_TIMESTAMP`,
		key, key, value)
	return err
}

// Ensure inserts s only when its key is absent.
func (r *SettingRepo) Ensure(ctx context.Context, s Setting) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO settings(key, display_name, value, created_at, updated_at)
	VALUES(?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT(key) DO NOTHING`, s.Key, s.DisplayName, s.Value)
	return err
}

func (r *SettingRepo) List(ctx context.Context) ([]Setting, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, display_name, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.DisplayName, &s.Value); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

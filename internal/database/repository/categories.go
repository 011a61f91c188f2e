package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// CategoryRepo handles the local category mirror.
type CategoryRepo struct {
	db *sql.DB
}

func NewCategoryRepo(db *sql.DB) *CategoryRepo {
	return &CategoryRepo{db: db}
}

func (r *CategoryRepo) Upsert(ctx context.Context, c Category) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO categories(id, name, parent_id, color, synced_at)
	VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET
	 name=excluded.name,
	 parent_id=excluded.parent_id,
	 color=excluded.color,
	 synced_at=CURRENT_TIMESTAMP;
	`, c.ID, c.Name, c.ParentID, c.Color)
	return err
}

// Sync replaces the mirror with cats in one transaction: rows are upserted and
// categories no longer present upstream are removed. It returns the number of
// categories written.
func (r *CategoryRepo) Sync(ctx context.Context, cats []Category) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	keep := make([]interface{}, 0, len(cats))
	for _, c := range cats {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO categories(id, name, parent_id, color, synced_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
		 name=excluded.name, parent_id=excluded.parent_id, color=excluded.color, synced_at=CURRENT_TIMESTAMP;
		`, c.ID, c.Name, c.ParentID, c.Color); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		keep = append(keep, c.ID)
	}
	del := `DELETE FROM categories`
	if len(keep) > 0 {
		del += ` WHERE id NOT IN (?` + strings.Repeat(`, ?`, len(keep)-1) + `)`
	}
	if _, err := tx.ExecContext(ctx, del, keep...); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	return len(cats), tx.Commit()
}

func (r *CategoryRepo) List(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, parent_id, color FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get returns nil when the category does not exist.
func (r *CategoryRepo) Get(ctx context.Context, id string) (*Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx, `SELECT id, name, parent_id, color FROM categories WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func scanCategory(row scanner) (Category, error) {
	var c Category
	var parent, color sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &parent, &color); err != nil {
		return Category{}, err
	}
	c.ParentID = nullString(parent)
	c.Color = nullString(color)
	return c, nil
}

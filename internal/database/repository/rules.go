package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/jask/finbridge/internal/rules"
)

// RuleRepo stores rules with their ordered conditions and actions.
type RuleRepo struct{ db *sql.DB }

func NewRuleRepo(db *sql.DB) *RuleRepo { return &RuleRepo{db: db} }

// Create inserts a rule with its conditions and actions and returns its id.
func (r *RuleRepo) Create(ctx context.Context, rule rules.Rule) (string, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	created := rule.CreatedAt.UTC()
	if rule.CreatedAt.IsZero() {
		created = nowUTC()
	}
	if _, err := tx.ExecContext(ctx, `
	INSERT INTO rules(id, name, enabled, created_at, updated_at) VALUES(?, ?, ?, ?, ?)`,
		rule.ID, rule.Name, rule.Enabled, created, created); err != nil {
		_ = tx.Rollback()
		return "", fmt.Errorf("insert rule: %w", err)
	}
	for i, c := range rule.Conditions {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO rule_conditions(id, rule_id, field, operator, value, position) VALUES(?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), rule.ID, c.Field, c.Operator, c.Value, i); err != nil {
			_ = tx.Rollback()
			return "", fmt.Errorf("insert rule condition: %w", err)
		}
	}
	for i, a := range rule.Actions {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO rule_actions(id, rule_id, action_type, value, position) VALUES(?, ?, ?, ?, ?)`,
			uuid.NewString(), rule.ID, a.Type, a.Value, i); err != nil {
			_ = tx.Rollback()
			return "", fmt.Errorf("insert rule action: %w", err)
		}
	}
	return rule.ID, tx.Commit()
}

// List returns every rule ordered by creation time, ties broken by id.
// Conditions and actions keep their stored position order.
func (r *RuleRepo) List(ctx context.Context) ([]rules.Rule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, enabled, created_at FROM rules ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	var out []rules.Rule
	index := map[string]int{}
	for rows.Next() {
		var rule rules.Rule
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Enabled, &rule.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		index[rule.ID] = len(out)
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	crows, err := r.db.QueryContext(ctx, `SELECT id, rule_id, field, operator, value FROM rule_conditions ORDER BY rule_id, position`)
	if err != nil {
		return nil, err
	}
	for crows.Next() {
		var c rules.Condition
		var ruleID string
		if err := crows.Scan(&c.ID, &ruleID, &c.Field, &c.Operator, &c.Value); err != nil {
			crows.Close()
			return nil, err
		}
		if i, ok := index[ruleID]; ok {
			out[i].Conditions = append(out[i].Conditions, c)
		}
	}
	if err := crows.Err(); err != nil {
		crows.Close()
		return nil, err
	}
	crows.Close()

	arows, err := r.db.QueryContext(ctx, `SELECT id, rule_id, action_type, value FROM rule_actions ORDER BY rule_id, position`)
	if err != nil {
		return nil, err
	}
	defer arows.Close()
	for arows.Next() {
		var a rules.Action
		var ruleID string
		if err := arows.Scan(&a.ID, &ruleID, &a.Type, &a.Value); err != nil {
			return nil, err
		}
		if i, ok := index[ruleID]; ok {
			out[i].Actions = append(out[i].Actions, a)
		}
	}
	return out, arows.Err()
}

func (r *RuleRepo) SetEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE rules SET enabled = ?, updated_at=CURRENT_TIMESTAMP WHERE id = ?`, enabled, id)
	return err
}

func (r *RuleRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	return err
}

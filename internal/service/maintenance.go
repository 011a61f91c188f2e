package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jask/finbridge/internal/database"
)

// MaintenanceService houses destructive local-data actions.
type MaintenanceService struct {
	DB *sql.DB
}

// Reset wipes cached accounts, linkages, mirrored categories and budget
// notification state. Rules and settings are kept. The ledger is never
// touched.
func (s *MaintenanceService) Reset(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("maintenance: db not configured")
	}
	if err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		tables := []string{
			"budget_notifications",
			"linkages",
			"accounts",
			"categories",
		}
		for _, t := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("reset table %s: %w", t, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	_, _ = s.DB.ExecContext(ctx, "VACUUM")
	return nil
}

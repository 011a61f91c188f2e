package database

import (
	"context"
	"database/sql"

	"github.com/jask/finbridge/internal/database/repository"
)

// DefaultSettings are the settings rows every database starts with.
var DefaultSettings = []repository.Setting{
	{Key: repository.SettingSimpleFINUsername, DisplayName: "SimpleFIN Username"},
	{Key: repository.SettingSimpleFINPassword, DisplayName: "SimpleFIN Password"},
	{Key: repository.SettingMaybeHost, DisplayName: "Maybe Postgres Host"},
	{Key: repository.SettingMaybePort, DisplayName: "Maybe Postgres Port", Value: "5432"},
	{Key: repository.SettingMaybeDB, DisplayName: "Maybe Postgres Database"},
	{Key: repository.SettingMaybeUser, DisplayName: "Maybe Postgres User"},
	{Key: repository.SettingMaybePassword, DisplayName: "Maybe Postgres Password"},
	{Key: repository.SettingLookbackDays, DisplayName: "Lookback Days", Value: "7"},
	{Key: repository.SettingSchedule, DisplayName: "Sync Schedule"},
}

// SeedDefaults ensures baseline settings exist for new databases.
// Existing values are never overwritten, so it is safe to run on every startup.
func SeedDefaults(ctx context.Context, db *sql.DB) error {
	settings := repository.NewSettingRepo(db)
	for _, s := range DefaultSettings {
		if err := settings.Ensure(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

package repository_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jask/finbridge/internal/database"
	"github.com/jask/finbridge/internal/database/repository"
	"github.com/jask/finbridge/internal/rules"
)

func openDB(t *testing.T) (*sql.DB, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	dbPath := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, database.RunMigrations(dbPath))
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, ctx
}

func strPtr(s string) *string { return &s }

func TestAccountUpsertAndUnlinked(t *testing.T) {
	t.Parallel()
	db, ctx := openDB(t)
	accounts := repository.NewAccountRepo(db)
	linkages := repository.NewLinkageRepo(db)

	srcID, err := accounts.Upsert(ctx, repository.Account{Kind: repository.KindSimpleFIN, Identifier: "ACT-1", DisplayName: "Checking", Currency: "USD", OrgName: strPtr("Bank")})
	require.NoError(t, err)
	require.Equal(t, repository.AccountID(repository.KindSimpleFIN, "ACT-1"), srcID)

	// refresh keeps the id
	again, err := accounts.Upsert(ctx, repository.Account{Kind: repository.KindSimpleFIN, Identifier: "ACT-1", DisplayName: "Everyday Checking", Currency: "USD"})
	require.NoError(t, err)
	require.Equal(t, srcID, again)

	tgtID, err := accounts.Upsert(ctx, repository.Account{Kind: repository.KindMaybe, Identifier: "m-1", DisplayName: "Checking", AccountableType: strPtr("Depository")})
	require.NoError(t, err)

	got, err := accounts.Get(ctx, srcID)
	require.NoError(t, err)
	require.Equal(t, "Everyday Checking", got.DisplayName)
	require.Nil(t, got.OrgName)

	missing, err := accounts.Get(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)

	unlinked, err := accounts.ListUnlinked(ctx, repository.KindMaybe)
	require.NoError(t, err)
	require.Len(t, unlinked, 1)

	_, err = linkages.Create(ctx, srcID, tgtID)
	require.NoError(t, err)

	unlinked, err = accounts.ListUnlinked(ctx, repository.KindMaybe)
	require.NoError(t, err)
	require.Empty(t, unlinked)
}

func TestLinkageLifecycle(t *testing.T) {
	t.Parallel()
	db, ctx := openDB(t)
	accounts := repository.NewAccountRepo(db)
	linkages := repository.NewLinkageRepo(db)

	src, err := accounts.Upsert(ctx, repository.Account{Kind: repository.KindSimpleFIN, Identifier: "s", DisplayName: "S"})
	require.NoError(t, err)
	tgt, err := accounts.Upsert(ctx, repository.Account{Kind: repository.KindMaybe, Identifier: "t", DisplayName: "T"})
	require.NoError(t, err)
	other, err := accounts.Upsert(ctx, repository.Account{Kind: repository.KindMaybe, Identifier: "t2", DisplayName: "T2"})
	require.NoError(t, err)

	l, err := linkages.Create(ctx, src, tgt)
	require.NoError(t, err)
	require.Equal(t, repository.StatusInitialized, l.SyncStatus)

	_, err = linkages.Create(ctx, src, other)
	require.ErrorIs(t, err, repository.ErrAccountLinked)

	require.NoError(t, linkages.MarkError(ctx, l.ID, "boom"))
	got, err := linkages.Get(ctx, l.ID)
	require.NoError(t, err)
	require.Equal(t, repository.StatusError, got.SyncStatus)
	require.Equal(t, "boom", *got.LastError)
	require.Nil(t, got.LastSync)

	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, linkages.MarkComplete(ctx, l.ID, at))
	got, err = linkages.Get(ctx, l.ID)
	require.NoError(t, err)
	require.Equal(t, repository.StatusComplete, got.SyncStatus)
	require.Nil(t, got.LastError)
	require.True(t, at.Equal(*got.LastSync))

	require.NoError(t, linkages.SetEnabled(ctx, l.ID, false))
	enabled, err := linkages.ListEnabled(ctx)
	require.NoError(t, err)
	require.Empty(t, enabled)
}

func TestSettingsSeedAndOverride(t *testing.T) {
	t.Parallel()
	db, ctx := openDB(t)
	require.NoError(t, database.SeedDefaults(ctx, db))
	settings := repository.NewSettingRepo(db)

	v, err := settings.Get(ctx, repository.SettingLookbackDays)
	require.NoError(t, err)
	require.Equal(t, "7", v)

	require.NoError(t, settings.Set(ctx, repository.SettingLookbackDays, " 14 "))
	require.NoError(t, database.SeedDefaults(ctx, db))
	v, err = settings.Get(ctx, repository.SettingLookbackDays)
	require.NoError(t, err)
	require.Equal(t, "14", v)

	v, err = settings.Get(ctx, "unknown")
	require.NoError(t, err)
	require.Empty(t, v)
}

func TestCategorySyncRemovesStale(t *testing.T) {
	t.Parallel()
	db, ctx := openDB(t)
	cats := repository.NewCategoryRepo(db)

	n, err := cats.Sync(ctx, []repository.Category{{ID: "c1", Name: "Food"}, {ID: "c2", Name: "Rent"}})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = cats.Sync(ctx, []repository.Category{{ID: "c2", Name: "Housing", Color: strPtr("#fff")}})
	require.NoError(t, err)

	list, err := cats.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Housing", list[0].Name)
	require.Equal(t, "#fff", *list[0].Color)
}

func TestRuleRepoOrdering(t *testing.T) {
	t.Parallel()
	db, ctx := openDB(t)
	repo := repository.NewRuleRepo(db)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := repo.Create(ctx, rules.Rule{
		Name:       "second", Enabled: true, CreatedAt: base.Add(time.Hour),
		Conditions: []rules.Condition{{Field: rules.FieldAmount, Operator: rules.OpLessThan, Value: "0"}},
		Actions:    []rules.Action{{Type: rules.ActionSetCategory, Value: "B"}},
	})
	require.NoError(t, err)
	_, err = repo.Create(ctx, rules.Rule{
		Name: "first", Enabled: true, CreatedAt: base,
		Conditions: []rules.Condition{
			{Field: rules.FieldName, Operator: rules.OpContains, Value: "coffee"},
			{Field: rules.FieldAmount, Operator: rules.OpLessThan, Value: "10"},
		},
		Actions: []rules.Action{{Type: rules.ActionSetCategory, Value: "A"}},
	})
	require.NoError(t, err)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "first", list[0].Name)
	require.Len(t, list[0].Conditions, 2)
	require.Equal(t, rules.FieldName, list[0].Conditions[0].Field)
	require.Equal(t, "second", list[1].Name)

	res := rules.Apply(list, rules.NewView("COFFEE", "-4.50"))
	require.Equal(t, "B", *res.CategoryID())
}

func TestBudgetNotificationSentNeverResets(t *testing.T) {
	t.Parallel()
	db, ctx := openDB(t)
	repo := repository.NewBudgetNotificationRepo(db)

	n, err := repo.Track(ctx, repository.BudgetNotification{
		BudgetID:     "b1", CategoryID: "c1", Month: "2026-03-01",
		BudgetAmount: decimal.RequireFromString("100"), SpentAmount: decimal.RequireFromString("120.50"),
	})
	require.NoError(t, err)
	require.False(t, n.NotificationSent)
	require.True(t, n.SpentAmount.Equal(decimal.RequireFromString("120.5")))

	ok, err := repo.MarkSent(ctx, n.ID, time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.MarkSent(ctx, n.ID, time.Now())
	require.NoError(t, err)
	require.False(t, ok)

	n2, err := repo.Track(ctx, repository.BudgetNotification{
		BudgetID:     "b1", CategoryID: "c1", Month: "2026-03-01",
		BudgetAmount: decimal.RequireFromString("100"), SpentAmount: decimal.RequireFromString("80"),
	})
	require.NoError(t, err)
	require.Equal(t, n.ID, n2.ID)
	require.True(t, n2.NotificationSent)
	require.NotNil(t, n2.SentAt)
}

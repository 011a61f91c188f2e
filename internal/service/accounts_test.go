package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jask/finbridge/internal/database/repository"
	"github.com/jask/finbridge/internal/simplefin"
)

func newAccountService(h *harness) *AccountService {
	return &AccountService{
		Accounts:   h.svc.Accounts,
		Linkages:   h.svc.Linkages,
		OpenSource: h.svc.OpenSource,
		OpenTarget: h.svc.OpenTarget,
		Logger:     h.svc.Logger,
	}
}

func TestDiscoverCachesSupportedAccounts(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.source.accounts = []simplefin.Account{
		{ID: "ACT-SAV", Name: "Savings", Currency: "USD", Org: simplefin.Org{Name: "Ally"}, Balance: decimal.NewFromInt(10)},
		{ID: "ACT-CHK", Name: "Checking", Currency: "USD", Org: simplefin.Org{Name: "Chase"}},
	}
	res, err := newAccountService(h).Discover(h.ctx)
	require.NoError(t, err)
	require.Equal(t, 2, res.Source)
	require.Equal(t, 2, res.Target)

	src, err := h.svc.Accounts.List(h.ctx, repository.KindSimpleFIN)
	require.NoError(t, err)
	require.Len(t, src, 3)

	sav, err := h.svc.Accounts.Get(h.ctx, repository.AccountID(repository.KindSimpleFIN, "ACT-SAV"))
	require.NoError(t, err)
	require.Equal(t, "Ally - Savings", sav.DisplayName)
	require.Equal(t, "Ally", *sav.OrgName)

	dst, err := h.svc.Accounts.List(h.ctx, repository.KindMaybe)
	require.NoError(t, err)
	require.Len(t, dst, 2)
}

func TestSuggestLinkages(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	svc := newAccountService(h)
	_, err := h.local.ExecContext(h.ctx, `DELETE FROM linkages`)
	require.NoError(t, err)
	_, err = h.svc.Accounts.Upsert(h.ctx, repository.Account{Kind: repository.KindSimpleFIN, Identifier: "ACT-X", DisplayName: "Amex - Platinum", Currency: "USD"})
	require.NoError(t, err)

	got, err := svc.SuggestLinkages(h.ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	pairs := map[string]string{}
	for _, sg := range got {
		require.GreaterOrEqual(t, sg.Score, minSuggestScore)
		pairs[sg.Source.Identifier] = sg.Target.Identifier
	}
	require.Equal(t, "acct-checking", pairs["ACT-CHK"])
	require.Equal(t, "acct-invest", pairs["ACT-401K"])
}

func TestLink(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	svc := newAccountService(h)
	_, err := h.local.ExecContext(h.ctx, `DELETE FROM linkages`)
	require.NoError(t, err)

	src := repository.AccountID(repository.KindSimpleFIN, "ACT-CHK")
	dst := repository.AccountID(repository.KindMaybe, "acct-checking")

	_, err = svc.Link(h.ctx, dst, src)
	require.True(t, IsNotFound(err))

	l, err := svc.Link(h.ctx, src, dst)
	require.NoError(t, err)
	require.Equal(t, repository.StatusInitialized, l.SyncStatus)
	require.True(t, l.Enabled)

	_, err = svc.Link(h.ctx, src, repository.AccountID(repository.KindMaybe, "acct-invest"))
	require.ErrorIs(t, err, repository.ErrAccountLinked)
}

func TestNameSimilarity(t *testing.T) {
	t.Parallel()
	require.Equal(t, 1.0, nameSimilarity("Chase - Checking", "checking"))
	require.Less(t, nameSimilarity("Amex - Platinum", "Checking"), minSuggestScore)
	require.Zero(t, similarity("", ""))
}

func TestMaintenanceReset(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.addRule(t, "coffee", "coffee", "cat-coffee", syncNow)
	require.NoError(t, (&MaintenanceService{DB: h.local}).Reset(h.ctx))

	for _, table := range []string{"linkages", "accounts", "categories", "budget_notifications"} {
		var n int
		require.NoError(t, h.local.QueryRowContext(h.ctx, `SELECT COUNT(*) FROM `+table).Scan(&n))
		require.Zero(t, n, table)
	}
	rs, err := h.svc.Rules.List(h.ctx)
	require.NoError(t, err)
	require.Len(t, rs, 1)

	require.Error(t, (&MaintenanceService{}).Reset(h.ctx))
}

package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/jask/finbridge/internal/budget"
	"github.com/jask/finbridge/internal/config"
	"github.com/jask/finbridge/internal/database/repository"
	"github.com/jask/finbridge/internal/notify"
	"github.com/jask/finbridge/internal/rules"
	"github.com/jask/finbridge/internal/simplefin"
	"github.com/jask/finbridge/internal/target"
)

// Source is the bridge API as used by sync passes and discovery.
type Source interface {
	FetchAccountTransactions(ctx context.Context, accountID string, since time.Time) (simplefin.AccountSnapshot, error)
	ListAccounts(ctx context.Context) ([]simplefin.Account, error)
}

// SourceOpener builds a source client from current settings.
type SourceOpener func(ctx context.Context) (Source, error)

// TargetOpener connects to the ledger. The returned store is closed by the
// caller at the end of the pass.
type TargetOpener func(ctx context.Context) (*target.Store, error)

const defaultLookbackDays = 7

// SyncService runs reconciliation passes for linkages.
type SyncService struct {
	Linkages      *repository.LinkageRepo
	Accounts      *repository.AccountRepo
	Categories    *repository.CategoryRepo
	Rules         *repository.RuleRepo
	Settings      *repository.SettingRepo
	Notifications *repository.BudgetNotificationRepo

	OpenSource SourceOpener
	OpenTarget TargetOpener
	Notifier   *notify.Dispatcher
	Guard      *RunGuard
	Logger     *log.Logger
	Config     config.SyncConfig

	Now func() time.Time

	guardOnce sync.Once
}

// Details counts what one pass did.
type Details struct {
	TransactionsFetched   int    `json:"transactions_fetched"`
	TransactionsCreated   int    `json:"transactions_created"`
	TransactionsUpdated   int    `json:"transactions_updated"`
	TransactionsSkipped   int    `json:"transactions_skipped"`
	TransactionsUnchanged int    `json:"transactions_unchanged"`
	CategoriesMirrored    int    `json:"categories_mirrored"`
	ValuationID           string `json:"valuation_id,omitempty"`
	ValuationCreated      bool   `json:"valuation_created"`
	BudgetsNotified       int    `json:"budgets_notified"`
}

// Processed is the number of ledger writes made for source transactions.
func (d Details) Processed() int { return d.TransactionsCreated + d.TransactionsUpdated }

// Result is the outcome of SyncLinkage. Err is set when Success is false and
// the pass was attempted or rejected.
type Result struct {
	Success bool
	Message string
	Details *Details
	Err     error
}

// SyncLinkage runs one pass for the linkage. Failures are reported in the
// result, never as a panic or a returned error.
func (s *SyncService) SyncLinkage(ctx context.Context, id string) Result {
	l, err := s.Linkages.Get(ctx, id)
	if err != nil {
		return Result{Message: "Failed to load linkage", Err: fmt.Errorf("load linkage %s: %w", id, err)}
	}
	if l == nil {
		err := &NotFoundError{Kind: "linkage", ID: id}
		return Result{Message: err.Error(), Err: err}
	}
	if !l.Enabled {
		return Result{Message: "Linkage is not enabled"}
	}
	if !s.guard().TryAcquire(id) {
		return Result{Message: "Sync already in progress", Err: ErrSyncInProgress}
	}
	defer s.guard().Release(id)

	logger := s.logger().With("linkage", id)
	timeout := s.Config.PassTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	passCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	// status writes and notifications must outlive an expired pass deadline
	bookkeeping := context.WithoutCancel(ctx)

	if err := s.Linkages.SetStatus(bookkeeping, id, repository.StatusRunning); err != nil {
		return Result{Message: "Failed to update linkage status", Err: err}
	}
	s.Notifier.Notify(bookkeeping, notify.SyncStarted, notify.Payload{LinkageID: id})
	logger.Info("sync started")

	p, err := s.recoverPass(passCtx, logger, *l)
	if err == nil && passCtx.Err() != nil {
		err = passCtx.Err()
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("sync pass exceeded %s: %w", timeout, err)
		}
		if markErr := s.Linkages.MarkError(bookkeeping, id, err.Error()); markErr != nil {
			logger.Error("record sync error", "err", markErr)
		}
		s.Notifier.Notify(bookkeeping, notify.SyncError, notify.Payload{
			LinkageID:     id,
			SourceAccount: p.sourceName,
			TargetAccount: p.targetName,
			Error:         err.Error(),
		})
		logger.Error("sync failed", "err", err)
		return Result{Message: "Sync failed: " + err.Error(), Details: &p.details, Err: err}
	}

	if err := s.Linkages.MarkComplete(bookkeeping, id, s.now()); err != nil {
		logger.Error("record sync completion", "err", err)
		return Result{Message: "Failed to record sync completion", Details: &p.details, Err: err}
	}
	processed := p.details.Processed()
	s.Notifier.Notify(bookkeeping, notify.SyncSuccess, notify.Payload{
		LinkageID:             id,
		SourceAccount:         p.sourceName,
		TargetAccount:         p.targetName,
		TransactionsProcessed: &processed,
	})
	logger.Info("sync complete", "created", p.details.TransactionsCreated, "updated", p.details.TransactionsUpdated,
		"skipped", p.details.TransactionsSkipped)
	return Result{
		Success: true,
		Message: fmt.Sprintf("Sync completed: %d transactions processed", processed),
		Details: &p.details,
	}
}

type pass struct {
	sourceName string
	targetName string
	details    Details
}

func (s *SyncService) runPass(ctx context.Context, logger *log.Logger, l repository.Linkage) (pass, error) {
	var p pass
	src, err := s.account(ctx, l.SourceAccountID)
	if err != nil {
		return p, err
	}
	dst, err := s.account(ctx, l.TargetAccountID)
	if err != nil {
		return p, err
	}
	p.sourceName, p.targetName = src.DisplayName, dst.DisplayName

	source, err := s.OpenSource(ctx)
	if err != nil {
		return p, fmt.Errorf("source client: %w", err)
	}
	store, err := s.OpenTarget(ctx)
	if err != nil {
		return p, fmt.Errorf("target store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close target store", "err", err)
		}
	}()

	mirrored, err := s.mirrorCategories(ctx, store)
	if err != nil {
		return p, err
	}
	p.details.CategoriesMirrored = mirrored

	rs, err := s.Rules.List(ctx)
	if err != nil {
		return p, fmt.Errorf("load rules: %w", err)
	}

	now := s.now()
	since := now.AddDate(0, 0, -s.lookbackDays(ctx))

	existing, err := store.ExistingTransactions(ctx, dst.Identifier, since)
	if err != nil {
		return p, err
	}
	index := make(map[string]target.ExistingTransaction, len(existing))
	for _, et := range existing {
		index[et.ExternalID] = et
	}

	snap, err := source.FetchAccountTransactions(ctx, src.Identifier, since)
	if err != nil {
		return p, err
	}
	p.details.TransactionsFetched = len(snap.Transactions)

	currency := firstNonEmpty(snap.Currency, src.Currency, dst.Currency, "USD")
	classification := deref(dst.AccountableType)

	for _, txn := range snap.Transactions {
		res := rules.Apply(rs, rules.View{Description: txn.Description, Amount: txn.Amount})
		categoryID := res.CategoryID()

		if et, ok := index[txn.ID]; ok {
			if categoryID == nil || (et.CategoryID != nil && *et.CategoryID == *categoryID) {
				p.details.TransactionsUnchanged++
				continue
			}
			updated, err := store.UpdateTransactionCategory(ctx, et.TransactionID, *categoryID)
			if err != nil {
				return p, err
			}
			if !updated {
				logger.Warn("category update matched no rows", "external_id", txn.ID, "transaction", et.TransactionID)
				p.details.TransactionsUnchanged++
				continue
			}
			p.details.TransactionsUpdated++
			continue
		}

		if !shouldSync(classification, txn) {
			p.details.TransactionsSkipped++
			continue
		}
		entryID, err := store.CreateTransaction(ctx, dst.Identifier, target.NewTransaction{
			ExternalID: txn.ID,
			Name:       txn.Description,
			Amount:     txn.Amount,
			Posted:     txn.PostedAt(),
		}, currency, categoryID)
		if err != nil {
			return p, err
		}
		index[txn.ID] = target.ExistingTransaction{ExternalID: txn.ID, EntryID: entryID, CategoryID: categoryID}
		p.details.TransactionsCreated++
	}

	if classification == target.Investment {
		id, created, err := store.UpsertBalanceValuation(ctx, dst.Identifier, target.Balance{
			Amount:   snap.Balance,
			Date:     snap.BalanceDate,
			Currency: currency,
		})
		if err != nil {
			return p, err
		}
		p.details.ValuationID, p.details.ValuationCreated = id, created
	}

	if s.Notifications != nil {
		ev := budget.NewEvaluator(store, s.Notifications, s.Notifier, logger)
		sent, err := ev.CheckBudgets(ctx, now)
		if err != nil {
			logger.Warn("budget check failed", "err", err)
		}
		p.details.BudgetsNotified = len(sent)
	}
	return p, nil
}

// recoverPass runs the pass, converting a panic into a pass error.
func (s *SyncService) recoverPass(ctx context.Context, logger *log.Logger, l repository.Linkage) (p pass, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("sync pass panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("sync pass panicked: %v", r)
		}
	}()
	return s.runPass(ctx, logger, l)
}

func (s *SyncService) account(ctx context.Context, id string) (repository.Account, error) {
	a, err := s.Accounts.Get(ctx, id)
	if err != nil {
		return repository.Account{}, fmt.Errorf("load account %s: %w", id, err)
	}
	if a == nil {
		return repository.Account{}, &NotFoundError{Kind: "account", ID: id}
	}
	return *a, nil
}

func (s *SyncService) mirrorCategories(ctx context.Context, store *target.Store) (int, error) {
	cats, err := store.ListCategories(ctx)
	if err != nil {
		return 0, err
	}
	local := make([]repository.Category, 0, len(cats))
	for _, c := range cats {
		local = append(local, repository.Category{ID: c.ID, Name: c.Name, ParentID: c.ParentID, Color: c.Color})
	}
	n, err := s.Categories.Sync(ctx, local)
	if err != nil {
		return 0, fmt.Errorf("mirror categories: %w", err)
	}
	return n, nil
}

func (s *SyncService) lookbackDays(ctx context.Context) int {
	fallback := s.Config.LookbackDays
	if fallback <= 0 {
		fallback = defaultLookbackDays
	}
	if s.Settings == nil {
		return fallback
	}
	raw, err := s.Settings.Get(ctx, repository.SettingLookbackDays)
	if err != nil || raw == "" {
		return fallback
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		s.logger().Warn("ignoring invalid lookback_days", "value", raw)
		return fallback
	}
	return days
}

// LinkageResult pairs a linkage id with its pass outcome.
type LinkageResult struct {
	LinkageID string
	Result    Result
}

// Summary aggregates a RunAllSyncs call.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Results   []LinkageResult
}

// RunAllSyncs runs a pass for every enabled linkage, sync.concurrency at a
// time. Results keep the linkage listing order.
func (s *SyncService) RunAllSyncs(ctx context.Context) (Summary, error) {
	linkages, err := s.Linkages.ListEnabled(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list linkages: %w", err)
	}
	limit := s.Config.Concurrency
	if limit <= 0 {
		limit = 1
	}
	results := make([]LinkageResult, len(linkages))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, l := range linkages {
		g.Go(func() error {
			results[i] = LinkageResult{LinkageID: l.ID, Result: s.SyncLinkage(ctx, l.ID)}
			return nil
		})
	}
	_ = g.Wait()

	sum := Summary{Total: len(results), Results: results}
	for _, r := range results {
		if r.Result.Success {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
	}
	return sum, nil
}

// Status is the polling view of a linkage.
type Status struct {
	LinkageID  string
	SyncStatus string
	LastSync   *time.Time
	LastError  *string
	Running    bool
}

// SyncStatus reads the linkage state without side effects.
func (s *SyncService) SyncStatus(ctx context.Context, id string) (Status, error) {
	l, err := s.Linkages.Get(ctx, id)
	if err != nil {
		return Status{}, fmt.Errorf("load linkage %s: %w", id, err)
	}
	if l == nil {
		return Status{}, &NotFoundError{Kind: "linkage", ID: id}
	}
	return Status{
		LinkageID:  l.ID,
		SyncStatus: l.SyncStatus,
		LastSync:   l.LastSync,
		LastError:  l.LastError,
		Running:    s.guard().Running(id),
	}, nil
}

func (s *SyncService) guard() *RunGuard {
	s.guardOnce.Do(func() {
		if s.Guard == nil {
			s.Guard = NewRunGuard()
		}
	})
	return s.Guard
}

func (s *SyncService) logger() *log.Logger {
	if s.Logger == nil {
		return log.Default()
	}
	return s.Logger
}

func (s *SyncService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

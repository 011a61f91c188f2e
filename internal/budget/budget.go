// Package budget compares category spending in the ledger against monthly
// budget limits and sends one notification per overrun.
package budget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/jask/finbridge/internal/database/repository"
	"github.com/jask/finbridge/internal/notify"
	"github.com/jask/finbridge/internal/target"
)

const monthLayout = "2006-01-02"

// checkMu serialises CheckBudgets across evaluators so that concurrent passes
// cannot both see a category unsent and deliver it twice.
var checkMu sync.Mutex

// Ledger is the part of the target store the evaluator reads.
type Ledger interface {
	ActiveBudgets(ctx context.Context, month time.Time) ([]target.Budget, error)
	BudgetCategories(ctx context.Context, budgetID string) ([]target.BudgetCategory, error)
	CategorySpend(ctx context.Context, familyID, categoryID string, from, to time.Time) (decimal.Decimal, error)
}

// Tracker persists notification state per budget, category and month.
type Tracker interface {
	Get(ctx context.Context, budgetID, categoryID, month string) (*repository.BudgetNotification, error)
	Track(ctx context.Context, n repository.BudgetNotification) (repository.BudgetNotification, error)
	MarkSent(ctx context.Context, id string, at time.Time) (bool, error)
}

// Notifier delivers a budget overrun.
type Notifier interface {
	NotifyBudgetExceeded(ctx context.Context, o notify.BudgetOverrun) error
}

// Evaluator checks budgets for one ledger.
type Evaluator struct {
	ledger   Ledger
	tracker  Tracker
	notifier Notifier
	logger   *log.Logger
	now      func() time.Time
}

func NewEvaluator(ledger Ledger, tracker Tracker, notifier Notifier, logger *log.Logger) *Evaluator {
	if logger == nil {
		logger = log.Default()
	}
	return &Evaluator{ledger: ledger, tracker: tracker, notifier: notifier, logger: logger, now: time.Now}
}

// MonthKey is the tracking key for the month containing day.
func MonthKey(day time.Time) string { return target.MonthStart(day).Format(monthLayout) }

// CheckBudgets evaluates every budget covering day's month and notifies each
// category that went over its limit, at most once per month. A failed
// notification leaves the category unsent so the next pass retries it.
// Calls are serialised process-wide.
func (e *Evaluator) CheckBudgets(ctx context.Context, day time.Time) ([]notify.BudgetOverrun, error) {
	checkMu.Lock()
	defer checkMu.Unlock()

	month := target.MonthStart(day)
	key := month.Format(monthLayout)
	budgets, err := e.ledger.ActiveBudgets(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("active budgets: %w", err)
	}

	var sent []notify.BudgetOverrun
	for _, b := range budgets {
		cats, err := e.ledger.BudgetCategories(ctx, b.ID)
		if err != nil {
			return sent, fmt.Errorf("budget %s categories: %w", b.ID, err)
		}
		for _, bc := range cats {
			if !bc.Limit.IsPositive() {
				continue
			}
			spent, err := e.ledger.CategorySpend(ctx, b.FamilyID, bc.CategoryID, month, month.AddDate(0, 1, 0))
			if err != nil {
				return sent, fmt.Errorf("spend for %s: %w", bc.CategoryName, err)
			}
			row, err := e.tracker.Track(ctx, repository.BudgetNotification{
				BudgetID:     b.ID,
				CategoryID:   bc.CategoryID,
				Month:        key,
				BudgetAmount: bc.Limit,
				SpentAmount:  spent,
			})
			if err != nil {
				return sent, fmt.Errorf("track %s: %w", bc.CategoryName, err)
			}
			if !spent.GreaterThan(bc.Limit) || row.NotificationSent {
				continue
			}

			overrun := notify.NewBudgetOverrun(b.ID, bc.CategoryID, bc.CategoryName, key, bc.Limit, spent)
			if err := e.notifier.NotifyBudgetExceeded(ctx, overrun); err != nil {
				e.logger.Warn("budget notification failed", "budget", b.ID, "category", bc.CategoryName, "err", err)
				continue
			}
			marked, err := e.tracker.MarkSent(ctx, row.ID, e.now())
			if err != nil {
				return sent, fmt.Errorf("mark %s notified: %w", bc.CategoryName, err)
			}
			if !marked {
				e.logger.Warn("budget notification already recorded", "budget", b.ID, "category", bc.CategoryName)
				continue
			}
			e.logger.Info("budget exceeded", "budget", b.ID, "category", bc.CategoryName,
				"spent", spent.StringFixed(2), "limit", bc.Limit.StringFixed(2))
			sent = append(sent, overrun)
		}
	}
	return sent, nil
}

// StatusNoBudget and StatusSuccess are the Status.Status values.
const (
	StatusNoBudget = "no_budget"
	StatusSuccess  = "success"
)

// CategoryStatus is one budget line.
type CategoryStatus struct {
	BudgetID         string
	CategoryID       string
	CategoryName     string
	Budget           decimal.Decimal
	Spent            decimal.Decimal
	PercentUsed      decimal.Decimal
	Exceeded         bool
	NotificationSent bool
}

// Status summarises every budget covering a month.
type Status struct {
	Status      string
	Month       string
	Categories  []CategoryStatus
	TotalBudget decimal.Decimal
	TotalSpent  decimal.Decimal
}

// PercentUsed is the share of the total budget spent.
func (s Status) PercentUsed() decimal.Decimal { return percent(s.TotalSpent, s.TotalBudget) }

// GetStatus reports spending against budgets for day's month. It never writes.
func (e *Evaluator) GetStatus(ctx context.Context, day time.Time) (Status, error) {
	month := target.MonthStart(day)
	st := Status{Status: StatusNoBudget, Month: month.Format(monthLayout)}
	budgets, err := e.ledger.ActiveBudgets(ctx, month)
	if err != nil {
		return st, fmt.Errorf("active budgets: %w", err)
	}
	if len(budgets) == 0 {
		return st, nil
	}
	st.Status = StatusSuccess
	for _, b := range budgets {
		cats, err := e.ledger.BudgetCategories(ctx, b.ID)
		if err != nil {
			return st, fmt.Errorf("budget %s categories: %w", b.ID, err)
		}
		for _, bc := range cats {
			spent, err := e.ledger.CategorySpend(ctx, b.FamilyID, bc.CategoryID, month, month.AddDate(0, 1, 0))
			if err != nil {
				return st, fmt.Errorf("spend for %s: %w", bc.CategoryName, err)
			}
			cs := CategoryStatus{
				BudgetID:     b.ID,
				CategoryID:   bc.CategoryID,
				CategoryName: bc.CategoryName,
				Budget:       bc.Limit,
				Spent:        spent,
				PercentUsed:  percent(spent, bc.Limit),
				Exceeded:     bc.Limit.IsPositive() && spent.GreaterThan(bc.Limit),
			}
			if e.tracker != nil {
				row, err := e.tracker.Get(ctx, b.ID, bc.CategoryID, st.Month)
				if err != nil {
					return st, fmt.Errorf("notification state for %s: %w", bc.CategoryName, err)
				}
				cs.NotificationSent = row != nil && row.NotificationSent
			}
			st.TotalBudget = st.TotalBudget.Add(bc.Limit)
			st.TotalSpent = st.TotalSpent.Add(spent)
			st.Categories = append(st.Categories, cs)
		}
	}
	return st, nil
}

func percent(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).Round(1)
}

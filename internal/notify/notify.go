// Package notify delivers sync and budget events to configured channels.
// Delivery is best effort: failures are logged and never returned to callers.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
)

// Event names a notification kind.
type Event string

const (
	SyncStarted    Event = "sync_started"
	SyncSuccess    Event = "sync_success"
	SyncError      Event = "sync_error"
	BudgetExceeded Event = "budget_exceeded"
	ServerStart    Event = "server_start"
	ServerError    Event = "server_error"
)

// Payload carries the event details. Only the fields relevant to the event are
// set.
type Payload struct {
	LinkageID             string         `json:"linkage_id,omitempty"`
	SourceAccount         string         `json:"simplefin_account,omitempty"`
	TargetAccount         string         `json:"maybe_account,omitempty"`
	TransactionsProcessed *int           `json:"transactions_processed,omitempty"`
	Error                 string         `json:"error,omitempty"`
	Budget                *BudgetOverrun `json:"budget,omitempty"`
	Message               string         `json:"message,omitempty"`
	Timestamp             time.Time      `json:"timestamp"`
}

// BudgetOverrun describes a category whose spend passed its limit.
type BudgetOverrun struct {
	BudgetID     string          `json:"budget_id"`
	CategoryID   string          `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Month        string          `json:"month"`
	BudgetAmount decimal.Decimal `json:"budget_amount"`
	SpentAmount  decimal.Decimal `json:"spent_amount"`
	AmountOver   decimal.Decimal `json:"amount_over"`
	PercentOver  decimal.Decimal `json:"percent_over"`
}

// NewBudgetOverrun fills in the derived amounts.
func NewBudgetOverrun(budgetID, categoryID, categoryName, month string, limit, spent decimal.Decimal) BudgetOverrun {
	over := spent.Sub(limit)
	pct := decimal.Zero
	if limit.IsPositive() {
		pct = over.Div(limit).Mul(decimal.NewFromInt(100)).Round(1)
	}
	return BudgetOverrun{
		BudgetID:     budgetID,
		CategoryID:   categoryID,
		CategoryName: categoryName,
		Month:        month,
		BudgetAmount: limit,
		SpentAmount:  spent,
		AmountOver:   over,
		PercentOver:  pct,
	}
}

// Channel is one delivery target.
type Channel interface {
	Name() string
	Send(ctx context.Context, event Event, p Payload) error
}

// Dispatcher fans an event out to every channel.
type Dispatcher struct {
	channels []Channel
	timeout  time.Duration
	logger   *log.Logger
	now      func() time.Time
}

// NewDispatcher builds a dispatcher. A zero timeout means 10 seconds.
func NewDispatcher(logger *log.Logger, timeout time.Duration, channels ...Channel) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{channels: channels, timeout: timeout, logger: logger, now: time.Now}
}

// Notify delivers the event to every channel and reports how many accepted it.
func (d *Dispatcher) Notify(ctx context.Context, event Event, p Payload) int {
	if d == nil {
		return 0
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = d.now().UTC()
	}
	if p.Message == "" {
		p.Message = defaultMessage(event, p)
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	delivered := 0
	for _, ch := range d.channels {
		if err := ch.Send(ctx, event, p); err != nil {
			d.logger.Warn("notification failed", "event", event, "channel", ch.Name(), "err", err)
			continue
		}
		delivered++
	}
	return delivered
}

// ErrNotDelivered is returned by NotifyBudgetExceeded when no channel accepted
// the event.
var ErrNotDelivered = errors.New("notification not delivered")

// NotifyBudgetExceeded reports a budget overrun. It fails when channels are
// configured but none accepted the event, so the caller can retry later.
func (d *Dispatcher) NotifyBudgetExceeded(ctx context.Context, o BudgetOverrun) error {
	if d == nil || len(d.channels) == 0 {
		return nil
	}
	if d.Notify(ctx, BudgetExceeded, Payload{Budget: &o}) == 0 {
		return ErrNotDelivered
	}
	return nil
}

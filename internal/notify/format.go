package notify

import (
	"fmt"
	"strings"
)

func defaultMessage(event Event, p Payload) string {
	switch event {
	case SyncStarted:
		return fmt.Sprintf("Sync started for %s", accountPair(p))
	case SyncSuccess:
		n := 0
		if p.TransactionsProcessed != nil {
			n = *p.TransactionsProcessed
		}
		return fmt.Sprintf("Sync complete for %s: %d transactions processed", accountPair(p), n)
	case SyncError:
		return fmt.Sprintf("Sync failed for %s: %s", accountPair(p), p.Error)
	case BudgetExceeded:
		if p.Budget == nil {
			return "Budget exceeded"
		}
		b := p.Budget
		return fmt.Sprintf("Budget exceeded for %s: spent %s of %s (%s over, %s%%)",
			b.CategoryName, b.SpentAmount.StringFixed(2), b.BudgetAmount.StringFixed(2),
			b.AmountOver.StringFixed(2), b.PercentOver.String())
	case ServerStart:
		return "Server started"
	case ServerError:
		return "Server error: " + p.Error
	}
	return string(event)
}

func accountPair(p Payload) string {
	parts := make([]string, 0, 2)
	if p.SourceAccount != "" {
		parts = append(parts, p.SourceAccount)
	}
	if p.TargetAccount != "" {
		parts = append(parts, p.TargetAccount)
	}
	if len(parts) == 0 {
		return "linkage " + p.LinkageID
	}
	return strings.Join(parts, " -> ")
}

// logFields flattens a payload into logger key/value pairs.
func logFields(event Event, p Payload) []interface{} {
	kv := []interface{}{"event", string(event)}
	if p.LinkageID != "" {
		kv = append(kv, "linkage", p.LinkageID)
	}
	if p.TransactionsProcessed != nil {
		kv = append(kv, "transactions", *p.TransactionsProcessed)
	}
	if p.Error != "" {
		kv = append(kv, "err", p.Error)
	}
	if b := p.Budget; b != nil {
		kv = append(kv, "budget", b.BudgetID, "category", b.CategoryName, "month", b.Month,
			"spent", b.SpentAmount.String(), "limit", b.BudgetAmount.String())
	}
	return kv
}

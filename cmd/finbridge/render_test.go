package main

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jask/finbridge/internal/budget"
	"github.com/jask/finbridge/internal/service"
)

func TestRenderSummary(t *testing.T) {
	out := renderSummary(service.Summary{
		Total:     2,
		Succeeded: 1,
		Failed:    1,
		Results: []service.LinkageResult{
			{LinkageID: "l-1", Result: service.Result{Success: true, Message: "Sync completed: 3 transactions processed"}},
			{LinkageID: "l-2", Result: service.Result{Message: "Sync failed: boom", Err: errors.New("boom")}},
		},
	})
	require.Contains(t, out, "l-1")
	require.Contains(t, out, "Sync failed: boom")
	require.Contains(t, out, "2 linkages: 1 ok, 1 failed")
}

func TestRenderBudgetStatus(t *testing.T) {
	require.Equal(t, "no budget covers 2026-10", renderBudgetStatus(budget.Status{Status: budget.StatusNoBudget, Month: "2026-10-01"}))

	out := renderBudgetStatus(budget.Status{
		Status: budget.StatusSuccess,
		Month:  "2026-10-01",
		Categories: []budget.CategoryStatus{{
			CategoryName: "Food", Budget: decimal.NewFromInt(100), Spent: decimal.NewFromInt(120),
			PercentUsed:  decimal.NewFromInt(120), Exceeded: true, NotificationSent: true,
		}},
		TotalBudget: decimal.NewFromInt(100),
		TotalSpent:  decimal.NewFromInt(120),
	})
	require.Contains(t, out, "Budgets for 2026-10")
	require.Contains(t, out, "Food")
	require.Contains(t, out, "120.00")
	require.Contains(t, out, "sent")
}

func TestRenderResultDetails(t *testing.T) {
	out := renderResult("l-1", service.Result{
		Success: true,
		Message: "ok",
		Details: &service.Details{TransactionsCreated: 2, ValuationID: "v", ValuationCreated: true},
	})
	require.Contains(t, out, "created")
	require.Equal(t, "exists", valuationLabel(service.Details{ValuationID: "v"}))
	require.Equal(t, "-", valuationLabel(service.Details{}))
}

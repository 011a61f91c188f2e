package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/jask/finbridge/internal/budget"
	"github.com/jask/finbridge/internal/database/repository"
	"github.com/jask/finbridge/internal/rules"
	"github.com/jask/finbridge/internal/service"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func renderResult(id string, res service.Result) string {
	status := okStyle.Render("ok")
	if !res.Success {
		status = errStyle.Render("failed")
	}
	t := newTable("linkage", "status", "message").Row(id, status, res.Message)
	out := t.String()
	if d := res.Details; d != nil {
		out += "\n" + newTable("fetched", "created", "updated", "skipped", "unchanged", "valuation", "budget alerts").
			Row(
				fmt.Sprint(d.TransactionsFetched),
				fmt.Sprint(d.TransactionsCreated),
				fmt.Sprint(d.TransactionsUpdated),
				fmt.Sprint(d.TransactionsSkipped),
				fmt.Sprint(d.TransactionsUnchanged),
				valuationLabel(*d),
				fmt.Sprint(d.BudgetsNotified),
			).String()
	}
	return out
}

func valuationLabel(d service.Details) string {
	switch {
	case d.ValuationID == "":
		return "-"
	case d.ValuationCreated:
		return "created"
	default:
		return "exists"
	}
}

func renderSummary(sum service.Summary) string {
	t := newTable("linkage", "status", "message")
	for _, r := range sum.Results {
		status := okStyle.Render("ok")
		if !r.Result.Success {
			status = errStyle.Render("failed")
		}
		t.Row(r.LinkageID, status, r.Result.Message)
	}
	return t.String() + fmt.Sprintf("\n%d linkages: %d ok, %d failed", sum.Total, sum.Succeeded, sum.Failed)
}

func renderStatus(st service.Status) string {
	running := "no"
	if st.Running {
		running = "yes"
	}
	return newTable("linkage", "status", "last sync", "running", "last error").
		Row(st.LinkageID, st.SyncStatus, formatTime(st.LastSync), running, optional(st.LastError)).
		String()
}

func renderBudgetStatus(st budget.Status) string {
	if st.Status == budget.StatusNoBudget {
		return fmt.Sprintf("no budget covers %s", st.Month[:7])
	}
	t := newTable("category", "budget", "spent", "used", "alert")
	for _, c := range st.Categories {
		used := c.PercentUsed.String() + "%"
		if c.Exceeded {
			used = errStyle.Render(used)
		}
		alert := ""
		if c.NotificationSent {
			alert = "sent"
		}
		t.Row(c.CategoryName, c.Budget.StringFixed(2), c.Spent.StringFixed(2), used, alert)
	}
	t.Row(headerStyle.Render("total"), st.TotalBudget.StringFixed(2), st.TotalSpent.StringFixed(2), st.PercentUsed().String()+"%", "")
	return fmt.Sprintf("Budgets for %s\n%s", st.Month[:7], t.String())
}

func renderAccounts(accts []repository.Account) string {
	t := newTable("id", "kind", "name", "currency", "type")
	for _, a := range accts {
		t.Row(a.ID, a.Kind, a.DisplayName, a.Currency, optional(a.AccountableType))
	}
	return t.String()
}

func renderSuggestions(sgs []service.Suggestion) string {
	t := newTable("source", "target", "score", "link command")
	for _, s := range sgs {
		t.Row(s.Source.DisplayName, s.Target.DisplayName, fmt.Sprintf("%.2f", s.Score),
			mutedStyle.Render(fmt.Sprintf("finbridge link %s %s", s.Source.ID, s.Target.ID)))
	}
	return t.String()
}

func renderLinkages(ls []repository.Linkage) string {
	t := newTable("id", "source", "target", "enabled", "status", "last sync")
	for _, l := range ls {
		t.Row(l.ID, l.SourceAccountID, l.TargetAccountID, fmt.Sprint(l.Enabled), l.SyncStatus, formatTime(l.LastSync))
	}
	return t.String()
}

func renderCategories(cats []repository.Category) string {
	t := newTable("id", "name", "parent")
	for _, c := range cats {
		t.Row(c.ID, c.Name, optional(c.ParentID))
	}
	return t.String()
}

func renderRules(rs []rules.Rule) string {
	t := newTable("id", "name", "enabled", "conditions", "actions")
	for _, r := range rs {
		conds := make([]string, 0, len(r.Conditions))
		for _, c := range r.Conditions {
			conds = append(conds, fmt.Sprintf("%s %s %q", c.Field, c.Operator, c.Value))
		}
		acts := make([]string, 0, len(r.Actions))
		for _, a := range r.Actions {
			acts = append(acts, a.Type+"="+a.Value)
		}
		t.Row(r.ID, r.Name, fmt.Sprint(r.Enabled), strings.Join(conds, " AND "), strings.Join(acts, ", "))
	}
	return t.String()
}

func renderSettings(ss []repository.Setting) string {
	t := newTable("key", "name", "value")
	for _, s := range ss {
		v := s.Value
		if strings.Contains(s.Key, "password") && v != "" {
			v = "********"
		}
		t.Row(s.Key, s.DisplayName, v)
	}
	return t.String()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func optional(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

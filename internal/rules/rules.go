// Package rules evaluates user-defined condition/action rules against a
// transaction before it is written to the target store.
package rules

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Condition fields.
const (
	FieldName   = "transaction_name"
	FieldAmount = "transaction_amount"
)

// Condition operators. The symbolic forms and "like" are accepted as aliases.
const (
	OpContains           = "contains"
	OpLike               = "like"
	OpEquals             = "equals"
	OpGreaterThan        = "greater_than"
	OpGreaterThanOrEqual = "greater_than_or_equal"
	OpLessThan           = "less_than"
	OpLessThanOrEqual    = "less_than_or_equal"
)

// Action types.
const (
	ActionSetCategory = "set_transaction_category"
	ActionAddTag      = "add_tag"
)

// Condition is one predicate of a rule.
type Condition struct {
	ID       string
	Field    string
	Operator string
	Value    string
}

// Action is applied when every condition of its rule holds.
type Action struct {
	ID    string
	Type  string
	Value string
}

// Rule groups conditions (AND) and actions.
type Rule struct {
	ID         string
	Name       string
	Enabled    bool
	CreatedAt  time.Time
	Conditions []Condition
	Actions    []Action
}

// View is the transaction-like record rules are evaluated against.
type View struct {
	Name        string
	Description string
	Amount      decimal.Decimal
	CategoryID  *string
}

// NewView builds a view from a description and a raw amount string.
// Non-numeric amounts evaluate as zero.
func NewView(description, amount string) View {
	amt, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		amt = decimal.Zero
	}
	return View{Description: description, Amount: amt}
}

// DisplayName is Name, falling back to Description.
func (v View) DisplayName() string {
	if v.Name != "" {
		return v.Name
	}
	return v.Description
}

// Match records a rule whose conditions held and the actions it applied.
type Match struct {
	Rule    Rule
	Actions []Action
}

// Result is the outcome of Apply. View carries every applied action.
type Result struct {
	Matched []Match
	View    View
}

// CategoryID returns the category assigned by the rules, or nil.
func (r Result) CategoryID() *string { return r.View.CategoryID }

// Apply folds the enabled rules over v in order. Each matching rule's actions
// are applied to the running view, so a later rule overrides the category set
// by an earlier one. The input view is not modified.
func Apply(rs []Rule, v View) Result {
	res := Result{View: v}
	if v.CategoryID != nil {
		id := *v.CategoryID
		res.View.CategoryID = &id
	}
	for _, rule := range rs {
		if !rule.Enabled || len(rule.Actions) == 0 {
			continue
		}
		if !matchesAll(rule.Conditions, res.View) {
			continue
		}
		var applied []Action
		for _, a := range rule.Actions {
			next, ok := applyAction(res.View, a)
			if !ok {
				continue
			}
			res.View = next
			applied = append(applied, a)
		}
		if len(applied) > 0 {
			res.Matched = append(res.Matched, Match{Rule: rule, Actions: applied})
		}
	}
	return res
}

// matchesAll reports whether every condition holds. A rule with no
// conditions matches every transaction.
func matchesAll(conds []Condition, v View) bool {
	for _, c := range conds {
		if !Evaluate(c, v) {
			return false
		}
	}
	return true
}

// Evaluate reports whether a single condition holds for v. Unknown fields and
// operators evaluate false.
func Evaluate(c Condition, v View) bool {
	op := normalizeOperator(c.Operator)
	switch c.Field {
	case FieldName:
		name := strings.ToLower(v.DisplayName())
		value := strings.ToLower(c.Value)
		switch op {
		case OpContains:
			return strings.Contains(name, value)
		case OpEquals:
			return name == value
		default:
			// ordering comparisons never hold for text
			return false
		}
	case FieldAmount:
		value, err := decimal.NewFromString(strings.TrimSpace(c.Value))
		if err != nil {
			return false
		}
		switch op {
		case OpEquals:
			return v.Amount.Equal(value)
		case OpGreaterThan:
			return v.Amount.GreaterThan(value)
		case OpGreaterThanOrEqual:
			return v.Amount.GreaterThanOrEqual(value)
		case OpLessThan:
			return v.Amount.LessThan(value)
		case OpLessThanOrEqual:
			return v.Amount.LessThanOrEqual(value)
		default:
			return false
		}
	}
	return false
}

func normalizeOperator(op string) string {
	switch strings.ToLower(strings.TrimSpace(op)) {
	case OpContains, OpLike:
		return OpContains
	case OpEquals, "=":
		return OpEquals
	case OpGreaterThan, ">":
		return OpGreaterThan
	case OpGreaterThanOrEqual, ">=":
		return OpGreaterThanOrEqual
	case OpLessThan, "<":
		return OpLessThan
	case OpLessThanOrEqual, "<=":
		return OpLessThanOrEqual
	}
	return ""
}

func applyAction(v View, a Action) (View, bool) {
	switch a.Type {
	case ActionSetCategory:
		id := a.Value
		v.CategoryID = &id
		return v, true
	case ActionAddTag:
		// tags are not written to the target store
		return v, true
	}
	return v, false
}

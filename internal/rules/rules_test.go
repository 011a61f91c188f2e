package rules

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func categoryRule(name, category string, conds ...Condition) Rule {
	return Rule{
		ID:         name,
		Name:       name,
		Enabled:    true,
		Conditions: conds,
		Actions:    []Action{{Type: ActionSetCategory, Value: category}},
	}
}

func TestApplyLastMatchWins(t *testing.T) {
	t.Parallel()
	rs := []Rule{
		categoryRule("r1", "A", Condition{Field: FieldName, Operator: OpContains, Value: "coffee"}),
		categoryRule("r2", "B", Condition{Field: FieldAmount, Operator: OpLessThan, Value: "0"}),
	}
	res := Apply(rs, NewView("COFFEE SHOP", "-4.50"))
	require.Len(t, res.Matched, 2)
	require.NotNil(t, res.CategoryID())
	require.Equal(t, "B", *res.CategoryID())

	// reversed order flips the winner
	res = Apply([]Rule{rs[1], rs[0]}, NewView("COFFEE SHOP", "-4.50"))
	require.Equal(t, "A", *res.CategoryID())
}

func TestApplyDeterministicAndPure(t *testing.T) {
	t.Parallel()
	rs := []Rule{
		categoryRule("r1", "A", Condition{Field: FieldName, Operator: OpLike, Value: "shop"}),
	}
	orig := "orig"
	in := NewView("Coffee Shop", "-4.50")
	in.CategoryID = &orig

	first := Apply(rs, in)
	second := Apply(rs, in)
	require.Equal(t, first, second)
	require.Equal(t, "orig", *in.CategoryID)
	require.Equal(t, "A", *first.CategoryID())
}

func TestApplySkipsDisabledAndActionless(t *testing.T) {
	t.Parallel()
	disabled := categoryRule("off", "X", Condition{Field: FieldName, Operator: OpContains, Value: "coffee"})
	disabled.Enabled = false
	actionless := Rule{ID: "noop", Enabled: true, Conditions: []Condition{{Field: FieldName, Operator: OpContains, Value: "coffee"}}}

	res := Apply([]Rule{disabled, actionless}, NewView("coffee", "1"))
	require.Empty(t, res.Matched)
	require.Nil(t, res.CategoryID())
}

// A rule without conditions matches every transaction.
func TestApplyZeroConditionsMatches(t *testing.T) {
	t.Parallel()
	res := Apply([]Rule{categoryRule("all", "C")}, NewView("anything", "12"))
	require.Len(t, res.Matched, 1)
	require.Equal(t, "C", *res.CategoryID())
}

func TestApplyUnknownActionNotReported(t *testing.T) {
	t.Parallel()
	r := Rule{ID: "x", Enabled: true, Actions: []Action{{Type: "rename", Value: "y"}}}
	res := Apply([]Rule{r}, NewView("a", "1"))
	require.Empty(t, res.Matched)

	r.Actions = append(r.Actions, Action{Type: ActionAddTag, Value: "t"})
	res = Apply([]Rule{r}, NewView("a", "1"))
	require.Len(t, res.Matched, 1)
	require.Len(t, res.Matched[0].Actions, 1)
	require.Nil(t, res.CategoryID())
}

func TestEvaluate(t *testing.T) {
	t.Parallel()
	v := NewView("Monthly RECORDKEEPING Fee", "-12.50")
	named := v
	named.Name = "Payroll"

	cases := []struct {
		name string
		view View
		cond Condition
		want bool
	}{
		{"contains case-insensitive", v, Condition{Field: FieldName, Operator: OpContains, Value: "recordkeeping"}, true},
		{"like alias", v, Condition{Field: FieldName, Operator: OpLike, Value: "FEE"}, true},
		{"name equals", v, Condition{Field: FieldName, Operator: OpEquals, Value: "monthly recordkeeping fee"}, true},
		{"name prefers Name over description", named, Condition{Field: FieldName, Operator: "=", Value: "payroll"}, true},
		{"name ordering is false", v, Condition{Field: FieldName, Operator: OpGreaterThan, Value: "a"}, false},
		{"amount equals decimal", v, Condition{Field: FieldAmount, Operator: OpEquals, Value: "-12.5"}, true},
		{"amount contains is false", v, Condition{Field: FieldAmount, Operator: OpContains, Value: "12"}, false},
		{"amount gt", v, Condition{Field: FieldAmount, Operator: ">", Value: "-20"}, true},
		{"amount gte", v, Condition{Field: FieldAmount, Operator: OpGreaterThanOrEqual, Value: "-12.50"}, true},
		{"amount lt", v, Condition{Field: FieldAmount, Operator: "<", Value: "-12.50"}, false},
		{"amount lte", v, Condition{Field: FieldAmount, Operator: OpLessThanOrEqual, Value: "-12.50"}, true},
		{"non-numeric value", v, Condition{Field: FieldAmount, Operator: OpLessThan, Value: "abc"}, false},
		{"unknown operator", v, Condition{Field: FieldName, Operator: "matches", Value: "fee"}, false},
		{"unknown field", v, Condition{Field: "merchant", Operator: OpContains, Value: "fee"}, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Evaluate(tc.cond, tc.view), tc.name)
	}
}

func TestNewViewNonNumericAmount(t *testing.T) {
	t.Parallel()
	v := NewView("x", "n/a")
	require.True(t, v.Amount.Equal(decimal.Zero))
	require.True(t, Evaluate(Condition{Field: FieldAmount, Operator: OpEquals, Value: "0"}, v))
}

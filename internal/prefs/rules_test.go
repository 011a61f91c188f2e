package prefs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/finbridge/internal/rules"
)

func TestRulesRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "rules.json")
	in := []rules.Rule{{
		ID:         "ignored",
		Name:       "coffee",
		Enabled:    true,
		Conditions: []rules.Condition{{ID: "c1", Field: rules.FieldName, Operator: rules.OpContains, Value: "coffee"}},
		Actions:    []rules.Action{{ID: "a1", Type: rules.ActionSetCategory, Value: "cat-coffee"}},
	}}
	require.NoError(t, SaveRules(path, in))

	out, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Empty(t, out[0].ID)
	require.Equal(t, "coffee", out[0].Name)
	require.Empty(t, out[0].Conditions[0].ID)
	require.Equal(t, "coffee", out[0].Conditions[0].Value)
	require.Equal(t, "cat-coffee", out[0].Actions[0].Value)
}

func TestLoadRulesMissingFile(t *testing.T) {
	t.Parallel()
	out, err := LoadRules(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	require.Empty(t, out)
}

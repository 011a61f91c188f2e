// Package prefs keeps portable copies of user-authored data, such as rules,
// outside the local database.
package prefs

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/jask/finbridge/internal/rules"
)

const rulesFile = "rules.json"

// RulesPath is the default export location under the user config dir.
func RulesPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "finbridge", rulesFile), nil
}

type ruleDoc struct {
	Name       string         `json:"name"`
	Enabled    bool           `json:"enabled"`
	Conditions []conditionDoc `json:"conditions"`
	Actions    []actionDoc    `json:"actions"`
}

type conditionDoc struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

type actionDoc struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// SaveRules writes rs to path in evaluation order. Ids are not exported.
func SaveRules(path string, rs []rules.Rule) error {
	docs := make([]ruleDoc, 0, len(rs))
	for _, r := range rs {
		d := ruleDoc{Name: r.Name, Enabled: r.Enabled}
		for _, c := range r.Conditions {
			d.Conditions = append(d.Conditions, conditionDoc{Field: c.Field, Operator: c.Operator, Value: c.Value})
		}
		for _, a := range r.Actions {
			d.Actions = append(d.Actions, actionDoc{Type: a.Type, Value: a.Value})
		}
		docs = append(docs, d)
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadRules reads rules written by SaveRules. A missing file yields no rules.
func LoadRules(path string) ([]rules.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var docs []ruleDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, err
	}
	out := make([]rules.Rule, 0, len(docs))
	for _, d := range docs {
		r := rules.Rule{Name: d.Name, Enabled: d.Enabled}
		for _, c := range d.Conditions {
			r.Conditions = append(r.Conditions, rules.Condition{Field: c.Field, Operator: c.Operator, Value: c.Value})
		}
		for _, a := range d.Actions {
			r.Actions = append(r.Actions, rules.Action{Type: a.Type, Value: a.Value})
		}
		out = append(out, r)
	}
	return out, nil
}

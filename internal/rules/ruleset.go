// Package rules is the rule-repository collaborator: it loads rulesets from
// YAML, validates them (duplicate ids, unknown tiers, malformed conditions),
// ships built-in presets, and diffs rulesets across reloads. The evaluation
// core never parses rule files itself; it receives the validated list.
package rules

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/entreaty/entreaty/internal/engine"
	"github.com/entreaty/entreaty/internal/models"
	"gopkg.in/yaml.v3"
)

// Load reads and parses a ruleset YAML file. The result is parsed but not
// yet validated; call Validate before handing it to the evaluator.
func Load(path string) (*models.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ruleset file: %w", err)
	}
	return Parse(data)
}

// Parse a ruleset from YAML bytes.
func Parse(data []byte) (*models.RuleSet, error) {
	var rs models.RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse ruleset YAML: %w", err)
	}
	if len(rs.Rules) == 0 {
		return nil, fmt.Errorf("ruleset must have at least one rule")
	}
	return &rs, nil
}

// Validate checks the ruleset invariants the engine relies on: unique ids,
// known tiers and outcomes, non-negative salience, and conditions that
// compile. All problems are reported at once.
func Validate(rs *models.RuleSet, ev *engine.Evaluator) error {
	var problems []string

	seen := map[string]bool{}
	for _, r := range rs.Rules {
		if r.ID == "" {
			problems = append(problems, "rule with empty id")
			continue
		}
		if seen[r.ID] {
			problems = append(problems, fmt.Sprintf("rule %q: duplicate id", r.ID))
		}
		seen[r.ID] = true

		if !r.Tier.Valid() {
			problems = append(problems, fmt.Sprintf("rule %q: unknown tier %q", r.ID, r.Tier))
		}
		if r.Salience < 0 {
			problems = append(problems, fmt.Sprintf("rule %q: negative salience %d", r.ID, r.Salience))
		}
		if !r.Then.Outcome.Valid() {
			problems = append(problems, fmt.Sprintf("rule %q: unknown outcome %q", r.ID, r.Then.Outcome))
		}
		if len(r.Conditions) == 0 {
			problems = append(problems, fmt.Sprintf("rule %q: no conditions", r.ID))
		}
		for _, cond := range r.Conditions {
			if err := ev.Check(cond); err != nil {
				problems = append(problems, fmt.Sprintf("rule %q: condition %q: %v", r.ID, cond, err))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("ruleset validation failed:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

// Sorted returns the rules in ascending id order, the order the evaluator
// iterates them in.
func Sorted(rs *models.RuleSet) []models.Rule {
	out := make([]models.Rule, len(rs.Rules))
	copy(out, rs.Rules)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

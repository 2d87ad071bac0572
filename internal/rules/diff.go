package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/entreaty/entreaty/internal/models"
	"github.com/wI2L/jsondiff"
)

// ChangeType indicates what kind of ruleset drift was detected
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeRemoved ChangeType = "removed"
	ChangeChanged ChangeType = "changed"
)

// Severity of one ruleset change. A change to a national-tier rule matters
// more than a university-level wording tweak.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityModerate
	SeverityCritical
)

// SeverityString for output
func SeverityString(s Severity) string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityModerate:
		return "moderate"
	default:
		return "info"
	}
}

// RuleChange is the drift for a single rule between two ruleset versions.
type RuleChange struct {
	RuleID   string         `json:"rule_id"`
	Type     ChangeType     `json:"type"`
	Severity Severity       `json:"-"`
	Level    string         `json:"severity"`
	Patch    jsondiff.Patch `json:"patch,omitempty"`
	Message  string         `json:"message"`
}

// DiffResult is the complete drift between two rulesets.
type DiffResult struct {
	HasChanges bool         `json:"has_changes"`
	Changes    []RuleChange `json:"changes"`
}

// Compare reports what changed between two ruleset versions, in rule-id
// order. Supports auditing hot reloads: the rules in force between two
// evaluations of the same grievance type should drift deliberately, not
// silently.
func Compare(oldSet, newSet *models.RuleSet) (*DiffResult, error) {
	oldRules := map[string]models.Rule{}
	for _, r := range oldSet.Rules {
		oldRules[r.ID] = r
	}
	newRules := map[string]models.Rule{}
	for _, r := range newSet.Rules {
		newRules[r.ID] = r
	}

	result := &DiffResult{Changes: []RuleChange{}}

	for id, oldRule := range oldRules {
		if _, found := newRules[id]; !found {
			result.Changes = append(result.Changes, RuleChange{
				RuleID:   id,
				Type:     ChangeRemoved,
				Severity: removalSeverity(oldRule),
				Message:  fmt.Sprintf("Rule [%s] (%s) has been removed from the ruleset", id, oldRule.Tier),
			})
		}
	}

	for id, newRule := range newRules {
		oldRule, found := oldRules[id]
		if !found {
			result.Changes = append(result.Changes, RuleChange{
				RuleID:   id,
				Type:     ChangeAdded,
				Severity: additionSeverity(newRule),
				Message:  fmt.Sprintf("Rule [%s] (%s, salience %d) has been added", id, newRule.Tier, newRule.Salience),
			})
			continue
		}

		patch, err := jsondiff.Compare(oldRule, newRule)
		if err != nil {
			return nil, fmt.Errorf("failed to diff rule %q: %w", id, err)
		}
		if len(patch) == 0 {
			continue
		}

		result.Changes = append(result.Changes, RuleChange{
			RuleID:   id,
			Type:     ChangeChanged,
			Severity: changeSeverity(newRule, patch),
			Patch:    patch,
			Message:  fmt.Sprintf("Rule [%s] changed: %s", id, changedPaths(patch)),
		})
	}

	sort.Slice(result.Changes, func(i, j int) bool { return result.Changes[i].RuleID < result.Changes[j].RuleID })
	for i := range result.Changes {
		result.Changes[i].Level = SeverityString(result.Changes[i].Severity)
	}
	result.HasChanges = len(result.Changes) > 0
	return result, nil
}

func removalSeverity(r models.Rule) Severity {
	if r.Tier == models.TierNational {
		return SeverityCritical
	}
	return SeverityModerate
}

func additionSeverity(r models.Rule) Severity {
	if r.Tier == models.TierNational {
		return SeverityModerate
	}
	return SeverityInfo
}

// changeSeverity grades a modified rule by what the patch touched: outcome or
// tier changes flip decisions, precedence attributes reorder them, anything
// else is cosmetic.
func changeSeverity(r models.Rule, patch jsondiff.Patch) Severity {
	severity := SeverityInfo
	for _, op := range patch {
		switch {
		case strings.HasPrefix(op.Path, "/then/outcome"), strings.HasPrefix(op.Path, "/tier"):
			return SeverityCritical
		case strings.HasPrefix(op.Path, "/salience"),
			strings.HasPrefix(op.Path, "/effective_date"),
			strings.HasPrefix(op.Path, "/conditions"):
			severity = SeverityModerate
		}
	}
	if severity == SeverityModerate && r.Tier == models.TierNational {
		return SeverityCritical
	}
	return severity
}

func changedPaths(patch jsondiff.Patch) string {
	seen := map[string]bool{}
	var paths []string
	for _, op := range patch {
		if !seen[op.Path] {
			seen[op.Path] = true
			paths = append(paths, op.Path)
		}
	}
	sort.Strings(paths)
	return strings.Join(paths, ", ")
}

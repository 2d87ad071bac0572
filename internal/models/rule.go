// Package models holds the plain-data types shared by the evaluation engine,
// the resolver, and the collaborators around them. Nothing in here has behavior
// beyond ordering helpers; every type serializes cleanly to JSON or YAML.
package models

import (
	"fmt"
	"strings"
	"time"
)

// AuthorityTier is one of three fixed regulatory levels, ordered by binding
// precedence: national law over accreditation standards over university policy.
type AuthorityTier string

const (
	TierNational      AuthorityTier = "L1_National"
	TierAccreditation AuthorityTier = "L2_Accreditation"
	TierUniversity    AuthorityTier = "L3_University"
)

// tierRank maps tiers to their precedence rank. Lower rank binds harder.
var tierRank = map[AuthorityTier]int{
	TierNational:      1,
	TierAccreditation: 2,
	TierUniversity:    3,
}

// Rank returns the precedence rank of the tier (1 = highest authority).
// Unknown tiers rank below every known one so malformed input never wins.
func (t AuthorityTier) Rank() int {
	if r, ok := tierRank[t]; ok {
		return r
	}
	return len(tierRank) + 1
}

// Valid reports whether the tier is one of the three known levels.
func (t AuthorityTier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// ParseTier accepts the canonical form and a few lenient spellings
// ("L1", "national") seen in hand-authored rulesets.
func ParseTier(s string) (AuthorityTier, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "L1_NATIONAL", "L1", "NATIONAL":
		return TierNational, nil
	case "L2_ACCREDITATION", "L2", "ACCREDITATION":
		return TierAccreditation, nil
	case "L3_UNIVERSITY", "L3", "UNIVERSITY":
		return TierUniversity, nil
	}
	return "", fmt.Errorf("unknown authority tier %q (use L1_National, L2_Accreditation, or L3_University)", s)
}

// RuleOutcome is the outcome template a rule produces when it fires.
type RuleOutcome struct {
	Outcome             Outcome `yaml:"outcome" json:"outcome"`
	Reason              string  `yaml:"reason" json:"reason"`
	RegulatorySource    string  `yaml:"regulatory_source" json:"regulatory_source"`
	ActionRequired      string  `yaml:"action_required,omitempty" json:"action_required,omitempty"`
	HumanReviewRequired bool    `yaml:"human_review_required,omitempty" json:"human_review_required,omitempty"`
}

// Rule is one regulatory provision. Immutable once loaded for an evaluation
// pass; the evaluator treats the list it receives as read-only.
type Rule struct {
	ID            string        `yaml:"id" json:"id"`
	Tier          AuthorityTier `yaml:"tier" json:"tier"`
	Salience      int           `yaml:"salience" json:"salience"`
	EffectiveDate time.Time     `yaml:"effective_date,omitempty" json:"effective_date,omitempty"`

	// AppliesTo names the grievance type the rule is scoped to.
	// Empty means the rule is considered for every type.
	AppliesTo string `yaml:"applies_to,omitempty" json:"applies_to,omitempty"`

	// Conditions are CEL expressions over the variables `type` (string) and
	// `params` (map). All must hold for the rule to fire. A condition that
	// references a missing parameter evaluates to not-satisfied, never errors.
	Conditions []string `yaml:"conditions" json:"conditions"`

	Then RuleOutcome `yaml:"then" json:"then"`
}

// RuleSet is an already-validated, deduplicated list of rules plus provenance.
type RuleSet struct {
	Name  string `yaml:"name" json:"name"`
	Rules []Rule `yaml:"rules" json:"rules"`
}

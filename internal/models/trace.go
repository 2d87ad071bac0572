package models

// ConditionCheck records one condition evaluated for one rule.
type ConditionCheck struct {
	Expression string `json:"expression"`
	Satisfied  bool   `json:"satisfied"`
	// ObservedValue is the parameter value the condition looked at, nil when
	// the parameter was absent or the expression failed to evaluate.
	ObservedValue any `json:"observed_value,omitempty"`
	// Error holds the evaluation error message when a condition could not be
	// evaluated at all (bad expression, predicate panic). Such conditions are
	// recorded as not satisfied.
	Error string `json:"error,omitempty"`
}

// Firing is the result of evaluating one rule against one grievance.
// Created once per rule per evaluation call and never mutated.
type Firing struct {
	RuleID            string           `json:"rule_id"`
	Tier              AuthorityTier    `json:"tier"`
	Salience          int              `json:"salience"`
	Fired             bool             `json:"fired"`
	ConditionsChecked []ConditionCheck `json:"conditions_checked"`
	// Outcome is set only when the rule fired.
	Outcome *RuleOutcome `json:"outcome,omitempty"`
	// EffectiveDate is carried from the rule for temporal tie-breaking,
	// formatted as RFC 3339 date or empty when the rule has none.
	EffectiveDate string `json:"effective_date,omitempty"`
}

// ConflictKind classifies why two fired rules disagreed.
type ConflictKind string

const (
	ConflictAuthority ConflictKind = "AUTHORITY"
	ConflictSalience  ConflictKind = "SALIENCE"
	ConflictTemporal  ConflictKind = "TEMPORAL"
)

// Resolution strategy names surfaced in traces and narratives.
const (
	StrategyAuthority = "Authority Precedence"
	StrategySalience  = "Salience-Based Priority"
	StrategyTemporal  = "Temporal Precedence"
	StrategyTiebreak  = "Deterministic Tiebreak (rule conflict)"
)

// ConflictMember identifies one rule involved in a conflict, with the
// precedence attributes the narrative cites.
type ConflictMember struct {
	RuleID        string        `json:"rule_id"`
	Tier          AuthorityTier `json:"tier"`
	Salience      int           `json:"salience"`
	EffectiveDate string        `json:"effective_date,omitempty"`
	Outcome       Outcome       `json:"outcome"`
}

// Conflict records a disagreement in outcome between two or more fired rules.
// Firings that agree on outcome are never reported as conflicting.
type Conflict struct {
	Kind               ConflictKind     `json:"kind"`
	ConflictingRuleIDs []string         `json:"conflicting_rule_ids"`
	Members            []ConflictMember `json:"members"`
	WinningRuleID      string           `json:"winning_rule_id"`
	ResolutionStrategy string           `json:"resolution_strategy"`
	Reason             string           `json:"reason"`
}

// Trace is the full audit record for one evaluation: every rule considered,
// every conflict detected, the final decision, and the rendered narrative.
// Immutable once produced; the caller owns persistence.
type Trace struct {
	Firings              []Firing   `json:"firings"`
	Conflicts            []Conflict `json:"conflicts"`
	Decision             Decision   `json:"decision"`
	Narrative            string     `json:"narrative,omitempty"`
	ProcessingDurationMs int64      `json:"processing_duration_ms"`
}

// Package receipt provides stable evidence artifacts for audit/compliance.
// One receipt is written per adjudication command, summarizing what ruleset
// was in force, what was decided, and how the fairness check came out,
// without embedding the grievance's personal details.
package receipt

// ReceiptSchemaVersion current
const ReceiptSchemaVersion = "1.0"

// Receipt structure
type Receipt struct {
	SchemaVersion string           `json:"schema_version"`
	OpID          string           `json:"op_id"`
	TsStart       string           `json:"ts_start"`
	TsEnd         string           `json:"ts_end"`
	Command       string           `json:"command"`
	Args          []string         `json:"args"`
	ArgsRedacted  bool             `json:"args_redacted,omitempty"` // true if any args were sanitized
	Result        Result           `json:"result"`
	Ruleset       *RulesetRef      `json:"ruleset,omitempty"`
	Decision      *DecisionSummary `json:"decision,omitempty"`
	Conflicts     *ConflictSummary `json:"conflicts,omitempty"`
	Fairness      *FairnessSummary `json:"fairness,omitempty"`
	Drift         *DriftSummary    `json:"drift,omitempty"`
}

// Result status
type Result struct {
	Status string `json:"status"` // "success" or "fail"
	Error  string `json:"error,omitempty"`
}

// RulesetRef identifies the ruleset an evaluation ran against. For file
// rulesets the SHA256 pins the exact content in force at decision time.
type RulesetRef struct {
	Source string `json:"source"` // "preset" or "file"
	Name   string `json:"name"`   // preset name or file path
	SHA256 string `json:"sha256,omitempty"`
}

// DecisionSummary detail
type DecisionSummary struct {
	Outcome             string `json:"outcome"`
	ApplicableRuleID    string `json:"applicable_rule_id,omitempty"`
	Tier                string `json:"tier,omitempty"`
	HumanReviewRequired bool   `json:"human_review_required"`
}

// ConflictSummary counts conflicts by kind.
type ConflictSummary struct {
	Authority int `json:"authority"`
	Salience  int `json:"salience"`
	Temporal  int `json:"temporal"`
	Total     int `json:"total"`
}

// FairnessSummary detail
type FairnessSummary struct {
	ConsistencyScore float64 `json:"consistency_score"`
	AnomalyDetected  bool    `json:"anomaly_detected"`
	Recommendation   string  `json:"recommendation,omitempty"`
}

// DriftSummary detail for ruleset diffs.
type DriftSummary struct {
	Critical int    `json:"critical"`
	Moderate int    `json:"moderate"`
	Info     int    `json:"info"`
	Summary  string `json:"summary,omitempty"`
}

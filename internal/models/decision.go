package models

import (
	"fmt"
	"strings"
)

// Outcome is the disposition of a grievance.
type Outcome string

const (
	OutcomeAccept        Outcome = "ACCEPT"
	OutcomeReject        Outcome = "REJECT"
	OutcomePartialAccept Outcome = "PARTIAL_ACCEPT"
	OutcomePending       Outcome = "PENDING_CLARIFICATION"
)

// Valid reports whether the outcome is one of the four known dispositions.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeAccept, OutcomeReject, OutcomePartialAccept, OutcomePending:
		return true
	}
	return false
}

// ParseOutcome from string, case-insensitive.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(strings.ToUpper(strings.TrimSpace(s)))
	if !o.Valid() {
		return "", fmt.Errorf("unknown outcome %q (use ACCEPT, REJECT, PARTIAL_ACCEPT, or PENDING_CLARIFICATION)", s)
	}
	return o, nil
}

// Decision is the engine's single output for one evaluation, derived
// deterministically from the winning firing plus the caller's ambiguity flag.
type Decision struct {
	Outcome             Outcome       `json:"outcome"`
	ApplicableRuleID    string        `json:"applicable_rule_id"`
	Tier                AuthorityTier `json:"tier"`
	Salience            int           `json:"salience"`
	Reason              string        `json:"reason"`
	RegulatorySource    string        `json:"regulatory_source"`
	ActionRequired      string        `json:"action_required,omitempty"`
	HumanReviewRequired bool          `json:"human_review_required"`
}

// CaseSummary is a prior decision as seen by the fairness scorer. Retrieval
// is the storage collaborator's job; the scorer only reads these three fields
// plus the identifier used in report previews.
type CaseSummary struct {
	GrievanceID      string        `json:"grievance_id,omitempty"`
	Outcome          Outcome       `json:"outcome"`
	ApplicableRuleID string        `json:"applicable_rule_id"`
	Tier             AuthorityTier `json:"tier"`
}

// Package explain renders what the resolver already decided: the ordered
// trace of an evaluation and a human-readable Markdown narrative of how any
// conflicts were resolved. It performs no resolution of its own and never
// alters the decision it is handed.
package explain

import (
	"fmt"
	"strings"

	"github.com/entreaty/entreaty/internal/models"
)

// BuildTrace assembles the audit record for one evaluation.
func BuildTrace(firings []models.Firing, conflicts []models.Conflict, decision models.Decision, elapsedMs int64) models.Trace {
	return models.Trace{
		Firings:              firings,
		Conflicts:            conflicts,
		Decision:             decision,
		Narrative:            Narrative(conflicts, decision),
		ProcessingDurationMs: elapsedMs,
	}
}

// Narrative produces the Markdown explanation of the resolution. With no
// conflicts it states plainly that a single rule, or only agreeing rules,
// applied.
func Narrative(conflicts []models.Conflict, decision models.Decision) string {
	var b strings.Builder

	if len(conflicts) == 0 {
		if decision.ApplicableRuleID == "" {
			fmt.Fprintf(&b, "No rule applied to this grievance. The decision is %s and the case requires human review.\n", decision.Outcome)
		} else {
			fmt.Fprintf(&b, "No conflicts were detected: only rule `%s` (%s) applied, or every applicable rule agreed on the outcome %s.\n",
				decision.ApplicableRuleID, decision.Tier, decision.Outcome)
		}
		writeDecisionContext(&b, decision, conflicts)
		return b.String()
	}

	fmt.Fprintf(&b, "%d conflict(s) were detected and resolved.\n", len(conflicts))
	for _, c := range conflicts {
		b.WriteString("\n")
		switch c.Kind {
		case models.ConflictAuthority:
			writeAuthorityConflict(&b, c)
		case models.ConflictSalience:
			writeSalienceConflict(&b, c)
		case models.ConflictTemporal:
			if c.ResolutionStrategy == models.StrategyTiebreak {
				writeGenericConflict(&b, c)
			} else {
				writeTemporalConflict(&b, c)
			}
		default:
			writeGenericConflict(&b, c)
		}
	}

	writeDecisionContext(&b, decision, conflicts)
	return b.String()
}

func writeAuthorityConflict(b *strings.Builder, c models.Conflict) {
	b.WriteString("## Authority Conflict\n\n")
	writeRuleList(b, c)
	fmt.Fprintf(b, "\n**Winner:** `%s`\n\n", c.WinningRuleID)
	fmt.Fprintf(b, "**Resolution Strategy:** %s\n\n", c.ResolutionStrategy)
	fmt.Fprintf(b, "%s. National regulations (L1) supersede accreditation standards (L2), "+
		"which supersede university statutes (L3); the rule from the highest tier present "+
		"prevails regardless of salience or date.\n", c.Reason)
}

func writeSalienceConflict(b *strings.Builder, c models.Conflict) {
	b.WriteString("## Salience Conflict\n\n")
	writeRuleList(b, c)
	fmt.Fprintf(b, "\n**Winner:** `%s`\n\n", c.WinningRuleID)
	fmt.Fprintf(b, "**Resolution Strategy:** %s\n\n", c.ResolutionStrategy)
	fmt.Fprintf(b, "%s. When rules of the same authority tier disagree, the higher priority "+
		"score wins; salience ranks exception and mandatory provisions above general, "+
		"discretionary ones.\n", c.Reason)
}

func writeTemporalConflict(b *strings.Builder, c models.Conflict) {
	b.WriteString("## Temporal Conflict\n\n")
	writeRuleList(b, c)
	fmt.Fprintf(b, "\n**Winner:** `%s`\n\n", c.WinningRuleID)
	fmt.Fprintf(b, "**Resolution Strategy:** %s\n\n", c.ResolutionStrategy)
	fmt.Fprintf(b, "%s. When same-tier, same-salience rules disagree, the most recently "+
		"effective regulation prevails, keeping decisions aligned with the current "+
		"regulatory framework.\n", c.Reason)
}

func writeGenericConflict(b *strings.Builder, c models.Conflict) {
	b.WriteString("## Conflict\n\n")
	writeRuleList(b, c)
	fmt.Fprintf(b, "\n**Winner:** `%s`\n\n", c.WinningRuleID)
	fmt.Fprintf(b, "**Resolution Strategy:** %s\n\n", c.ResolutionStrategy)
	fmt.Fprintf(b, "%s.\n", c.Reason)
}

func writeRuleList(b *strings.Builder, c models.Conflict) {
	b.WriteString("**Conflicting Rules:**\n")
	if len(c.Members) == 0 {
		for _, id := range c.ConflictingRuleIDs {
			fmt.Fprintf(b, "- `%s`\n", id)
		}
		return
	}
	for _, m := range c.Members {
		fmt.Fprintf(b, "- `%s` (%s, salience %d) -> %s\n", m.RuleID, m.Tier, m.Salience, m.Outcome)
	}
}

func writeDecisionContext(b *strings.Builder, decision models.Decision, conflicts []models.Conflict) {
	b.WriteString("\n## Final Decision\n\n")
	fmt.Fprintf(b, "**Outcome:** %s\n\n", decision.Outcome)
	if decision.ApplicableRuleID != "" {
		fmt.Fprintf(b, "**Applicable Rule:** `%s`\n\n", decision.ApplicableRuleID)
		fmt.Fprintf(b, "**Authority Tier:** %s\n\n", decision.Tier)
	}
	if decision.RegulatorySource != "" {
		fmt.Fprintf(b, "**Regulatory Source:** %s\n\n", decision.RegulatorySource)
	}
	if len(conflicts) > 0 {
		fmt.Fprintf(b, "After resolving %d conflict(s), this decision carries the highest "+
			"authority applicable to the grievance.\n\n", len(conflicts))
	}
	fmt.Fprintf(b, "**Reason:** %s\n\n", decision.Reason)
	if decision.ActionRequired != "" {
		fmt.Fprintf(b, "**Action Required:** %s\n\n", decision.ActionRequired)
	}
	fmt.Fprintf(b, "**Human Review Required:** %s\n", yesNo(decision.HumanReviewRequired))
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

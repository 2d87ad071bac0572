package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entreaty/entreaty/internal/engine"
	"github.com/entreaty/entreaty/internal/models"
	"github.com/entreaty/entreaty/internal/rules"
)

// ANSI colors for terminal output
const (
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorBold   = "\033[1m"
	colorReset  = "\033[0m"
)

// FormatEvaluateJSON raw json
func FormatEvaluateJSON(result *engine.Result) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}

// FormatEvaluateText human readable
func FormatEvaluateText(result *engine.Result) string {
	var sb strings.Builder

	d := result.Trace.Decision

	// Header with outcome
	sb.WriteString(fmt.Sprintf("%s%sDecision: %s%s\n", colorBold, outcomeColor(d.Outcome), d.Outcome, colorReset))
	if d.ApplicableRuleID != "" {
		sb.WriteString(fmt.Sprintf("Applicable rule: %s (%s, salience %d)\n", d.ApplicableRuleID, d.Tier, d.Salience))
	}
	sb.WriteString(fmt.Sprintf("Reason: %s\n", d.Reason))
	if d.RegulatorySource != "" {
		sb.WriteString(fmt.Sprintf("Regulatory source: %s\n", d.RegulatorySource))
	}
	if d.ActionRequired != "" {
		sb.WriteString(fmt.Sprintf("Action required: %s\n", d.ActionRequired))
	}
	if d.HumanReviewRequired {
		sb.WriteString(fmt.Sprintf("%sHuman review required%s\n", colorYellow, colorReset))
	}
	sb.WriteString("\n")

	// Rule firings
	fired, skipped := 0, 0
	for _, f := range result.Trace.Firings {
		if f.Fired {
			fired++
		} else {
			skipped++
		}
	}
	sb.WriteString(fmt.Sprintf("Rules evaluated: %d (%d fired, %d not applicable)\n", len(result.Trace.Firings), fired, skipped))
	for _, f := range result.Trace.Firings {
		if f.Fired {
			sb.WriteString(fmt.Sprintf("%s✓%s %s (%s, salience %d)\n", colorGreen, colorReset, f.RuleID, f.Tier, f.Salience))
		} else {
			sb.WriteString(fmt.Sprintf("- %s\n", f.RuleID))
		}
		for _, check := range f.ConditionsChecked {
			if check.Error != "" {
				sb.WriteString(fmt.Sprintf("    %s✗ %s (%s)%s\n", colorRed, check.Expression, check.Error, colorReset))
			}
		}
	}
	sb.WriteString("\n")

	// Conflicts
	if len(result.Trace.Conflicts) > 0 {
		sb.WriteString(fmt.Sprintf("%sConflicts resolved: %d%s\n", colorYellow, len(result.Trace.Conflicts), colorReset))
		for _, c := range result.Trace.Conflicts {
			sb.WriteString(fmt.Sprintf("- %s: %s wins via %s\n", c.Kind, c.WinningRuleID, c.ResolutionStrategy))
		}
		sb.WriteString("\n")
	}

	// Consistency check
	fr := result.Fairness
	sb.WriteString(fmt.Sprintf("Consistency score: %.4f (threshold %.2f)\n", fr.ConsistencyScore, fr.Threshold))
	sb.WriteString(fmt.Sprintf("Similar cases considered: %d\n", fr.SimilarCasesConsidered))
	if fr.AnomalyDetected {
		sb.WriteString(fmt.Sprintf("%sAnomaly: %s%s\n", colorRed, fr.AnomalyReason, colorReset))
	}
	sb.WriteString(fmt.Sprintf("Recommendation: %s\n", fr.Recommendation))

	// Narrative explanation
	if result.Trace.Narrative != "" {
		sb.WriteString("\n")
		sb.WriteString(result.Trace.Narrative)
	}

	return sb.String()
}

func outcomeColor(o models.Outcome) string {
	switch o {
	case models.OutcomeAccept, models.OutcomePartialAccept:
		return colorGreen
	case models.OutcomeReject:
		return colorRed
	default:
		return colorYellow
	}
}

func joinPresetNames() string {
	return strings.Join(rules.ListPresetNames(), ", ")
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/entreaty/entreaty/internal/engine"
	"github.com/entreaty/entreaty/internal/models"
	"github.com/entreaty/entreaty/internal/observability/receipt"
	"github.com/entreaty/entreaty/internal/rules"
	"github.com/spf13/cobra"
)

// rulesCmd group
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Ruleset management commands",
	Long:  `Validate, document, and compare adjudication rulesets.`,
}

// rulesValidateCmd
var rulesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a ruleset",
	Long: `Parses a ruleset and checks every rule: identifiers, tiers, saliences,
outcomes, and condition expressions must all be well formed.

Example:
  entreaty rules validate --rules ./rules.yaml`,
	SilenceUsage: true,
	RunE:         runRulesValidate,
}

// rulesExplainCmd outputs ruleset documentation
var rulesExplainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Output ruleset contents with regulatory metadata",
	Long: `Display a ruleset with each rule's tier, salience, conditions, outcome,
and regulatory source in human-readable Markdown or machine-readable JSON.

Example:
  entreaty rules explain --preset ugc-baseline
  entreaty rules explain --rules ./rules.yaml --json
  entreaty rules explain --preset ugc-baseline --output rules.md`,
	SilenceUsage: true,
	RunE:         runRulesExplain,
}

// rulesDiffCmd compares two rulesets
var rulesDiffCmd = &cobra.Command{
	Use:   "diff --old <ruleset> --new <ruleset>",
	Short: "Compare two rulesets for regulatory drift",
	Long: `Compares two rulesets and reports added, removed, and changed rules with
a severity per change. Changes to outcomes, tiers, or national-tier rules are
critical; salience, date, and condition changes are moderate.

Either side may be a YAML file path or a preset name.

Example:
  entreaty rules diff --old ugc-baseline --new ./rules.yaml --fail-on critical`,
	SilenceUsage: true,
	RunE:         runRulesDiff,
}

var (
	rvRulesFlag  string
	rvPresetFlag string

	reRulesFlag  string
	rePresetFlag string
	reJSONFlag   bool
	reOutputFlag string

	rdOldFlag    string
	rdNewFlag    string
	rdFormatFlag string
	rdFailFlag   string
)

func init() {
	rulesValidateCmd.Flags().StringVarP(&rvRulesFlag, "rules", "r", "", "Path to ruleset YAML file")
	rulesValidateCmd.Flags().StringVar(&rvPresetFlag, "preset", "", "Built-in ruleset preset")

	rulesExplainCmd.Flags().StringVarP(&reRulesFlag, "rules", "r", "", "Path to ruleset YAML file")
	rulesExplainCmd.Flags().StringVar(&rePresetFlag, "preset", "", "Built-in ruleset preset")
	rulesExplainCmd.Flags().BoolVar(&reJSONFlag, "json", false, "Output JSON instead of Markdown")
	rulesExplainCmd.Flags().StringVarP(&reOutputFlag, "output", "o", "", "Write output to file (default: stdout)")

	rulesDiffCmd.Flags().StringVar(&rdOldFlag, "old", "", "Old ruleset: file path or preset name (required)")
	rulesDiffCmd.Flags().StringVar(&rdNewFlag, "new", "", "New ruleset: file path or preset name (required)")
	rulesDiffCmd.Flags().StringVar(&rdFormatFlag, "format", "text", "Output format: text or json")
	rulesDiffCmd.Flags().StringVar(&rdFailFlag, "fail-on", "critical", "Severity threshold for failure: critical, moderate, or info")
	_ = rulesDiffCmd.MarkFlagRequired("old")
	_ = rulesDiffCmd.MarkFlagRequired("new")

	rulesCmd.AddCommand(rulesValidateCmd)
	rulesCmd.AddCommand(rulesExplainCmd)
	rulesCmd.AddCommand(rulesDiffCmd)
}

// GetRulesCmd export
func GetRulesCmd() *cobra.Command {
	return rulesCmd
}

func runRulesValidate(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "entreaty rules validate", os.Args[1:])
	source, name := rulesetRef(rvRulesFlag, rvPresetFlag)
	defer func() {
		_ = sess.Finish(err, receipt.WithRuleset(source, name))
	}()

	ruleset, err := loadRuleset(rvRulesFlag, rvPresetFlag)
	if err != nil {
		return err
	}

	evaluator, err := engine.New()
	if err != nil {
		return fmt.Errorf("failed to create evaluator: %w", err)
	}

	if err = rules.Validate(ruleset, evaluator); err != nil {
		return err
	}

	fmt.Printf("%s✓ %s: %d rule(s) valid%s\n", colorGreen, ruleset.Name, len(ruleset.Rules), colorReset)
	return nil
}

// RulesExplainOutput is the JSON output schema
type RulesExplainOutput struct {
	SchemaVersion string        `json:"schema_version"`
	Source        RulesetSource `json:"source"`
	Name          string        `json:"name"`
	GeneratedAt   string        `json:"generated_at"`
	Rules         []models.Rule `json:"rules"`
}

// RulesetSource identifies where the ruleset came from
type RulesetSource struct {
	Type string `json:"type"` // "preset" or "file"
	Name string `json:"name"` // preset name or file path
}

func runRulesExplain(cmd *cobra.Command, args []string) error {
	if reRulesFlag != "" && rePresetFlag != "" {
		return fmt.Errorf("cannot use both --rules and --preset; choose one")
	}

	ruleset, err := loadRuleset(reRulesFlag, rePresetFlag)
	if err != nil {
		return err
	}
	sourceType, sourceName := rulesetRef(reRulesFlag, rePresetFlag)
	source := RulesetSource{Type: sourceType, Name: sourceName}

	var output string
	if reJSONFlag {
		output, err = generateRulesJSON(ruleset, source)
	} else {
		output, err = generateRulesMarkdown(ruleset, source)
	}
	if err != nil {
		return err
	}

	if reOutputFlag != "" {
		if err := os.WriteFile(reOutputFlag, []byte(output), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Printf("Output written to %s\n", reOutputFlag)
		return nil
	}

	fmt.Print(output)
	return nil
}

// generateRulesJSON produces JSON output
func generateRulesJSON(rs *models.RuleSet, source RulesetSource) (string, error) {
	output := RulesExplainOutput{
		SchemaVersion: "1.0",
		Source:        source,
		Name:          rs.Name,
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339Nano),
		Rules:         rules.Sorted(rs),
	}

	jsonBytes, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(jsonBytes) + "\n", nil
}

// generateRulesMarkdown produces Markdown table output. Rules are listed in
// precedence order, strongest first, so the table doubles as documentation
// of how conflicts would resolve.
func generateRulesMarkdown(rs *models.RuleSet, source RulesetSource) (string, error) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Ruleset: %s\n\n", rs.Name))
	sb.WriteString(fmt.Sprintf("**Source**: %s (`%s`)\n\n", source.Type, source.Name))

	sb.WriteString("| Rule | Tier | Salience | Effective | Conditions | Outcome | Regulatory Source |\n")
	sb.WriteString("|------|------|----------|-----------|------------|---------|-------------------|\n")

	for _, rule := range rules.Sorted(rs) {
		effective := "-"
		if !rule.EffectiveDate.IsZero() {
			effective = rule.EffectiveDate.Format("2006-01-02")
		}

		conds := make([]string, 0, len(rule.Conditions)+1)
		if rule.AppliesTo != "" {
			conds = append(conds, fmt.Sprintf("type == %q", rule.AppliesTo))
		}
		conds = append(conds, rule.Conditions...)

		regSource := rule.Then.RegulatorySource
		if regSource == "" {
			regSource = "-"
		}

		sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s | `%s` | %s | %s |\n",
			rule.ID, rule.Tier, rule.Salience, effective,
			truncateCondition(strings.Join(conds, " && "), 120),
			rule.Then.Outcome, regSource))
	}

	sb.WriteString("\n")
	return sb.String(), nil
}

// truncateCondition shortens CEL expressions for table display
func truncateCondition(expr string, maxLen int) string {
	expr = strings.ReplaceAll(expr, "\n", " ")
	expr = strings.Join(strings.Fields(expr), " ")

	if len(expr) <= maxLen {
		return expr
	}
	return expr[:maxLen-3] + "..."
}

func runRulesDiff(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "entreaty rules diff", os.Args[1:])
	var receiptOpts []receipt.Option
	defer func() {
		_ = sess.Finish(err, receiptOpts...)
	}()

	if rdFormatFlag != "text" && rdFormatFlag != "json" {
		return fmt.Errorf("invalid format: %s (use text or json)", rdFormatFlag)
	}

	failOn, err := ParseFailOnLevel(rdFailFlag)
	if err != nil {
		return err
	}

	oldSet, err := loadRulesetRef(rdOldFlag)
	if err != nil {
		return fmt.Errorf("failed to load old ruleset: %w", err)
	}
	newSet, err := loadRulesetRef(rdNewFlag)
	if err != nil {
		return fmt.Errorf("failed to load new ruleset: %w", err)
	}

	result, err := rules.Compare(oldSet, newSet)
	if err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}

	critical, moderate, info := countChanges(result)
	receiptOpts = append(receiptOpts, receipt.WithDrift(critical, moderate, info,
		fmt.Sprintf("%d change(s) between %s and %s", len(result.Changes), rdOldFlag, rdNewFlag)))

	if rdFormatFlag == "json" {
		jsonBytes, jsonErr := json.MarshalIndent(result, "", "  ")
		if jsonErr != nil {
			return fmt.Errorf("failed to format JSON output: %w", jsonErr)
		}
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Print(formatDiffText(result, rdOldFlag, rdNewFlag))
	}

	if shouldFailOnChanges(result, failOn) {
		if rdFormatFlag == "json" {
			os.Exit(1)
		}
		return fmt.Errorf("regulatory drift detected: %d change(s) at or above %s", len(result.Changes), failOn)
	}

	return nil
}

// loadRulesetRef resolves a file path or preset name
func loadRulesetRef(ref string) (*models.RuleSet, error) {
	if rs := rules.GetPreset(ref); rs != nil {
		return rs, nil
	}
	return rules.Load(ref)
}

func countChanges(result *rules.DiffResult) (critical, moderate, info int) {
	for _, c := range result.Changes {
		switch c.Severity {
		case rules.SeverityCritical:
			critical++
		case rules.SeverityModerate:
			moderate++
		default:
			info++
		}
	}
	return critical, moderate, info
}

func shouldFailOnChanges(result *rules.DiffResult, failOn FailOnLevel) bool {
	if !result.HasChanges {
		return false
	}
	for _, c := range result.Changes {
		if failOn.ShouldFail(c.Severity) {
			return true
		}
	}
	return false
}

func formatDiffText(result *rules.DiffResult, oldRef, newRef string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Comparing %s -> %s\n\n", oldRef, newRef))

	if !result.HasChanges {
		sb.WriteString(fmt.Sprintf("%s✓ No changes detected%s\n", colorGreen, colorReset))
		return sb.String()
	}

	for _, c := range result.Changes {
		color := ""
		switch c.Severity {
		case rules.SeverityCritical:
			color = colorRed
		case rules.SeverityModerate:
			color = colorYellow
		}
		sb.WriteString(fmt.Sprintf("%s[%s] %s %s: %s%s\n",
			color, strings.ToUpper(rules.SeverityString(c.Severity)), c.Type, c.RuleID, c.Message, colorReset))
	}

	critical, moderate, info := countChanges(result)
	sb.WriteString(fmt.Sprintf("\n%d change(s): %d critical, %d moderate, %d info\n",
		len(result.Changes), critical, moderate, info))

	return sb.String()
}

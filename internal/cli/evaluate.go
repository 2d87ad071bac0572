package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/entreaty/entreaty/internal/engine"
	"github.com/entreaty/entreaty/internal/fairness"
	"github.com/entreaty/entreaty/internal/models"
	"github.com/entreaty/entreaty/internal/observability"
	"github.com/entreaty/entreaty/internal/observability/logging"
	otelobs "github.com/entreaty/entreaty/internal/observability/otel"
	"github.com/entreaty/entreaty/internal/observability/receipt"
	"github.com/entreaty/entreaty/internal/rules"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// evaluateCmd adjudicates a single grievance
var evaluateCmd = &cobra.Command{
	Use:   "evaluate --grievance <facts.json>",
	Short: "Evaluate a grievance against a ruleset",
	Long: `Evaluates grievance facts against a ruleset, resolves conflicts between
fired rules, and prints the decision with its trace and consistency check.

Grievance facts are a JSON document with a type and parameters:

  {"type": "ATTENDANCE_SHORTAGE", "parameters": {"attendance_percentage": 68}}

Prior cases for the consistency check can be supplied with --similar as a
JSON array of case summaries. Without it the check trivially passes.

Examples:
  # Evaluate with the built-in UGC baseline ruleset
  entreaty evaluate --grievance facts.json

  # Evaluate against a custom ruleset file
  entreaty evaluate --grievance facts.json --rules ./rules.yaml

  # Compare against prior cases and fail the build when review is needed
  entreaty evaluate --grievance facts.json --similar cases.json --fail-on-review

  # JSON output for pipelines
  entreaty evaluate --grievance facts.json --format=json`,
	RunE:         runEvaluate,
	SilenceUsage: true,
}

var (
	evalGrievanceFlag string
	evalStudentFlag   string
	evalRulesFlag     string
	evalPresetFlag    string
	evalSimilarFlag   string
	evalThresholdFlag float64
	evalAmbiguousFlag bool
	evalFormatFlag    string
	evalOutputFlag    string
	evalFailFlag      bool
)

func init() {
	evaluateCmd.Flags().StringVarP(&evalGrievanceFlag, "grievance", "g", "", "Path to grievance facts JSON (required)")
	evaluateCmd.Flags().StringVar(&evalStudentFlag, "student", "", "Student identifier to attach to the case record")
	evaluateCmd.Flags().StringVarP(&evalRulesFlag, "rules", "r", "", "Path to ruleset YAML file")
	evaluateCmd.Flags().StringVar(&evalPresetFlag, "preset", "", "Built-in ruleset preset (default: ugc-baseline)")
	evaluateCmd.Flags().StringVar(&evalSimilarFlag, "similar", "", "Path to prior case summaries JSON for the consistency check")
	evaluateCmd.Flags().Float64Var(&evalThresholdFlag, "threshold", fairness.DefaultThreshold, "Consistency score threshold")
	evaluateCmd.Flags().BoolVar(&evalAmbiguousFlag, "ambiguous", false, "Mark the grievance as flagged ambiguous (forces human review)")
	evaluateCmd.Flags().StringVar(&evalFormatFlag, "format", "text", "Output format: text or json")
	evaluateCmd.Flags().StringVarP(&evalOutputFlag, "output", "o", "", "Write output to file (default: stdout)")
	evaluateCmd.Flags().BoolVar(&evalFailFlag, "fail-on-review", false, "Exit non-zero when the decision requires human review")
	_ = evaluateCmd.MarkFlagRequired("grievance")
}

// GetEvaluateCmd export
func GetEvaluateCmd() *cobra.Command {
	return evaluateCmd
}

func runEvaluate(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "entreaty evaluate", os.Args[1:])
	var receiptOpts []receipt.Option

	rulesetSource, rulesetName := rulesetRef(evalRulesFlag, evalPresetFlag)
	defer func() {
		receiptOpts = append(receiptOpts, receipt.WithRuleset(rulesetSource, rulesetName))
		_ = sess.Finish(err, receiptOpts...)
	}()

	log := logging.From(ctx)
	start := time.Now()

	// Start OTel span if enabled
	if h := otelobs.From(ctx); h != nil {
		var span trace.Span
		ctx, span = h.Tracer.Start(ctx, "entreaty.evaluate",
			trace.WithAttributes(
				attribute.String("entreaty.op_id", observability.OpID(ctx)),
				attribute.String("entreaty.command", "evaluate"),
				attribute.String("entreaty.ruleset", rulesetName),
			))
		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed")
			} else {
				span.SetStatus(codes.Ok, "success")
			}
			span.End()
		}()
	}

	log.Event(ctx, "evaluate.start", nil)

	var resultStatus string
	defer func() {
		log.Event(ctx, "evaluate.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      resultStatus,
		})
	}()

	if evalFormatFlag != "text" && evalFormatFlag != "json" {
		resultStatus = "fail"
		return fmt.Errorf("invalid format: %s (use text or json)", evalFormatFlag)
	}
	if evalThresholdFlag < 0 || evalThresholdFlag > 1 {
		resultStatus = "fail"
		return fmt.Errorf("threshold must be between 0 and 1, got %g", evalThresholdFlag)
	}

	facts, loadErr := loadGrievanceFacts(evalGrievanceFlag)
	if loadErr != nil {
		resultStatus = "fail"
		return loadErr
	}

	ruleset, loadErr := loadRuleset(evalRulesFlag, evalPresetFlag)
	if loadErr != nil {
		resultStatus = "fail"
		return loadErr
	}

	evaluator, engErr := engine.New()
	if engErr != nil {
		resultStatus = "fail"
		return fmt.Errorf("failed to create evaluator: %w", engErr)
	}

	if valErr := rules.Validate(ruleset, evaluator); valErr != nil {
		resultStatus = "fail"
		return valErr
	}

	var similar []models.CaseSummary
	if evalSimilarFlag != "" {
		similar, loadErr = loadSimilarCases(evalSimilarFlag)
		if loadErr != nil {
			resultStatus = "fail"
			return loadErr
		}
	}

	svc := engine.NewService(evaluator, fairness.NewScorer(evalThresholdFlag), nil)
	result := svc.Evaluate(ctx, engine.Request{
		StudentID:       evalStudentFlag,
		Facts:           facts,
		Rules:           ruleset.Rules,
		AmbiguityReview: evalAmbiguousFlag,
		SimilarCases:    similar,
	})

	receiptOpts = append(receiptOpts,
		receipt.WithDecision(receipt.DecisionSummary{
			Outcome:             string(result.Trace.Decision.Outcome),
			ApplicableRuleID:    result.Trace.Decision.ApplicableRuleID,
			Tier:                string(result.Trace.Decision.Tier),
			HumanReviewRequired: result.Trace.Decision.HumanReviewRequired,
		}),
		receipt.WithConflicts(summarizeConflicts(result.Trace.Conflicts)),
		receipt.WithFairness(receipt.FairnessSummary{
			ConsistencyScore: result.Fairness.ConsistencyScore,
			AnomalyDetected:  result.Fairness.AnomalyDetected,
			Recommendation:   result.Fairness.Recommendation,
		}),
	)

	var rendered string
	if evalFormatFlag == "json" {
		jsonOut, jsonErr := FormatEvaluateJSON(&result)
		if jsonErr != nil {
			resultStatus = "fail"
			return fmt.Errorf("failed to format JSON output: %w", jsonErr)
		}
		rendered = string(jsonOut) + "\n"
	} else {
		rendered = FormatEvaluateText(&result)
	}

	if evalOutputFlag != "" {
		if writeErr := os.WriteFile(evalOutputFlag, []byte(rendered), 0644); writeErr != nil {
			resultStatus = "fail"
			return fmt.Errorf("failed to write output file: %w", writeErr)
		}
		fmt.Printf("Output written to %s\n", evalOutputFlag)
	} else {
		fmt.Print(rendered)
	}

	if evalFailFlag && result.Trace.Decision.HumanReviewRequired {
		resultStatus = "fail"
		// For JSON format, exit without returning error to avoid "Error: ..." corrupting stdout
		if evalFormatFlag == "json" {
			os.Exit(1)
		}
		return fmt.Errorf("human review required")
	}

	resultStatus = "success"
	return nil
}

// loadGrievanceFacts reads and checks facts JSON
func loadGrievanceFacts(path string) (models.GrievanceFacts, error) {
	var facts models.GrievanceFacts

	data, err := os.ReadFile(path)
	if err != nil {
		return facts, fmt.Errorf("failed to read grievance file: %w", err)
	}
	if err := json.Unmarshal(data, &facts); err != nil {
		return facts, fmt.Errorf("failed to parse grievance JSON: %w", err)
	}
	if facts.Type == "" {
		return facts, fmt.Errorf("grievance must have a type")
	}
	return facts, nil
}

// loadSimilarCases reads prior case summaries JSON
func loadSimilarCases(path string) ([]models.CaseSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read similar cases file: %w", err)
	}
	var cases []models.CaseSummary
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("failed to parse similar cases JSON: %w", err)
	}
	return cases, nil
}

// loadRuleset loads from file or preset; preset takes precedence.
// With neither flag set, the ugc-baseline preset applies.
func loadRuleset(path string, preset string) (*models.RuleSet, error) {
	if path != "" && preset != "" {
		return nil, fmt.Errorf("cannot use both --rules and --preset; choose one")
	}

	if path != "" {
		return rules.Load(path)
	}

	name := preset
	if name == "" {
		name = "ugc-baseline"
	}
	if rs := rules.GetPreset(name); rs != nil {
		return rs, nil
	}
	return nil, fmt.Errorf("unknown preset: %s (valid: %s)", name, joinPresetNames())
}

// rulesetRef maps flags to a receipt ruleset reference
func rulesetRef(path string, preset string) (source, name string) {
	if path != "" {
		return "file", path
	}
	if preset != "" {
		return "preset", preset
	}
	return "preset", "ugc-baseline"
}

func summarizeConflicts(conflicts []models.Conflict) receipt.ConflictSummary {
	var s receipt.ConflictSummary
	for _, c := range conflicts {
		switch c.Kind {
		case models.ConflictAuthority:
			s.Authority++
		case models.ConflictSalience:
			s.Salience++
		case models.ConflictTemporal:
			s.Temporal++
		}
		s.Total++
	}
	return s
}

package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/entreaty/entreaty/internal/engine"
	"github.com/entreaty/entreaty/internal/models"
	"github.com/entreaty/entreaty/internal/observability/receipt"
)

func sampleResult() *engine.Result {
	return &engine.Result{
		Trace: models.Trace{
			Firings: []models.Firing{
				{
					RuleID:   "UGC_Attendance_75Percent_Minimum",
					Tier:     models.TierNational,
					Salience: 1500,
					Fired:    true,
				},
				{RuleID: "University_Medical_Excuse_Attendance"},
			},
			Conflicts: []models.Conflict{
				{
					Kind:               models.ConflictAuthority,
					WinningRuleID:      "UGC_Attendance_75Percent_Minimum",
					ResolutionStrategy: models.StrategyAuthority,
				},
			},
			Decision: models.Decision{
				Outcome:          models.OutcomeReject,
				ApplicableRuleID: "UGC_Attendance_75Percent_Minimum",
				Tier:             models.TierNational,
				Salience:         1500,
				Reason:           "Attendance is below the UGC-mandated 75% minimum",
				RegulatorySource: "UGC Regulations 2018, Section 4.2",
			},
			Narrative: "## Authority Conflict\n",
		},
		Fairness: models.FairnessReport{
			ConsistencyScore:       0.92,
			Threshold:              0.85,
			MeetsThreshold:         true,
			SimilarCasesConsidered: 4,
			Recommendation:         models.RecommendationConsistent,
		},
	}
}

func TestFormatEvaluateText(t *testing.T) {
	out := FormatEvaluateText(sampleResult())

	for _, want := range []string{
		"Decision: REJECT",
		"Applicable rule: UGC_Attendance_75Percent_Minimum (L1_National, salience 1500)",
		"Reason: Attendance is below the UGC-mandated 75% minimum",
		"Regulatory source: UGC Regulations 2018, Section 4.2",
		"Rules evaluated: 2 (1 fired, 1 not applicable)",
		"Conflicts resolved: 1",
		"AUTHORITY: UGC_Attendance_75Percent_Minimum wins via " + models.StrategyAuthority,
		"Consistency score: 0.9200 (threshold 0.85)",
		"Similar cases considered: 4",
		"Recommendation: consistent",
		"## Authority Conflict",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatEvaluateText_HumanReviewAndAnomaly(t *testing.T) {
	result := sampleResult()
	result.Trace.Decision.HumanReviewRequired = true
	result.Fairness.AnomalyDetected = true
	result.Fairness.AnomalyReason = "decision outcome differs from most common outcome"
	result.Fairness.Recommendation = models.RecommendationHumanReview

	out := FormatEvaluateText(result)

	if !strings.Contains(out, "Human review required") {
		t.Errorf("missing review banner:\n%s", out)
	}
	if !strings.Contains(out, "Anomaly: decision outcome differs") {
		t.Errorf("missing anomaly line:\n%s", out)
	}
}

func TestFormatEvaluateJSON(t *testing.T) {
	data, err := FormatEvaluateJSON(sampleResult())
	if err != nil {
		t.Fatalf("FormatEvaluateJSON failed: %v", err)
	}

	var parsed engine.Result
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Trace.Decision.Outcome != models.OutcomeReject {
		t.Errorf("outcome = %s", parsed.Trace.Decision.Outcome)
	}
	if parsed.Fairness.ConsistencyScore != 0.92 {
		t.Errorf("score = %v", parsed.Fairness.ConsistencyScore)
	}
}

func TestLoadGrievanceFacts(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "facts.json")
	content := `{"type": "ATTENDANCE_SHORTAGE", "parameters": {"attendance_percentage": 68}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	facts, err := loadGrievanceFacts(path)
	if err != nil {
		t.Fatalf("loadGrievanceFacts failed: %v", err)
	}
	if facts.Type != models.TypeAttendanceShortage {
		t.Errorf("type = %q", facts.Type)
	}
	if facts.Parameters["attendance_percentage"] != 68.0 {
		t.Errorf("parameters = %v", facts.Parameters)
	}

	// Missing type
	badPath := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(badPath, []byte(`{"parameters": {}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadGrievanceFacts(badPath); err == nil {
		t.Error("facts without a type should be rejected")
	}

	// Missing file
	if _, err := loadGrievanceFacts(filepath.Join(dir, "nope.json")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestLoadRuleset(t *testing.T) {
	// Default is the ugc-baseline preset.
	rs, err := loadRuleset("", "")
	if err != nil {
		t.Fatalf("default ruleset failed: %v", err)
	}
	if rs.Name != "UGC Baseline Regulations" {
		t.Errorf("default ruleset = %q", rs.Name)
	}

	if _, err := loadRuleset("", "no-such-preset"); err == nil {
		t.Error("unknown preset should fail")
	}
	if _, err := loadRuleset("rules.yaml", "ugc-baseline"); err == nil {
		t.Error("both flags at once should fail")
	}
}

func TestRulesetRef(t *testing.T) {
	if src, name := rulesetRef("rules.yaml", ""); src != "file" || name != "rules.yaml" {
		t.Errorf("file ref = %s/%s", src, name)
	}
	if src, name := rulesetRef("", "custom"); src != "preset" || name != "custom" {
		t.Errorf("preset ref = %s/%s", src, name)
	}
	if src, name := rulesetRef("", ""); src != "preset" || name != "ugc-baseline" {
		t.Errorf("default ref = %s/%s", src, name)
	}
}

func TestSummarizeConflicts(t *testing.T) {
	conflicts := []models.Conflict{
		{Kind: models.ConflictAuthority},
		{Kind: models.ConflictAuthority},
		{Kind: models.ConflictSalience},
		{Kind: models.ConflictTemporal},
	}

	got := summarizeConflicts(conflicts)
	want := receipt.ConflictSummary{Authority: 2, Salience: 1, Temporal: 1, Total: 4}
	if got != want {
		t.Errorf("summary = %+v, want %+v", got, want)
	}
}

package engine

import (
	"context"
	"testing"

	"github.com/entreaty/entreaty/internal/fairness"
	"github.com/entreaty/entreaty/internal/models"
	"github.com/entreaty/entreaty/internal/store"
)

func newService(t *testing.T, records *store.Store) *Service {
	t.Helper()
	ev, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return NewService(ev, fairness.NewScorer(0), records)
}

func feeWaiverRules() []models.Rule {
	return []models.Rule{
		{
			ID:        "National_SC_ST_Fee_Waiver",
			Tier:      models.TierNational,
			Salience:  1500,
			AppliesTo: models.TypeFeeWaiver,
			Conditions: []string{
				`params.category in ["SC", "ST"]`,
			},
			Then: models.RuleOutcome{
				Outcome:          models.OutcomeAccept,
				Reason:           "Full fee waiver mandated for SC/ST category students",
				RegulatorySource: "Govt. of India Post-Matric Scholarship Scheme",
			},
		},
		{
			ID:        "University_Fee_Waiver_General",
			Tier:      models.TierUniversity,
			Salience:  500,
			AppliesTo: models.TypeFeeWaiver,
			Conditions: []string{
				"params.family_income > 500000.0",
			},
			Then: models.RuleOutcome{
				Outcome: models.OutcomeReject,
				Reason:  "Family income exceeds the waiver ceiling",
			},
		},
	}
}

func TestServiceEvaluate_FullPipeline(t *testing.T) {
	svc := newService(t, nil)

	result := svc.Evaluate(context.Background(), Request{
		Facts: models.GrievanceFacts{
			Type:       models.TypeFeeWaiver,
			Parameters: map[string]any{"category": "SC", "family_income": 600000.0},
		},
		Rules: feeWaiverRules(),
	})

	d := result.Trace.Decision
	if d.Outcome != models.OutcomeAccept {
		t.Errorf("outcome = %s, want ACCEPT (national mandate wins)", d.Outcome)
	}
	if d.ApplicableRuleID != "National_SC_ST_Fee_Waiver" {
		t.Errorf("applicable rule = %q", d.ApplicableRuleID)
	}
	if len(result.Trace.Conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(result.Trace.Conflicts))
	}
	if result.Trace.Conflicts[0].Kind != models.ConflictAuthority {
		t.Errorf("conflict kind = %s, want AUTHORITY", result.Trace.Conflicts[0].Kind)
	}
	if result.Trace.Narrative == "" {
		t.Error("trace must carry a narrative")
	}
	if result.Fairness.ConsistencyScore != 1.0 {
		t.Errorf("score with no prior cases = %v, want 1.0", result.Fairness.ConsistencyScore)
	}
	if result.GrievanceID != "" || result.DecisionID != "" {
		t.Error("without a store no ids should be assigned")
	}
}

func TestServiceEvaluate_NoRuleMatches(t *testing.T) {
	svc := newService(t, nil)

	result := svc.Evaluate(context.Background(), Request{
		Facts: models.GrievanceFacts{Type: models.TypeTranscriptDelay},
		Rules: feeWaiverRules(),
	})

	d := result.Trace.Decision
	if d.Outcome != models.OutcomePending {
		t.Errorf("outcome = %s, want PENDING_CLARIFICATION", d.Outcome)
	}
	if !d.HumanReviewRequired {
		t.Error("unmatched grievance must require human review")
	}
}

func TestServiceEvaluate_SuppliedSimilarCases(t *testing.T) {
	svc := newService(t, nil)

	similar := []models.CaseSummary{
		{Outcome: models.OutcomeReject, ApplicableRuleID: "University_Fee_Waiver_General", Tier: models.TierUniversity},
		{Outcome: models.OutcomeReject, ApplicableRuleID: "University_Fee_Waiver_General", Tier: models.TierUniversity},
		{Outcome: models.OutcomeReject, ApplicableRuleID: "University_Fee_Waiver_General", Tier: models.TierUniversity},
	}

	result := svc.Evaluate(context.Background(), Request{
		Facts: models.GrievanceFacts{
			Type:       models.TypeFeeWaiver,
			Parameters: map[string]any{"category": "SC"},
		},
		Rules:        feeWaiverRules(),
		SimilarCases: similar,
	})

	fr := result.Fairness
	if fr.SimilarCasesConsidered != 3 {
		t.Errorf("similar cases considered = %d, want 3", fr.SimilarCasesConsidered)
	}
	if fr.ConsistencyScore != 0.0 {
		t.Errorf("score = %v, want 0 (nothing matches)", fr.ConsistencyScore)
	}
	if !fr.AnomalyDetected {
		t.Error("ACCEPT against a uniform REJECT history must be an anomaly")
	}
	if fr.Recommendation != models.RecommendationHumanReview {
		t.Errorf("recommendation = %q, want %q", fr.Recommendation, models.RecommendationHumanReview)
	}
}

func TestServiceEvaluate_StorePersistsAndFeedsSimilarCases(t *testing.T) {
	records := store.New()
	svc := newService(t, records)

	req := Request{
		StudentID: "STU2024001",
		Facts: models.GrievanceFacts{
			Type:       models.TypeFeeWaiver,
			Parameters: map[string]any{"category": "SC"},
		},
		Rules: feeWaiverRules(),
	}

	first := svc.Evaluate(context.Background(), req)
	if first.GrievanceID == "" || first.DecisionID == "" {
		t.Fatal("store-backed evaluation must assign ids")
	}
	// The very first case has no history to compare against.
	if first.Fairness.SimilarCasesConsidered != 0 {
		t.Errorf("first case considered %d prior cases, want 0", first.Fairness.SimilarCasesConsidered)
	}

	if _, ok := records.Grievance(first.GrievanceID); !ok {
		t.Error("grievance record missing")
	}
	if _, ok := records.Decision(first.DecisionID); !ok {
		t.Error("decision record missing")
	}
	if _, ok := records.DecisionByGrievance(first.GrievanceID); !ok {
		t.Error("decision not reachable by grievance id")
	}

	second := svc.Evaluate(context.Background(), req)
	if second.Fairness.SimilarCasesConsidered != 1 {
		t.Errorf("second case considered %d prior cases, want 1", second.Fairness.SimilarCasesConsidered)
	}
	if second.Fairness.ConsistencyScore != 1.0 {
		t.Errorf("identical repeat case score = %v, want 1.0", second.Fairness.ConsistencyScore)
	}
}

func TestServiceEvaluate_AmbiguityFlagPropagates(t *testing.T) {
	svc := newService(t, nil)

	result := svc.Evaluate(context.Background(), Request{
		Facts: models.GrievanceFacts{
			Type:       models.TypeFeeWaiver,
			Parameters: map[string]any{"category": "SC"},
		},
		Rules:           feeWaiverRules(),
		AmbiguityReview: true,
	})

	if !result.Trace.Decision.HumanReviewRequired {
		t.Error("ambiguity review flag must force human review on the decision")
	}
}

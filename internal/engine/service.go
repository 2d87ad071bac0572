package engine

import (
	"context"
	"time"

	"github.com/entreaty/entreaty/internal/explain"
	"github.com/entreaty/entreaty/internal/fairness"
	"github.com/entreaty/entreaty/internal/models"
	"github.com/entreaty/entreaty/internal/observability/logging"
	"github.com/entreaty/entreaty/internal/resolver"
	"github.com/entreaty/entreaty/internal/store"
)

// Service runs the full adjudication pipeline for one grievance: evaluate,
// resolve, build the trace, score for consistency. Constructed once by the
// host process; every per-call input arrives through Request, so concurrent
// evaluations share nothing but the compiled-program cache.
type Service struct {
	evaluator *Evaluator
	scorer    *fairness.Scorer
	records   *store.Store // optional; nil disables persistence
}

// NewService wires the pipeline. records may be nil when the caller owns
// persistence and similar-case retrieval itself.
func NewService(evaluator *Evaluator, scorer *fairness.Scorer, records *store.Store) *Service {
	return &Service{
		evaluator: evaluator,
		scorer:    scorer,
		records:   records,
	}
}

// Request is everything one evaluation call needs.
type Request struct {
	StudentID string
	Facts     models.GrievanceFacts
	Rules     []models.Rule

	// AmbiguityReview is the externally supplied flag from the ambiguity
	// detection collaborator; it forces human review on the decision.
	AmbiguityReview bool

	// SimilarCases overrides the store lookup when non-nil.
	SimilarCases []models.CaseSummary
	SimilarLimit int
}

// Result of one evaluation. GrievanceID and DecisionID are set only when the
// service was constructed with a store.
type Result struct {
	GrievanceID string                `json:"grievance_id,omitempty"`
	DecisionID  string                `json:"decision_id,omitempty"`
	Trace       models.Trace          `json:"trace"`
	Fairness    models.FairnessReport `json:"fairness"`
}

// Evaluate runs the pipeline. It never fails for well-typed facts: a
// grievance no rule matches comes back as PENDING_CLARIFICATION with human
// review required, not as an error.
func (s *Service) Evaluate(ctx context.Context, req Request) Result {
	log := logging.From(ctx)
	start := time.Now()

	firings := s.evaluator.Evaluate(req.Facts, req.Rules)
	decision, conflicts := resolver.Resolve(firings, req.AmbiguityReview)
	trace := explain.BuildTrace(firings, conflicts, decision, time.Since(start).Milliseconds())

	firedCount := 0
	for _, f := range firings {
		if f.Fired {
			firedCount++
		}
	}
	log.Info("engine", "grievance evaluated",
		"type", req.Facts.Type,
		"rules_considered", len(firings),
		"rules_fired", firedCount,
		"conflicts", len(conflicts),
		"outcome", string(decision.Outcome),
	)

	// Prior cases are looked up before the new decision is recorded so a
	// decision is never compared against itself.
	similar := req.SimilarCases
	if similar == nil && s.records != nil {
		similar = s.records.FindSimilarCases(req.Facts.Type, req.SimilarLimit)
	}
	report := s.scorer.Score(decision, similar)
	if report.AnomalyDetected {
		log.Warn("fairness", "anomaly detected", "reason", report.AnomalyReason)
	}

	result := Result{Trace: trace, Fairness: report}

	if s.records != nil {
		result.GrievanceID = s.records.CreateGrievance(req.StudentID, req.Facts)
		result.DecisionID = s.records.CreateDecision(result.GrievanceID, decision)
		s.records.CreateTrace(result.GrievanceID, result.DecisionID, trace)
		s.records.CreateFairnessCheck(result.GrievanceID, result.DecisionID, report)
		_ = s.records.UpdateGrievanceStatus(result.GrievanceID, statusFor(decision))
	}

	return result
}

func statusFor(d models.Decision) string {
	switch {
	case d.Outcome == models.OutcomePending:
		return "PENDING_CLARIFICATION"
	case d.HumanReviewRequired:
		return "UNDER_REVIEW"
	case d.Outcome == models.OutcomeReject:
		return "REJECTED"
	default:
		return "RESOLVED"
	}
}

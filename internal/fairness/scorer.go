// Package fairness scores a decision for consistency against prior similar
// decisions and flags anomalies. It performs no I/O; the caller supplies the
// similar cases.
package fairness

import (
	"fmt"
	"math"

	"github.com/entreaty/entreaty/internal/models"
)

// DefaultThreshold below which a decision is consistency-suspect.
const DefaultThreshold = 0.85

// reviewBand is the score above which no review is suggested.
const reviewBand = 0.90

// previewLimit bounds the similar-case preview embedded in reports.
const previewLimit = 5

// Scoring weights: outcome agreement dominates, then rule, then tier.
const (
	weightOutcome = 0.5
	weightRule    = 0.3
	weightTier    = 0.2
)

// Scorer computes fairness reports. The zero value is not usable; construct
// with NewScorer.
type Scorer struct {
	threshold float64
}

// NewScorer with the given consistency threshold; pass 0 for the default.
func NewScorer(threshold float64) *Scorer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Scorer{threshold: threshold}
}

// Threshold returns the configured consistency threshold.
func (s *Scorer) Threshold() float64 { return s.threshold }

// Score compares the decision against the supplied prior cases. With no
// prior cases there is nothing to compare against, so the score is 1.0 and
// no anomaly is flagged.
func (s *Scorer) Score(decision models.Decision, similarCases []models.CaseSummary) models.FairnessReport {
	report := models.FairnessReport{
		Threshold:              s.threshold,
		SimilarCasesConsidered: len(similarCases),
	}

	if len(similarCases) == 0 {
		report.ConsistencyScore = 1.0
		report.OutcomeMatchRatio = 1.0
		report.RuleMatchRatio = 1.0
		report.TierMatchRatio = 1.0
		report.MeetsThreshold = true
		report.Recommendation = models.RecommendationConsistent
		return report
	}

	var outcomeMatches, ruleMatches, tierMatches int
	for _, c := range similarCases {
		if c.Outcome == decision.Outcome {
			outcomeMatches++
		}
		if c.ApplicableRuleID == decision.ApplicableRuleID {
			ruleMatches++
		}
		if c.Tier == decision.Tier {
			tierMatches++
		}
	}

	total := float64(len(similarCases))
	report.OutcomeMatchRatio = float64(outcomeMatches) / total
	report.RuleMatchRatio = float64(ruleMatches) / total
	report.TierMatchRatio = float64(tierMatches) / total

	score := weightOutcome*report.OutcomeMatchRatio +
		weightRule*report.RuleMatchRatio +
		weightTier*report.TierMatchRatio
	report.ConsistencyScore = round4(score)
	report.MeetsThreshold = report.ConsistencyScore >= s.threshold

	majority, count := majorityOutcome(similarCases)
	if report.ConsistencyScore < s.threshold && decision.Outcome != majority {
		report.AnomalyDetected = true
		report.AnomalyReason = fmt.Sprintf(
			"decision outcome %q differs from most common outcome %q (%d/%d cases); consistency score %.4f is below threshold %.2f",
			decision.Outcome, majority, count, len(similarCases), report.ConsistencyScore, s.threshold)
	}

	report.SimilarCasesPreview = preview(similarCases)
	report.Recommendation = s.recommend(report.ConsistencyScore, report.AnomalyDetected)
	return report
}

func (s *Scorer) recommend(score float64, anomaly bool) string {
	switch {
	case anomaly:
		return models.RecommendationHumanReview
	case score < reviewBand:
		return models.RecommendationReview
	default:
		return models.RecommendationConsistent
	}
}

// majorityOutcome returns the most frequent outcome, ties broken by first
// encountered in input order.
func majorityOutcome(cases []models.CaseSummary) (models.Outcome, int) {
	counts := map[models.Outcome]int{}
	var best models.Outcome
	bestCount := 0
	for _, c := range cases {
		counts[c.Outcome]++
		if counts[c.Outcome] > bestCount {
			best = c.Outcome
			bestCount = counts[c.Outcome]
		}
	}
	return best, bestCount
}

func preview(cases []models.CaseSummary) []models.CaseSummary {
	if len(cases) <= previewLimit {
		out := make([]models.CaseSummary, len(cases))
		copy(out, cases)
		return out
	}
	out := make([]models.CaseSummary, previewLimit)
	copy(out, cases[:previewLimit])
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

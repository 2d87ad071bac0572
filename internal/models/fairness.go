package models

// Recommendation bands emitted by the fairness scorer.
const (
	RecommendationHumanReview = "human review recommended"
	RecommendationReview      = "review suggested"
	RecommendationConsistent  = "consistent"
)

// FairnessReport is the consistency assessment for one decision against a
// sample of prior similar decisions.
type FairnessReport struct {
	ConsistencyScore float64 `json:"consistency_score"`
	Threshold        float64 `json:"threshold"`
	MeetsThreshold   bool    `json:"meets_threshold"`
	AnomalyDetected  bool    `json:"anomaly_detected"`
	AnomalyReason    string  `json:"anomaly_reason,omitempty"`

	SimilarCasesConsidered int           `json:"similar_cases_considered"`
	SimilarCasesPreview    []CaseSummary `json:"similar_cases_preview,omitempty"`

	OutcomeMatchRatio float64 `json:"outcome_match_ratio"`
	RuleMatchRatio    float64 `json:"rule_match_ratio"`
	TierMatchRatio    float64 `json:"tier_match_ratio"`

	Recommendation string `json:"recommendation"`
}

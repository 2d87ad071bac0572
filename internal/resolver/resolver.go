// Package resolver classifies disagreements between fired rules and selects
// the single winning firing by the fixed precedence order: authority tier,
// then salience, then effective date, then rule id.
package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/entreaty/entreaty/internal/models"
)

// NoApplicableRuleReason is the decision reason when nothing fired.
const NoApplicableRuleReason = "no applicable rule matched"

// Less is the total order over firings. The winner of any set of firings is
// its minimum under this order: higher tier first, then higher salience, then
// more recent effective date, then lexicographically smaller rule id. It is
// total, so ties never survive.
func Less(a, b models.Firing) bool {
	if ar, br := a.Tier.Rank(), b.Tier.Rank(); ar != br {
		return ar < br
	}
	if a.Salience != b.Salience {
		return a.Salience > b.Salience
	}
	// Dates are RFC 3339 date strings, so lexicographic comparison orders
	// them chronologically; an absent date loses to any present one.
	if a.EffectiveDate != b.EffectiveDate {
		return a.EffectiveDate > b.EffectiveDate
	}
	return a.RuleID < b.RuleID
}

// Resolve turns the firings of one evaluation into a decision plus the list
// of conflicts that had to be resolved along the way. It is total: any list
// of well-formed firings produces a decision, never an error.
//
// ambiguityReview is the externally supplied ambiguity flag; it is ORed into
// HumanReviewRequired on the decision and nothing else.
func Resolve(firings []models.Firing, ambiguityReview bool) (models.Decision, []models.Conflict) {
	fired := make([]models.Firing, 0, len(firings))
	for _, f := range firings {
		if f.Fired && f.Outcome != nil {
			fired = append(fired, f)
		}
	}

	if len(fired) == 0 {
		return models.Decision{
			Outcome:             models.OutcomePending,
			Reason:              NoApplicableRuleReason,
			HumanReviewRequired: true,
		}, nil
	}

	winner := fired[0]
	for _, f := range fired[1:] {
		if Less(f, winner) {
			winner = f
		}
	}

	conflicts := classifyConflicts(fired)

	decision := models.Decision{
		Outcome:             winner.Outcome.Outcome,
		ApplicableRuleID:    winner.RuleID,
		Tier:                winner.Tier,
		Salience:            winner.Salience,
		Reason:              winner.Outcome.Reason,
		RegulatorySource:    winner.Outcome.RegulatorySource,
		ActionRequired:      winner.Outcome.ActionRequired,
		HumanReviewRequired: winner.Outcome.HumanReviewRequired || ambiguityReview,
	}
	return decision, conflicts
}

// classifyConflicts records one conflict per pair of outcome groups that
// disagree. Firings that agree on outcome are never conflicting, whatever
// their tiers or saliences.
func classifyConflicts(fired []models.Firing) []models.Conflict {
	groups := map[models.Outcome][]models.Firing{}
	for _, f := range fired {
		groups[f.Outcome.Outcome] = append(groups[f.Outcome.Outcome], f)
	}
	if len(groups) < 2 {
		return nil
	}

	// Order the groups by their strongest member so conflict records come out
	// the same way on every run.
	ordered := make([][]models.Firing, 0, len(groups))
	for _, g := range groups {
		sort.Slice(g, func(i, j int) bool { return Less(g[i], g[j]) })
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool { return Less(ordered[i][0], ordered[j][0]) })

	var conflicts []models.Conflict
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			conflicts = append(conflicts, classifyPair(ordered[i], ordered[j]))
		}
	}
	return conflicts
}

func classifyPair(a, b []models.Firing) models.Conflict {
	members := make([]models.Firing, 0, len(a)+len(b))
	members = append(members, a...)
	members = append(members, b...)
	sort.Slice(members, func(i, j int) bool { return Less(members[i], members[j]) })

	winner := members[0]
	ids := make([]string, len(members))
	details := make([]models.ConflictMember, len(members))
	for i, m := range members {
		ids[i] = m.RuleID
		details[i] = models.ConflictMember{
			RuleID:        m.RuleID,
			Tier:          m.Tier,
			Salience:      m.Salience,
			EffectiveDate: m.EffectiveDate,
			Outcome:       m.Outcome.Outcome,
		}
	}

	conflict := models.Conflict{
		ConflictingRuleIDs: ids,
		Members:            details,
		WinningRuleID:      winner.RuleID,
	}

	tiers := map[models.AuthorityTier]bool{}
	saliences := map[int]bool{}
	dates := map[string]bool{}
	for _, m := range members {
		tiers[m.Tier] = true
		saliences[m.Salience] = true
		dates[m.EffectiveDate] = true
	}

	switch {
	case len(tiers) > 1:
		conflict.Kind = models.ConflictAuthority
		conflict.ResolutionStrategy = models.StrategyAuthority
		conflict.Reason = fmt.Sprintf("%s supersedes %s under hierarchical authority precedence",
			winner.Tier, strings.Join(losingTiers(members, winner.Tier), ", "))
	case len(saliences) > 1:
		conflict.Kind = models.ConflictSalience
		conflict.ResolutionStrategy = models.StrategySalience
		conflict.Reason = fmt.Sprintf("salience %d outranks %s within %s",
			winner.Salience, strings.Join(losingSaliences(members, winner.Salience), ", "), winner.Tier)
	case len(dates) > 1:
		conflict.Kind = models.ConflictTemporal
		conflict.ResolutionStrategy = models.StrategyTemporal
		conflict.Reason = fmt.Sprintf("effective date %s is the most recent among the conflicting rules",
			winner.EffectiveDate)
	default:
		// Same tier, salience, and date but different outcomes: a rule
		// authoring defect. Resolve by rule id so the request still succeeds,
		// and surface the defect through the strategy name.
		conflict.Kind = models.ConflictTemporal
		conflict.ResolutionStrategy = models.StrategyTiebreak
		conflict.Reason = fmt.Sprintf("rules share tier %s, salience %d, and effective date; resolved by rule id ascending",
			winner.Tier, winner.Salience)
	}
	return conflict
}

func losingTiers(members []models.Firing, winning models.AuthorityTier) []string {
	seen := map[models.AuthorityTier]bool{winning: true}
	var out []string
	for _, m := range members {
		if !seen[m.Tier] {
			seen[m.Tier] = true
			out = append(out, string(m.Tier))
		}
	}
	return out
}

func losingSaliences(members []models.Firing, winning int) []string {
	seen := map[int]bool{winning: true}
	var out []string
	for _, m := range members {
		if !seen[m.Salience] {
			seen[m.Salience] = true
			out = append(out, fmt.Sprintf("%d", m.Salience))
		}
	}
	return out
}

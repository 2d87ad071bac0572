package rules

import (
	"strings"
	"testing"
	"time"

	"github.com/entreaty/entreaty/internal/models"
)

func baseRuleset() *models.RuleSet {
	return &models.RuleSet{
		Name: "Base",
		Rules: []models.Rule{
			{
				ID:         "National_Attendance_Minimum",
				Tier:       models.TierNational,
				Salience:   1500,
				Conditions: []string{"params.attendance_percentage < 75.0"},
				Then:       models.RuleOutcome{Outcome: models.OutcomeReject, Reason: "below minimum"},
			},
			{
				ID:         "University_Medical_Excuse",
				Tier:       models.TierUniversity,
				Salience:   900,
				Conditions: []string{"params.has_medical_certificate == true"},
				Then:       models.RuleOutcome{Outcome: models.OutcomeAccept, Reason: "medical excuse"},
			},
		},
	}
}

func TestCompare_NoChanges(t *testing.T) {
	result, err := Compare(baseRuleset(), baseRuleset())
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if result.HasChanges {
		t.Errorf("identical rulesets reported changes: %+v", result.Changes)
	}
}

func TestCompare_AddedAndRemoved(t *testing.T) {
	oldSet := baseRuleset()
	newSet := baseRuleset()

	// Remove the national rule, add a university one.
	newSet.Rules = newSet.Rules[1:]
	newSet.Rules = append(newSet.Rules, models.Rule{
		ID:         "University_New_Provision",
		Tier:       models.TierUniversity,
		Salience:   400,
		Conditions: []string{"true"},
		Then:       models.RuleOutcome{Outcome: models.OutcomeAccept},
	})

	result, err := Compare(oldSet, newSet)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if len(result.Changes) != 2 {
		t.Fatalf("changes = %d, want 2", len(result.Changes))
	}

	// Changes come back in rule-id order.
	removed := result.Changes[0]
	if removed.RuleID != "National_Attendance_Minimum" || removed.Type != ChangeRemoved {
		t.Errorf("first change = %+v, want removal of the national rule", removed)
	}
	if removed.Severity != SeverityCritical {
		t.Errorf("removing a national rule = %s, want critical", SeverityString(removed.Severity))
	}

	added := result.Changes[1]
	if added.RuleID != "University_New_Provision" || added.Type != ChangeAdded {
		t.Errorf("second change = %+v, want addition", added)
	}
	if added.Severity != SeverityInfo {
		t.Errorf("adding a university rule = %s, want info", SeverityString(added.Severity))
	}
}

func TestCompare_NationalAdditionIsModerate(t *testing.T) {
	oldSet := baseRuleset()
	newSet := baseRuleset()
	newSet.Rules = append(newSet.Rules, models.Rule{
		ID:         "National_New_Mandate",
		Tier:       models.TierNational,
		Salience:   1600,
		Conditions: []string{"true"},
		Then:       models.RuleOutcome{Outcome: models.OutcomeAccept},
	})

	result, err := Compare(oldSet, newSet)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if len(result.Changes) != 1 || result.Changes[0].Severity != SeverityModerate {
		t.Errorf("national addition = %+v, want one moderate change", result.Changes)
	}
}

func TestCompare_ChangeSeverities(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Rule)
		ruleID string
		want   Severity
	}{
		{
			name:   "outcome change is critical",
			ruleID: "University_Medical_Excuse",
			mutate: func(r *models.Rule) { r.Then.Outcome = models.OutcomeReject },
			want:   SeverityCritical,
		},
		{
			name:   "tier change is critical",
			ruleID: "University_Medical_Excuse",
			mutate: func(r *models.Rule) { r.Tier = models.TierAccreditation },
			want:   SeverityCritical,
		},
		{
			name:   "salience change on university rule is moderate",
			ruleID: "University_Medical_Excuse",
			mutate: func(r *models.Rule) { r.Salience = 1200 },
			want:   SeverityModerate,
		},
		{
			name:   "condition change on university rule is moderate",
			ruleID: "University_Medical_Excuse",
			mutate: func(r *models.Rule) { r.Conditions = []string{"params.has_medical_certificate != false"} },
			want:   SeverityModerate,
		},
		{
			name:   "salience change on national rule escalates to critical",
			ruleID: "National_Attendance_Minimum",
			mutate: func(r *models.Rule) { r.Salience = 1000 },
			want:   SeverityCritical,
		},
		{
			name:   "effective date change on national rule escalates to critical",
			ruleID: "National_Attendance_Minimum",
			mutate: func(r *models.Rule) { r.EffectiveDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
			want:   SeverityCritical,
		},
		{
			name:   "reason wording change is info",
			ruleID: "University_Medical_Excuse",
			mutate: func(r *models.Rule) { r.Then.Reason = "reworded" },
			want:   SeverityInfo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldSet := baseRuleset()
			newSet := baseRuleset()
			for i := range newSet.Rules {
				if newSet.Rules[i].ID == tt.ruleID {
					tt.mutate(&newSet.Rules[i])
				}
			}

			result, err := Compare(oldSet, newSet)
			if err != nil {
				t.Fatalf("Compare failed: %v", err)
			}
			if len(result.Changes) != 1 {
				t.Fatalf("changes = %+v, want exactly 1", result.Changes)
			}
			c := result.Changes[0]
			if c.Type != ChangeChanged || c.RuleID != tt.ruleID {
				t.Errorf("change = %+v", c)
			}
			if c.Severity != tt.want {
				t.Errorf("severity = %s, want %s", SeverityString(c.Severity), SeverityString(tt.want))
			}
			if c.Level != SeverityString(tt.want) {
				t.Errorf("level = %q, want %q", c.Level, SeverityString(tt.want))
			}
			if len(c.Patch) == 0 {
				t.Error("change should carry a patch")
			}
		})
	}
}

func TestCompare_MessageNamesChangedPaths(t *testing.T) {
	oldSet := baseRuleset()
	newSet := baseRuleset()
	newSet.Rules[1].Salience = 1200

	result, err := Compare(oldSet, newSet)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if len(result.Changes) != 1 {
		t.Fatalf("changes = %d, want 1", len(result.Changes))
	}
	if !strings.Contains(result.Changes[0].Message, "/salience") {
		t.Errorf("message should name the changed path, got %q", result.Changes[0].Message)
	}
}

package models

// Well-known grievance types. The evaluator does not switch on these; they
// exist so rulesets and callers agree on spelling.
const (
	TypeAttendanceShortage = "ATTENDANCE_SHORTAGE"
	TypeExaminationReeval  = "EXAMINATION_REEVAL"
	TypeGradeAppeal        = "GRADE_APPEAL"
	TypeFeeWaiver          = "FEE_WAIVER"
	TypeFeeInstallment     = "FEE_INSTALLMENT_REQUEST"
	TypeTranscriptDelay    = "TRANSCRIPT_DELAY"
	TypeOther              = "OTHER"
)

// GrievanceFacts is the structured input to one evaluation: a type tag and
// an arbitrary parameter map. Parameters referenced by a rule but absent from
// the map make that condition not-satisfied; they never abort evaluation.
type GrievanceFacts struct {
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters"`
}

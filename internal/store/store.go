// Package store is an in-memory record of grievances, decisions, traces, and
// fairness checks. It stands in for the persistent storage collaborator and
// answers the "find similar prior decisions" query the fairness scorer needs.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/entreaty/entreaty/internal/models"
	"github.com/google/uuid"
)

// DefaultSimilarLimit bounds FindSimilarCases when the caller passes 0.
const DefaultSimilarLimit = 10

// GrievanceRecord is a stored grievance.
type GrievanceRecord struct {
	ID          string
	StudentID   string
	Facts       models.GrievanceFacts
	Status      string
	SubmittedAt time.Time
}

// DecisionRecord is a stored decision bound to its grievance.
type DecisionRecord struct {
	ID          string
	GrievanceID string
	Decision    models.Decision
	DecidedAt   time.Time
}

// TraceRecord is a stored evaluation trace.
type TraceRecord struct {
	ID          string
	GrievanceID string
	DecisionID  string
	Trace       models.Trace
	CreatedAt   time.Time
}

// FairnessRecord is a stored fairness check.
type FairnessRecord struct {
	ID          string
	GrievanceID string
	DecisionID  string
	Report      models.FairnessReport
	CreatedAt   time.Time
}

// Store keeps everything in memory. Safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	grievances map[string]GrievanceRecord
	decisions  map[string]DecisionRecord
	traces     map[string]TraceRecord
	fairness   map[string]FairnessRecord

	// decisionOrder preserves insertion order so similar-case queries return
	// the newest decisions first, deterministically.
	decisionOrder []string

	now func() time.Time
}

// New empty store.
func New() *Store {
	return &Store{
		grievances: map[string]GrievanceRecord{},
		decisions:  map[string]DecisionRecord{},
		traces:     map[string]TraceRecord{},
		fairness:   map[string]FairnessRecord{},
		now:        time.Now,
	}
}

// CreateGrievance records a grievance and returns its id.
func (s *Store) CreateGrievance(studentID string, facts models.GrievanceFacts) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.grievances[id] = GrievanceRecord{
		ID:          id,
		StudentID:   studentID,
		Facts:       facts,
		Status:      "PENDING",
		SubmittedAt: s.now(),
	}
	return id
}

// Grievance by id.
func (s *Store) Grievance(id string) (GrievanceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grievances[id]
	return g, ok
}

// UpdateGrievanceStatus sets the status of an existing grievance.
func (s *Store) UpdateGrievanceStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grievances[id]
	if !ok {
		return fmt.Errorf("grievance not found: %s", id)
	}
	g.Status = status
	s.grievances[id] = g
	return nil
}

// CreateDecision records a decision for a grievance and returns its id.
func (s *Store) CreateDecision(grievanceID string, decision models.Decision) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.decisions[id] = DecisionRecord{
		ID:          id,
		GrievanceID: grievanceID,
		Decision:    decision,
		DecidedAt:   s.now(),
	}
	s.decisionOrder = append(s.decisionOrder, id)
	return id
}

// Decision by id.
func (s *Store) Decision(id string) (DecisionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decisions[id]
	return d, ok
}

// DecisionByGrievance returns the decision recorded for a grievance, if any.
func (s *Store) DecisionByGrievance(grievanceID string) (DecisionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.decisionOrder {
		if d := s.decisions[id]; d.GrievanceID == grievanceID {
			return d, true
		}
	}
	return DecisionRecord{}, false
}

// CreateTrace records an evaluation trace.
func (s *Store) CreateTrace(grievanceID, decisionID string, trace models.Trace) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.traces[id] = TraceRecord{
		ID:          id,
		GrievanceID: grievanceID,
		DecisionID:  decisionID,
		Trace:       trace,
		CreatedAt:   s.now(),
	}
	return id
}

// Trace by id.
func (s *Store) Trace(id string) (TraceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.traces[id]
	return t, ok
}

// CreateFairnessCheck records a fairness report.
func (s *Store) CreateFairnessCheck(grievanceID, decisionID string, report models.FairnessReport) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.fairness[id] = FairnessRecord{
		ID:          id,
		GrievanceID: grievanceID,
		DecisionID:  decisionID,
		Report:      report,
		CreatedAt:   s.now(),
	}
	return id
}

// FindSimilarCases returns summaries of prior decisions for grievances of the
// same type, newest first, bounded by limit (DefaultSimilarLimit when 0).
func (s *Store) FindSimilarCases(grievanceType string, limit int) []models.CaseSummary {
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.CaseSummary
	for i := len(s.decisionOrder) - 1; i >= 0 && len(out) < limit; i-- {
		d := s.decisions[s.decisionOrder[i]]
		g, ok := s.grievances[d.GrievanceID]
		if !ok || g.Facts.Type != grievanceType {
			continue
		}
		out = append(out, models.CaseSummary{
			GrievanceID:      d.GrievanceID,
			Outcome:          d.Decision.Outcome,
			ApplicableRuleID: d.Decision.ApplicableRuleID,
			Tier:             d.Decision.Tier,
		})
	}
	return out
}

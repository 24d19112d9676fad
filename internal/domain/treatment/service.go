package treatment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service owns every mutation of a treatment record. The aggregate itself is
// plain data; each operation loads the record, validates, applies the change
// to the in-memory copy and commits it through a version-checked write, so a
// failed operation leaves the stored record untouched.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

const maxDescriptionLen = 2000

// Create validates a new treatment record, applies creation defaults and
// persists it. The repository assigns the TRT identifier when none is supplied.
func (s *Service) Create(ctx context.Context, t *Treatment, actor uuid.UUID) error {
	if t.PatientID == uuid.Nil {
		return invalidf("patient_id", "is required")
	}
	if t.DoctorID == uuid.Nil {
		return invalidf("doctor_id", "is required")
	}
	if t.ClinicID == uuid.Nil {
		return invalidf("clinic_id", "is required")
	}
	if t.TreatmentID != "" && !ValidTreatmentID(t.TreatmentID) {
		return invalidf("treatment_id", "must match TRT<year><month><sequence>, got %q", t.TreatmentID)
	}
	if !validTypes[t.Type] {
		return invalidf("type", "unknown treatment type %q", t.Type)
	}
	if !validCategories[t.Category] {
		return invalidf("category", "unknown category %q", t.Category)
	}
	if t.Priority == "" {
		t.Priority = "medium"
	}
	if !validPriorities[t.Priority] {
		return invalidf("priority", "unknown priority %q", t.Priority)
	}
	if t.Urgency == "" {
		t.Urgency = "routine"
	}
	if !validUrgencies[t.Urgency] {
		return invalidf("urgency", "unknown urgency %q", t.Urgency)
	}
	if t.Status == "" {
		t.Status = StatusPlanned
	}
	if t.Status != StatusPlanned {
		return invalidf("status", "a treatment is created as %q, got %q", StatusPlanned, t.Status)
	}
	if t.Phase == "" {
		t.Phase = PhasePlanning
	}
	if !validPhases[t.Phase] {
		return invalidf("phase", "unknown phase %q", t.Phase)
	}
	if len(t.Description) > maxDescriptionLen {
		return invalidf("description", "exceeds %d characters", maxDescriptionLen)
	}
	if t.EstimatedDuration.Sessions < 1 {
		return invalidf("estimated_duration.sessions", "must be at least 1")
	}
	if t.EstimatedDuration.TotalMinutes < 15 {
		return invalidf("estimated_duration.total_minutes", "must be at least 15")
	}
	for _, tooth := range t.Teeth {
		if !validToothNumber(tooth.Number) {
			return invalidf("teeth", "invalid FDI tooth number %d", tooth.Number)
		}
		for _, surf := range tooth.Surfaces {
			if !validToothSurfaces[surf] {
				return invalidf("teeth", "unknown tooth surface %q", surf)
			}
		}
	}

	now := s.now()
	t.Meta = Metadata{
		Version:        1,
		CreatedBy:      actor,
		LastModifiedBy: actor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return s.repo.Create(ctx, t)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Treatment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByTreatmentID(ctx context.Context, treatmentID string) (*Treatment, error) {
	return s.repo.GetByTreatmentID(ctx, treatmentID)
}

// -- Status state machine --

// TransitionInput carries the caller-supplied context for a status change.
type TransitionInput struct {
	Reason         string     `json:"reason,omitempty"`
	RescheduleDate *time.Time `json:"reschedule_date,omitempty"`
	Success        *bool      `json:"success,omitempty"`
}

// allowedTransitions is the edge set of the lifecycle machine. Side exits
// (cancelled, postponed, on_hold, failed, partial) are added for every
// non-terminal state below; on_hold and postponed may resume.
var allowedTransitions = map[string]map[string]bool{
	StatusPlanned:    {StatusScheduled: true, StatusInProgress: true},
	StatusScheduled:  {StatusInProgress: true},
	StatusInProgress: {StatusCompleted: true},
	StatusOnHold:     {StatusScheduled: true, StatusInProgress: true},
	StatusPostponed:  {StatusScheduled: true, StatusInProgress: true},
	StatusPartial:    {StatusInProgress: true, StatusCompleted: true},
}

func init() {
	sideExits := []string{StatusCancelled, StatusPostponed, StatusOnHold, StatusFailed, StatusPartial}
	for from := range validStatuses {
		if terminalStatuses[from] {
			continue
		}
		if allowedTransitions[from] == nil {
			allowedTransitions[from] = map[string]bool{}
		}
		for _, to := range sideExits {
			if to != from {
				allowedTransitions[from][to] = true
			}
		}
	}
}

// Transition moves the record to target and fires that transition's side
// effects exactly once. A transition to the current status is a soft no-op:
// the record is returned unchanged and the version counter does not move.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, target string, in TransitionInput, actor uuid.UUID) (*Treatment, error) {
	if !validStatuses[target] {
		return nil, invalidf("status", "unknown status %q", target)
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == target {
		return t, nil
	}
	if terminalStatuses[t.Status] {
		return nil, invalidf("status", "%q is terminal", t.Status)
	}
	if !allowedTransitions[t.Status][target] {
		return nil, invalidf("status", "cannot move from %q to %q", t.Status, target)
	}
	if target == StatusCancelled && in.Reason == "" {
		return nil, invalidf("reason", "is required to cancel")
	}
	if target == StatusPostponed && in.Reason == "" {
		return nil, invalidf("reason", "is required to postpone")
	}

	now := s.now()
	t.Status = target

	switch target {
	case StatusInProgress:
		t.Phase = PhaseTreatment
		if t.ActualDuration.StartDate == nil {
			start := now
			t.ActualDuration.StartDate = &start
			t.appendNote(NoteProgress, "Treatment started", actor, now)
		}
	case StatusCompleted:
		t.Phase = PhaseRecovery
		if t.ActualDuration.EndDate == nil {
			end := now
			t.ActualDuration.EndDate = &end
			success := true
			if in.Success != nil {
				success = *in.Success
			}
			t.Outcomes.Success = &success
			t.ActualDuration.Sessions = t.completedSessions()
			t.ActualDuration.TotalMinutes = t.completedMinutes()
			t.appendNote(NoteProgress, "Treatment completed", actor, now)
		}
	case StatusCancelled:
		t.appendNote(NoteProgress, "Treatment cancelled: "+in.Reason, actor, now)
	case StatusPostponed:
		msg := "Treatment postponed: " + in.Reason
		if in.RescheduleDate != nil {
			msg += fmt.Sprintf(" (rescheduled to %s)", in.RescheduleDate.Format("2006-01-02"))
		}
		t.appendNote(NoteProgress, msg, actor, now)
	}

	if err := s.commit(ctx, t, actor); err != nil {
		return nil, err
	}
	return t, nil
}

// Start, Complete, Cancel and Postpone are the named lifecycle operations.

func (s *Service) Start(ctx context.Context, id uuid.UUID, actor uuid.UUID) (*Treatment, error) {
	return s.Transition(ctx, id, StatusInProgress, TransitionInput{}, actor)
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID, success *bool, actor uuid.UUID) (*Treatment, error) {
	return s.Transition(ctx, id, StatusCompleted, TransitionInput{Success: success}, actor)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string, actor uuid.UUID) (*Treatment, error) {
	return s.Transition(ctx, id, StatusCancelled, TransitionInput{Reason: reason}, actor)
}

func (s *Service) Postpone(ctx context.Context, id uuid.UUID, reason string, rescheduleDate *time.Time, actor uuid.UUID) (*Treatment, error) {
	return s.Transition(ctx, id, StatusPostponed, TransitionInput{Reason: reason, RescheduleDate: rescheduleDate}, actor)
}

// commit stamps authorship, advances the version counter and performs the
// version-checked write. The repository matches on the previous version, so a
// concurrent writer surfaces as ErrConflict and the caller's copy is discarded.
func (s *Service) commit(ctx context.Context, t *Treatment, actor uuid.UUID) error {
	t.Meta.LastModifiedBy = actor
	t.Meta.Version++
	t.Meta.UpdatedAt = s.now()
	return s.repo.Update(ctx, t)
}

func (t *Treatment) appendNote(noteType, content string, author uuid.UUID, at time.Time) {
	t.Documentation.ClinicalNotes = append(t.Documentation.ClinicalNotes, ClinicalNote{
		ID:        uuid.New(),
		Type:      noteType,
		Content:   content,
		Author:    author,
		CreatedAt: at,
	})
}

// -- Read-side queries --

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Treatment, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Treatment, int, error) {
	return s.repo.ListByDoctor(ctx, doctorID, limit, offset)
}

func (s *Service) ListByType(ctx context.Context, treatmentType string, limit, offset int) ([]*Treatment, int, error) {
	if !validTypes[treatmentType] {
		return nil, 0, invalidf("type", "unknown treatment type %q", treatmentType)
	}
	return s.repo.ListByType(ctx, treatmentType, limit, offset)
}

func (s *Service) ListByDateRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*Treatment, int, error) {
	if to.Before(from) {
		return nil, 0, invalidf("date_range", "end precedes start")
	}
	return s.repo.ListByDateRange(ctx, from, to, limit, offset)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Treatment, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}

func (s *Service) Stats(ctx context.Context, from, to time.Time, clinicID *uuid.UUID) (*Stats, error) {
	if to.Before(from) {
		return nil, invalidf("date_range", "end precedes start")
	}
	return s.repo.Stats(ctx, from, to, clinicID)
}

func (s *Service) ComplicationStats(ctx context.Context, from, to time.Time) ([]*ComplicationStat, error) {
	if to.Before(from) {
		return nil, invalidf("date_range", "end precedes start")
	}
	return s.repo.ComplicationStats(ctx, from, to)
}

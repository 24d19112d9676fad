package treatment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sub-record operations. Procedure and complication lookups by id use a soft
// not-found policy: a stale identifier yields a nil result with no error and
// no version bump, since it represents routine caller error rather than a
// system fault.

// -- Procedure steps --

// ProcedureInput describes a new step to append.
type ProcedureInput struct {
	Title            string  `json:"title"`
	Description      *string `json:"description,omitempty"`
	EstimatedMinutes int     `json:"estimated_minutes"`
}

// AppendProcedure adds a pending step with the next gapless step number.
func (s *Service) AppendProcedure(ctx context.Context, id uuid.UUID, in ProcedureInput, actor uuid.UUID) (*ProcedureStep, error) {
	if in.Title == "" {
		return nil, invalidf("title", "is required")
	}
	if in.EstimatedMinutes < 0 {
		return nil, invalidf("estimated_minutes", "must not be negative")
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	step := ProcedureStep{
		ID:               uuid.New(),
		StepNumber:       len(t.Procedures) + 1,
		Title:            in.Title,
		Description:      in.Description,
		Status:           ProcedurePending,
		EstimatedMinutes: in.EstimatedMinutes,
	}
	t.Procedures = append(t.Procedures, step)
	if err := s.commit(ctx, t, actor); err != nil {
		return nil, err
	}
	return &t.Procedures[len(t.Procedures)-1], nil
}

// StartProcedure marks a step in progress with its performer. An unknown step
// id returns (nil, nil).
func (s *Service) StartProcedure(ctx context.Context, id, stepID uuid.UUID, performer uuid.UUID) (*ProcedureStep, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	step := t.findProcedure(stepID)
	if step == nil {
		return nil, nil
	}
	now := s.now()
	step.Status = ProcedureInProgress
	step.StartedAt = &now
	step.PerformedBy = &performer
	if err := s.commit(ctx, t, performer); err != nil {
		return nil, err
	}
	return step, nil
}

// CompleteProcedure records completion time, actual duration and optional
// notes. An unknown step id returns (nil, nil).
func (s *Service) CompleteProcedure(ctx context.Context, id, stepID uuid.UUID, actualMinutes int, notes *string, actor uuid.UUID) (*ProcedureStep, error) {
	if actualMinutes < 0 {
		return nil, invalidf("actual_minutes", "must not be negative")
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	step := t.findProcedure(stepID)
	if step == nil {
		return nil, nil
	}
	now := s.now()
	step.Status = ProcedureCompleted
	step.CompletedAt = &now
	step.ActualMinutes = actualMinutes
	if notes != nil {
		step.Notes = notes
	}
	if err := s.commit(ctx, t, actor); err != nil {
		return nil, err
	}
	return step, nil
}

// -- Materials --

// MaterialInput describes a consumed supply.
type MaterialInput struct {
	Name      string   `json:"name"`
	Quantity  float64  `json:"quantity"`
	Unit      *string  `json:"unit,omitempty"`
	Cost      *float64 `json:"cost,omitempty"`
	LotNumber *string  `json:"lot_number,omitempty"`
}

// AddMaterial appends a material and, when a billing sub-record exists,
// eagerly recomputes the cached billing.material_costs sum.
func (s *Service) AddMaterial(ctx context.Context, id uuid.UUID, in MaterialInput, actor uuid.UUID) (*Material, error) {
	if in.Name == "" {
		return nil, invalidf("name", "is required")
	}
	if in.Quantity <= 0 {
		return nil, invalidf("quantity", "must be positive")
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m := Material{
		ID:        uuid.New(),
		Name:      in.Name,
		Quantity:  in.Quantity,
		Unit:      in.Unit,
		Cost:      in.Cost,
		LotNumber: in.LotNumber,
		AddedAt:   s.now(),
	}
	t.Materials = append(t.Materials, m)
	if t.Billing != nil {
		t.Billing.MaterialCosts = t.TotalMaterialCost()
	}
	if err := s.commit(ctx, t, actor); err != nil {
		return nil, err
	}
	return &t.Materials[len(t.Materials)-1], nil
}

// -- Complications --

// ComplicationInput describes an adverse event discovered post-operatively.
type ComplicationInput struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// AddComplication lazily initializes the post-operative assessment, appends an
// unresolved complication and narrates it as a clinical note.
func (s *Service) AddComplication(ctx context.Context, id uuid.UUID, in ComplicationInput, reporter uuid.UUID) (*Complication, error) {
	if !validComplicationTypes[in.Type] {
		return nil, invalidf("type", "unknown complication type %q", in.Type)
	}
	if !validComplicationSeverities[in.Severity] {
		return nil, invalidf("severity", "unknown severity %q", in.Severity)
	}
	if in.Description == "" {
		return nil, invalidf("description", "is required")
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if t.PostOpAssessment == nil {
		t.PostOpAssessment = &Assessment{}
	}
	c := Complication{
		ID:          uuid.New(),
		Type:        in.Type,
		Description: in.Description,
		Severity:    in.Severity,
		ReportedBy:  reporter,
		OccurredAt:  now,
	}
	t.PostOpAssessment.Complications = append(t.PostOpAssessment.Complications, c)
	t.appendNote(NoteComplication,
		fmt.Sprintf("Complication (%s, severity %s): %s", in.Type, in.Severity, in.Description),
		reporter, now)
	if err := s.commit(ctx, t, reporter); err != nil {
		return nil, err
	}
	list := t.PostOpAssessment.Complications
	return &list[len(list)-1], nil
}

// ResolveComplication marks a complication resolved. An unknown id returns
// (nil, nil) and leaves the version counter unchanged.
func (s *Service) ResolveComplication(ctx context.Context, id, complicationID uuid.UUID, resolution string, resolver uuid.UUID) (*Complication, error) {
	if resolution == "" {
		return nil, invalidf("resolution", "is required")
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c := t.findComplication(complicationID)
	if c == nil {
		return nil, nil
	}
	now := s.now()
	c.Resolved = true
	c.Resolution = &resolution
	c.ResolvedAt = &now
	c.ResolvedBy = &resolver
	t.appendNote(NoteProgress, "Complication resolved: "+resolution, resolver, now)
	if err := s.commit(ctx, t, resolver); err != nil {
		return nil, err
	}
	return c, nil
}

// -- Clinical documentation --

// AddClinicalNote appends a note; the type defaults to progress.
func (s *Service) AddClinicalNote(ctx context.Context, id uuid.UUID, content, noteType string, author uuid.UUID) (*ClinicalNote, error) {
	if content == "" {
		return nil, invalidf("content", "is required")
	}
	if noteType == "" {
		noteType = NoteProgress
	}
	if !validNoteTypes[noteType] {
		return nil, invalidf("type", "unknown note type %q", noteType)
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t.appendNote(noteType, content, author, s.now())
	if err := s.commit(ctx, t, author); err != nil {
		return nil, err
	}
	notes := t.Documentation.ClinicalNotes
	return &notes[len(notes)-1], nil
}

// ImageInput describes an uploaded image reference.
type ImageInput struct {
	Type    string  `json:"type"`
	URL     string  `json:"url"`
	Caption *string `json:"caption,omitempty"`
}

func (s *Service) AddImage(ctx context.Context, id uuid.UUID, in ImageInput, uploader uuid.UUID) (*Image, error) {
	if !validImageTypes[in.Type] {
		return nil, invalidf("type", "unknown image type %q", in.Type)
	}
	if in.URL == "" {
		return nil, invalidf("url", "is required")
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	img := Image{
		ID:         uuid.New(),
		Type:       in.Type,
		URL:        in.URL,
		Caption:    in.Caption,
		UploadedBy: uploader,
		UploadedAt: s.now(),
	}
	t.Documentation.Images = append(t.Documentation.Images, img)
	if err := s.commit(ctx, t, uploader); err != nil {
		return nil, err
	}
	imgs := t.Documentation.Images
	return &imgs[len(imgs)-1], nil
}

// -- Consent, vitals, quality, follow-up, billing --

// VitalsInput replaces the recorded vital signs.
type VitalsInput struct {
	BloodPressure *string  `json:"blood_pressure,omitempty"`
	HeartRate     *int     `json:"heart_rate,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	OxygenSat     *int     `json:"oxygen_saturation,omitempty"`
}

func (s *Service) RecordVitals(ctx context.Context, id uuid.UUID, in VitalsInput, recorder uuid.UUID) (*Treatment, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	t.Vitals = &VitalSigns{
		BloodPressure: in.BloodPressure,
		HeartRate:     in.HeartRate,
		Temperature:   in.Temperature,
		OxygenSat:     in.OxygenSat,
		RecordedBy:    recorder,
		RecordedAt:    now,
	}
	t.appendNote(NoteObservation, "Vital signs recorded", recorder, now)
	if err := s.commit(ctx, t, recorder); err != nil {
		return nil, err
	}
	return t, nil
}

// ConsentInput replaces the consent sub-record.
type ConsentInput struct {
	Method      string  `json:"method,omitempty"`
	DocumentURL *string `json:"document_url,omitempty"`
}

func (s *Service) ObtainConsent(ctx context.Context, id uuid.UUID, in ConsentInput, obtainer uuid.UUID) (*Treatment, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	t.Consent = &Consent{
		Obtained:    true,
		Method:      in.Method,
		DocumentURL: in.DocumentURL,
		ObtainedBy:  obtainer,
		ObtainedAt:  now,
	}
	t.appendNote(NotePlan, "Informed consent obtained", obtainer, now)
	if err := s.commit(ctx, t, obtainer); err != nil {
		return nil, err
	}
	return t, nil
}

// QualityMetricInput appends one measured quality value.
type QualityMetricInput struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  *string `json:"unit,omitempty"`
}

func (s *Service) AddQualityMetric(ctx context.Context, id uuid.UUID, in QualityMetricInput, recorder uuid.UUID) (*Treatment, error) {
	if in.Name == "" {
		return nil, invalidf("name", "is required")
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t.QualityMetrics = append(t.QualityMetrics, QualityMetric{
		Name:       in.Name,
		Value:      in.Value,
		Unit:       in.Unit,
		RecordedBy: recorder,
		RecordedAt: s.now(),
	})
	if err := s.commit(ctx, t, recorder); err != nil {
		return nil, err
	}
	return t, nil
}

// EquipmentUseInput records one piece of equipment used during the treatment.
type EquipmentUseInput struct {
	Name    string  `json:"name"`
	Minutes int     `json:"minutes,omitempty"`
	Notes   *string `json:"notes,omitempty"`
}

func (s *Service) RecordEquipmentUse(ctx context.Context, id uuid.UUID, in EquipmentUseInput, actor uuid.UUID) (*Treatment, error) {
	if in.Name == "" {
		return nil, invalidf("name", "is required")
	}
	if in.Minutes < 0 {
		return nil, invalidf("minutes", "must not be negative")
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Equipment = append(t.Equipment, EquipmentUse{
		Name:    in.Name,
		Minutes: in.Minutes,
		Notes:   in.Notes,
	})
	if err := s.commit(ctx, t, actor); err != nil {
		return nil, err
	}
	return t, nil
}

// AssistantInput adds one assisting staff member to the treatment team.
type AssistantInput struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
}

func (s *Service) AddAssistant(ctx context.Context, id uuid.UUID, in AssistantInput, actor uuid.UUID) (*Treatment, error) {
	if in.UserID == uuid.Nil {
		return nil, invalidf("user_id", "is required")
	}
	if in.Role == "" {
		return nil, invalidf("role", "is required")
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, a := range t.Assistants {
		if a.UserID == in.UserID {
			return nil, invalidf("user_id", "is already assigned to this treatment")
		}
	}
	t.Assistants = append(t.Assistants, Assistant{
		UserID: in.UserID,
		Role:   in.Role,
	})
	if err := s.commit(ctx, t, actor); err != nil {
		return nil, err
	}
	return t, nil
}

// FollowUpInput schedules one follow-up appointment.
type FollowUpInput struct {
	ScheduledAt  time.Time `json:"scheduled_at"`
	Purpose      string    `json:"purpose"`
	Instructions *string   `json:"instructions,omitempty"`
}

func (s *Service) ScheduleFollowUp(ctx context.Context, id uuid.UUID, in FollowUpInput, actor uuid.UUID) (*FollowUpAppointment, error) {
	if in.ScheduledAt.IsZero() {
		return nil, invalidf("scheduled_at", "is required")
	}
	if in.Purpose == "" {
		return nil, invalidf("purpose", "is required")
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t.FollowUp.Required = true
	if in.Instructions != nil {
		t.FollowUp.Instructions = in.Instructions
	}
	t.FollowUp.Appointments = append(t.FollowUp.Appointments, FollowUpAppointment{
		ID:          uuid.New(),
		ScheduledAt: in.ScheduledAt,
		Purpose:     in.Purpose,
		CreatedBy:   actor,
		CreatedAt:   s.now(),
	})
	if err := s.commit(ctx, t, actor); err != nil {
		return nil, err
	}
	appts := t.FollowUp.Appointments
	return &appts[len(appts)-1], nil
}

func (s *Service) RecordPatientSatisfaction(ctx context.Context, id uuid.UUID, rating int, notes *string, actor uuid.UUID) (*Treatment, error) {
	if rating < 1 || rating > 5 {
		return nil, invalidf("rating", "must be between 1 and 5")
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Outcomes.PatientSatisfaction = &rating
	if notes != nil {
		t.Outcomes.Notes = notes
	}
	if err := s.commit(ctx, t, actor); err != nil {
		return nil, err
	}
	return t, nil
}

// BillingInput updates the billing sub-record.
type BillingInput struct {
	EstimatedCost     *float64 `json:"estimated_cost,omitempty"`
	ActualCost        *float64 `json:"actual_cost,omitempty"`
	TaxAmount         *float64 `json:"tax_amount,omitempty"`
	DiscountApplied   *float64 `json:"discount_applied,omitempty"`
	InsuranceCoverage *float64 `json:"insurance_coverage,omitempty"`
	PaymentStatus     *string  `json:"payment_status,omitempty"`
}

// UpdateBilling merges the supplied fields and recomputes the total:
// actual cost + tax - discount, with missing tax and discount treated as 0.
func (s *Service) UpdateBilling(ctx context.Context, id uuid.UUID, in BillingInput, actor uuid.UUID) (*Treatment, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Billing == nil {
		t.Billing = &Billing{MaterialCosts: t.TotalMaterialCost()}
	}
	b := t.Billing
	if in.EstimatedCost != nil {
		b.EstimatedCost = *in.EstimatedCost
	}
	if in.TaxAmount != nil {
		b.TaxAmount = *in.TaxAmount
	}
	if in.DiscountApplied != nil {
		b.DiscountApplied = *in.DiscountApplied
	}
	if in.InsuranceCoverage != nil {
		b.InsuranceCoverage = in.InsuranceCoverage
	}
	if in.PaymentStatus != nil {
		b.PaymentStatus = *in.PaymentStatus
	}
	if in.ActualCost != nil {
		b.ActualCost = in.ActualCost
	}
	if b.ActualCost != nil {
		b.TotalAmount = *b.ActualCost + b.TaxAmount - b.DiscountApplied
	}
	if err := s.commit(ctx, t, actor); err != nil {
		return nil, err
	}
	return t, nil
}

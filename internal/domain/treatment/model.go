package treatment

import (
	"time"

	"github.com/google/uuid"
)

// Treatment is the aggregate root for one clinical treatment episode. It is
// persisted as a single document: the sub-collections below belong to the
// record and are only ever mutated through the Service, which serializes
// writes per record via optimistic versioning.
type Treatment struct {
	ID          uuid.UUID `db:"id" json:"id"`
	TreatmentID string    `db:"treatment_id" json:"treatment_id"`

	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	ClinicID        uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	AppointmentID   *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	TreatmentPlanID *uuid.UUID `db:"treatment_plan_id" json:"treatment_plan_id,omitempty"`

	Type     string `db:"type" json:"type"`
	Category string `db:"category" json:"category"`
	Priority string `json:"priority"`
	Urgency  string `json:"urgency"`
	Status   string `db:"status" json:"status"`
	Phase    string `json:"phase"`

	Description string            `json:"description"`
	Indication  *string           `json:"indication,omitempty"`
	Teeth       []ToothAnnotation `json:"teeth,omitempty"`
	Diagnosis   Diagnosis         `json:"diagnosis"`
	Prognosis   *string           `json:"prognosis,omitempty"`

	EstimatedDuration EstimatedDuration `json:"estimated_duration"`
	ActualDuration    ActualDuration    `json:"actual_duration"`

	Procedures     []ProcedureStep `json:"procedures,omitempty"`
	Materials      []Material      `json:"materials,omitempty"`
	Equipment      []EquipmentUse  `json:"equipment,omitempty"`
	Assistants     []Assistant     `json:"assistants,omitempty"`
	QualityMetrics []QualityMetric `json:"quality_metrics,omitempty"`

	Documentation Documentation `json:"documentation"`

	PreOpAssessment    *Assessment `json:"pre_op_assessment,omitempty"`
	IntraOpAssessment  *Assessment `json:"intra_op_assessment,omitempty"`
	PostOpAssessment   *Assessment `json:"post_op_assessment,omitempty"`

	Vitals   *VitalSigns `json:"vitals,omitempty"`
	Consent  *Consent    `json:"consent,omitempty"`
	Billing  *Billing    `json:"billing,omitempty"`
	FollowUp FollowUp    `json:"follow_up"`
	Outcomes Outcomes    `json:"outcomes"`

	Meta Metadata `json:"metadata"`
}

// ToothAnnotation marks one affected tooth. Number uses FDI two-digit
// notation (11-18, 21-28, 31-38, 41-48); Surfaces are optional.
type ToothAnnotation struct {
	Number   int      `json:"number"`
	Surfaces []string `json:"surfaces,omitempty"`
}

type Diagnosis struct {
	Primary      string   `json:"primary"`
	Secondary    []string `json:"secondary,omitempty"`
	Differential []string `json:"differential,omitempty"`
}

// EstimatedDuration is the planned effort; both bounds are mandatory at creation.
type EstimatedDuration struct {
	Sessions     int `json:"sessions"`
	TotalMinutes int `json:"total_minutes"`
}

// ActualDuration is populated by status transitions only. StartDate is set the
// first time the record enters in_progress; EndDate, Sessions and TotalMinutes
// are frozen the first time it completes.
type ActualDuration struct {
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Sessions     int        `json:"sessions,omitempty"`
	TotalMinutes int        `json:"total_minutes,omitempty"`
}

// ProcedureStep is an ordered sub-unit of work. StepNumber is assigned
// sequentially at append time and never renumbered.
type ProcedureStep struct {
	ID               uuid.UUID  `json:"id"`
	StepNumber       int        `json:"step_number"`
	Title            string     `json:"title"`
	Description      *string    `json:"description,omitempty"`
	Status           string     `json:"status"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	ActualMinutes    int        `json:"actual_minutes,omitempty"`
	PerformedBy      *uuid.UUID `json:"performed_by,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
}

type Material struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Quantity  float64   `json:"quantity"`
	Unit      *string   `json:"unit,omitempty"`
	Cost      *float64  `json:"cost,omitempty"`
	LotNumber *string   `json:"lot_number,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}

type EquipmentUse struct {
	Name    string  `json:"name"`
	Minutes int     `json:"minutes,omitempty"`
	Notes   *string `json:"notes,omitempty"`
}

type Assistant struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
}

type QualityMetric struct {
	Name       string    `json:"name"`
	Value      float64   `json:"value"`
	Unit       *string   `json:"unit,omitempty"`
	RecordedBy uuid.UUID `json:"recorded_by"`
	RecordedAt time.Time `json:"recorded_at"`
}

type Documentation struct {
	ClinicalNotes []ClinicalNote `json:"clinical_notes,omitempty"`
	Images        []Image        `json:"images,omitempty"`
}

// ClinicalNote is the single narration channel for state changes; transitions,
// complications, consent and vitals all append here.
type ClinicalNote struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Author    uuid.UUID `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

type Image struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	URL        string    `json:"url"`
	Caption    *string   `json:"caption,omitempty"`
	UploadedBy uuid.UUID `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Assessment groups risk level and complications for one operative phase.
// Complications are only tracked on the post-operative assessment.
type Assessment struct {
	RiskLevel     string         `json:"risk_level,omitempty"`
	Notes         *string        `json:"notes,omitempty"`
	Complications []Complication `json:"complications,omitempty"`
}

type Complication struct {
	ID          uuid.UUID  `json:"id"`
	Type        string     `json:"type"`
	Description string     `json:"description"`
	Severity    string     `json:"severity"`
	ReportedBy  uuid.UUID  `json:"reported_by"`
	OccurredAt  time.Time  `json:"occurred_at"`
	Resolved    bool       `json:"resolved"`
	Resolution  *string    `json:"resolution,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy  *uuid.UUID `json:"resolved_by,omitempty"`
}

type VitalSigns struct {
	BloodPressure *string   `json:"blood_pressure,omitempty"`
	HeartRate     *int      `json:"heart_rate,omitempty"`
	Temperature   *float64  `json:"temperature,omitempty"`
	OxygenSat     *int      `json:"oxygen_saturation,omitempty"`
	RecordedBy    uuid.UUID `json:"recorded_by"`
	RecordedAt    time.Time `json:"recorded_at"`
}

type Consent struct {
	Obtained    bool      `json:"obtained"`
	Method      string    `json:"method,omitempty"`
	DocumentURL *string   `json:"document_url,omitempty"`
	ObtainedBy  uuid.UUID `json:"obtained_by"`
	ObtainedAt  time.Time `json:"obtained_at"`
}

// Billing carries the money fields for the episode. MaterialCosts is a cached
// derived value kept in sync eagerly on every material addition; TotalAmount is
// recomputed whenever ActualCost is set.
type Billing struct {
	EstimatedCost     float64 `json:"estimated_cost,omitempty"`
	ActualCost        *float64 `json:"actual_cost,omitempty"`
	MaterialCosts     float64 `json:"material_costs"`
	TaxAmount         float64 `json:"tax_amount,omitempty"`
	DiscountApplied   float64 `json:"discount_applied,omitempty"`
	TotalAmount       float64 `json:"total_amount"`
	InsuranceCoverage *float64 `json:"insurance_coverage,omitempty"`
	PaymentStatus     string  `json:"payment_status,omitempty"`
}

type FollowUp struct {
	Required     bool                  `json:"required"`
	Instructions *string               `json:"instructions,omitempty"`
	Appointments []FollowUpAppointment `json:"appointments,omitempty"`
}

type FollowUpAppointment struct {
	ID          uuid.UUID `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Purpose     string    `json:"purpose"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type Outcomes struct {
	Success             *bool   `json:"success,omitempty"`
	PatientSatisfaction *int    `json:"patient_satisfaction,omitempty"`
	Notes               *string `json:"notes,omitempty"`
}

// Metadata tracks authorship and the optimistic-concurrency version counter.
// Version starts at 1 on creation and every successful mutation of an existing
// record increments it by exactly 1.
type Metadata struct {
	Version        int       `json:"version"`
	CreatedBy      uuid.UUID `json:"created_by"`
	LastModifiedBy uuid.UUID `json:"last_modified_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (t *Treatment) findProcedure(id uuid.UUID) *ProcedureStep {
	for i := range t.Procedures {
		if t.Procedures[i].ID == id {
			return &t.Procedures[i]
		}
	}
	return nil
}

func (t *Treatment) findComplication(id uuid.UUID) *Complication {
	if t.PostOpAssessment == nil {
		return nil
	}
	for i := range t.PostOpAssessment.Complications {
		if t.PostOpAssessment.Complications[i].ID == id {
			return &t.PostOpAssessment.Complications[i]
		}
	}
	return nil
}

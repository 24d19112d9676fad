package treatment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for treatment records. Create assigns
// the human-readable identifier when the record carries none, counting existing
// identifiers with the same year-month prefix atomically with the insert.
// Update performs a version-checked write: the caller has already advanced
// t.Meta.Version, so the write succeeds only where the stored version equals
// t.Meta.Version-1. A mismatch surfaces as ErrConflict, a missing record as
// ErrNotFound, and in both cases nothing is written.
type Repository interface {
	Create(ctx context.Context, t *Treatment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Treatment, error)
	GetByTreatmentID(ctx context.Context, treatmentID string) (*Treatment, error)
	Update(ctx context.Context, t *Treatment) error
	CountByIDPrefix(ctx context.Context, prefix string) (int, error)

	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Treatment, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Treatment, int, error)
	ListByType(ctx context.Context, treatmentType string, limit, offset int) ([]*Treatment, int, error)
	ListByDateRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*Treatment, int, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Treatment, int, error)

	Stats(ctx context.Context, from, to time.Time, clinicID *uuid.UUID) (*Stats, error)
	ComplicationStats(ctx context.Context, from, to time.Time) ([]*ComplicationStat, error)
}

// Stats aggregates treatment records over a date range, optionally scoped to a
// clinic. AvgSuccessRate counts success as 1 and failure or unset as 0.
type Stats struct {
	Total           int     `json:"total"`
	Completed       int     `json:"completed"`
	InProgress      int     `json:"in_progress"`
	Cancelled       int     `json:"cancelled"`
	TotalActualCost float64 `json:"total_actual_cost"`
	AvgTotalMinutes float64 `json:"avg_total_minutes"`
	AvgSuccessRate  float64 `json:"avg_success_rate"`
}

// ComplicationStat is one row of the per-type complication report, ordered by
// Count descending.
type ComplicationStat struct {
	Type               string  `json:"type"`
	Count              int     `json:"count"`
	Resolved           int     `json:"resolved"`
	AvgResolutionHours float64 `json:"avg_resolution_hours"`
}

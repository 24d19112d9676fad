package treatment

import "math"

// Derived holds the computed read-side fields. They are never persisted;
// View recomputes them from the stored aggregate on every read.
type Derived struct {
	CompletionPercentage int      `json:"completion_percentage"`
	TotalMaterialCost    float64  `json:"total_material_cost"`
	HasComplications     bool     `json:"has_complications"`
	OverallRiskLevel     string   `json:"overall_risk_level,omitempty"`
	DurationDays         *int     `json:"duration_days,omitempty"`
}

// riskRank orders risk levels for OverallRiskLevel. Unknown levels rank below
// every valid one so a single bad value cannot dominate the aggregate.
var riskRank = map[string]int{
	RiskLow: 1, RiskMedium: 2, RiskHigh: 3, RiskVeryHigh: 4,
}

// CompletionPercentage returns round(100 * completed / total), or 0 when the
// record has no procedures.
func (t *Treatment) CompletionPercentage() int {
	if len(t.Procedures) == 0 {
		return 0
	}
	completed := 0
	for i := range t.Procedures {
		if t.Procedures[i].Status == ProcedureCompleted {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(len(t.Procedures))))
}

// TotalMaterialCost sums material costs, treating a missing cost as 0.
func (t *Treatment) TotalMaterialCost() float64 {
	var total float64
	for i := range t.Materials {
		if c := t.Materials[i].Cost; c != nil {
			total += *c
		}
	}
	return total
}

// HasComplications reports whether the post-operative complication list is non-empty.
func (t *Treatment) HasComplications() bool {
	return t.PostOpAssessment != nil && len(t.PostOpAssessment.Complications) > 0
}

// OverallRiskLevel is the maximum severity among the pre-, intra- and
// post-operative risk levels; empty when none is recorded.
func (t *Treatment) OverallRiskLevel() string {
	best := ""
	for _, a := range []*Assessment{t.PreOpAssessment, t.IntraOpAssessment, t.PostOpAssessment} {
		if a == nil || a.RiskLevel == "" {
			continue
		}
		if riskRank[a.RiskLevel] > riskRank[best] {
			best = a.RiskLevel
		}
	}
	return best
}

// DurationDays is the ceiling of the actual end minus start in whole days, or
// nil while either bound is unset.
func (t *Treatment) DurationDays() *int {
	start, end := t.ActualDuration.StartDate, t.ActualDuration.EndDate
	if start == nil || end == nil {
		return nil
	}
	days := int(math.Ceil(end.Sub(*start).Hours() / 24))
	return &days
}

// Derived computes all read-side fields at once.
func (t *Treatment) Derived() Derived {
	return Derived{
		CompletionPercentage: t.CompletionPercentage(),
		TotalMaterialCost:    t.TotalMaterialCost(),
		HasComplications:     t.HasComplications(),
		OverallRiskLevel:     t.OverallRiskLevel(),
		DurationDays:         t.DurationDays(),
	}
}

// View is the API response shape: the stored aggregate plus the derived fields.
type View struct {
	*Treatment
	Derived Derived `json:"derived"`
}

func (t *Treatment) View() View {
	return View{Treatment: t, Derived: t.Derived()}
}

// completedSessions and completedMinutes snapshot the procedure list for the
// completion transition; the stored values are never re-derived afterwards.
func (t *Treatment) completedSessions() int {
	n := 0
	for i := range t.Procedures {
		if t.Procedures[i].Status == ProcedureCompleted {
			n++
		}
	}
	return n
}

func (t *Treatment) completedMinutes() int {
	total := 0
	for i := range t.Procedures {
		if t.Procedures[i].Status == ProcedureCompleted {
			total += t.Procedures[i].ActualMinutes
		}
	}
	return total
}

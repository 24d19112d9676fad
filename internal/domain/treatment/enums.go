package treatment

// Status values for the treatment lifecycle.
const (
	StatusPlanned    = "planned"
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusPostponed  = "postponed"
	StatusOnHold     = "on_hold"
	StatusFailed     = "failed"
	StatusPartial    = "partial"
)

// Phase values.
const (
	PhasePlanning  = "planning"
	PhaseTreatment = "treatment"
	PhaseRecovery  = "recovery"
	PhaseFollowUp  = "follow_up"
)

// Procedure step statuses.
const (
	ProcedurePending    = "pending"
	ProcedureInProgress = "in_progress"
	ProcedureCompleted  = "completed"
	ProcedureSkipped    = "skipped"
)

// Risk levels, ordered very_high > high > medium > low.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskVeryHigh = "very_high"
)

// Clinical note types.
const (
	NoteProgress     = "progress"
	NoteComplication = "complication"
	NoteObservation  = "observation"
	NotePlan         = "plan"
)

var validTypes = map[string]bool{
	"consultation": true, "cleaning": true, "scaling": true, "polishing": true,
	"fluoride": true, "sealant": true, "filling": true, "root_canal": true,
	"extraction": true, "wisdom_tooth_extraction": true, "crown": true,
	"bridge": true, "veneer": true, "implant": true, "denture": true,
	"whitening": true, "braces": true, "aligner": true, "gum_surgery": true,
	"bone_graft": true,
}

var validCategories = map[string]bool{
	"preventive": true, "restorative": true, "cosmetic": true,
	"orthodontic": true, "periodontal": true, "endodontic": true,
	"oral_surgery": true,
}

var validPriorities = map[string]bool{
	"low": true, "medium": true, "high": true, "urgent": true,
}

var validUrgencies = map[string]bool{
	"routine": true, "urgent": true, "emergency": true,
}

var validStatuses = map[string]bool{
	StatusPlanned: true, StatusScheduled: true, StatusInProgress: true,
	StatusCompleted: true, StatusCancelled: true, StatusPostponed: true,
	StatusOnHold: true, StatusFailed: true, StatusPartial: true,
}

var validPhases = map[string]bool{
	PhasePlanning: true, PhaseTreatment: true, PhaseRecovery: true, PhaseFollowUp: true,
}

var validRiskLevels = map[string]bool{
	RiskLow: true, RiskMedium: true, RiskHigh: true, RiskVeryHigh: true,
}

var validNoteTypes = map[string]bool{
	NoteProgress: true, NoteComplication: true, NoteObservation: true, NotePlan: true,
}

var validImageTypes = map[string]bool{
	"pre_treatment": true, "during_treatment": true, "post_treatment": true,
	"xray": true, "scan": true,
}

var validComplicationTypes = map[string]bool{
	"minor": true, "moderate": true, "major": true, "severe": true,
}

var validComplicationSeverities = map[string]bool{
	"low": true, "medium": true, "high": true, "critical": true,
}

var validToothSurfaces = map[string]bool{
	"mesial": true, "distal": true, "occlusal": true, "buccal": true,
	"lingual": true, "incisal": true,
}

// terminalStatuses cannot be left once entered.
var terminalStatuses = map[string]bool{
	StatusCompleted: true, StatusCancelled: true, StatusFailed: true,
}

// validToothNumber accepts FDI two-digit notation for permanent teeth.
func validToothNumber(n int) bool {
	q, p := n/10, n%10
	return q >= 1 && q <= 4 && p >= 1 && p <= 8
}

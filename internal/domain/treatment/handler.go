package treatment

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentix/dentix/internal/platform/auth"
	"github.com/dentix/dentix/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – every clinic role
	readGroup := api.Group("", auth.RequireRole("admin", "dentist", "assistant", "receptionist"))
	readGroup.GET("/treatments", h.SearchTreatments)
	readGroup.GET("/treatments/:id", h.GetTreatment)
	readGroup.GET("/treatments/number/:treatmentId", h.GetTreatmentByNumber)
	readGroup.GET("/patients/:patientId/treatments", h.ListByPatient)
	readGroup.GET("/doctors/:doctorId/treatments", h.ListByDoctor)

	// Clinical write endpoints – staff performing or assisting treatment
	clinGroup := api.Group("", auth.RequireRole("admin", "dentist", "assistant"))
	clinGroup.POST("/treatments", h.CreateTreatment)
	clinGroup.PATCH("/treatments/:id/status", h.TransitionStatus)
	clinGroup.POST("/treatments/:id/start", h.StartTreatment)
	clinGroup.POST("/treatments/:id/complete", h.CompleteTreatment)
	clinGroup.POST("/treatments/:id/cancel", h.CancelTreatment)
	clinGroup.POST("/treatments/:id/postpone", h.PostponeTreatment)
	clinGroup.POST("/treatments/:id/procedures", h.AppendProcedure)
	clinGroup.POST("/treatments/:id/procedures/:stepId/start", h.StartProcedure)
	clinGroup.POST("/treatments/:id/procedures/:stepId/complete", h.CompleteProcedure)
	clinGroup.POST("/treatments/:id/materials", h.AddMaterial)
	clinGroup.POST("/treatments/:id/complications", h.AddComplication)
	clinGroup.POST("/treatments/:id/complications/:complicationId/resolve", h.ResolveComplication)
	clinGroup.POST("/treatments/:id/notes", h.AddClinicalNote)
	clinGroup.POST("/treatments/:id/images", h.AddImage)
	clinGroup.POST("/treatments/:id/vitals", h.RecordVitals)
	clinGroup.POST("/treatments/:id/consent", h.ObtainConsent)
	clinGroup.POST("/treatments/:id/equipment", h.RecordEquipmentUse)
	clinGroup.POST("/treatments/:id/assistants", h.AddAssistant)
	clinGroup.POST("/treatments/:id/quality-metrics", h.AddQualityMetric)
	clinGroup.POST("/treatments/:id/follow-ups", h.ScheduleFollowUp)
	clinGroup.POST("/treatments/:id/satisfaction", h.RecordSatisfaction)

	// Billing – front desk plus admin
	billGroup := api.Group("", auth.RequireRole("admin", "receptionist"))
	billGroup.PUT("/treatments/:id/billing", h.UpdateBilling)

	// Reports – practice management
	reportGroup := api.Group("", auth.RequireRole("admin", "dentist"))
	reportGroup.GET("/reports/treatments/stats", h.TreatmentStats)
	reportGroup.GET("/reports/treatments/complications", h.ComplicationReport)
}

// actorID resolves the authenticated user. Dev-mode principals are not UUIDs;
// they map to the zero id.
func actorID(c echo.Context) uuid.UUID {
	id, _ := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	return id
}

func pathUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// httpError maps domain errors onto HTTP status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// -- Lifecycle --

func (h *Handler) CreateTreatment(c echo.Context) error {
	var t Treatment
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &t, actorID(c)); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, t.View())
}

func (h *Handler) GetTreatment(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t.View())
}

func (h *Handler) GetTreatmentByNumber(c echo.Context) error {
	number := c.Param("treatmentId")
	if !ValidTreatmentID(number) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid treatment number")
	}
	t, err := h.svc.GetByTreatmentID(c.Request().Context(), number)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t.View())
}

func (h *Handler) TransitionStatus(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		Status string `json:"status"`
		TransitionInput
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.Transition(c.Request().Context(), id, body.Status, body.TransitionInput, actorID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t.View())
}

func (h *Handler) StartTreatment(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.svc.Start(c.Request().Context(), id, actorID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t.View())
}

func (h *Handler) CompleteTreatment(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		Success *bool `json:"success,omitempty"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.Complete(c.Request().Context(), id, body.Success, actorID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t.View())
}

func (h *Handler) CancelTreatment(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.Cancel(c.Request().Context(), id, body.Reason, actorID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t.View())
}

func (h *Handler) PostponeTreatment(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		Reason         string     `json:"reason"`
		RescheduleDate *time.Time `json:"reschedule_date,omitempty"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.Postpone(c.Request().Context(), id, body.Reason, body.RescheduleDate, actorID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t.View())
}

// -- Sub-records --

func (h *Handler) AppendProcedure(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var in ProcedureInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	step, err := h.svc.AppendProcedure(c.Request().Context(), id, in, actorID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, step)
}

func (h *Handler) StartProcedure(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	stepID, err := pathUUID(c, "stepId")
	if err != nil {
		return err
	}
	step, err := h.svc.StartProcedure(c.Request().Context(), id, stepID, actorID(c))
	if err != nil {
		return httpError(err)
	}
	if step == nil {
		return echo.NewHTTPError(http.StatusNotFound, "procedure step not found")
	}
	return c.JSON(http.StatusOK, step)
}

func (h *Handler) CompleteProcedure(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	stepID, err := pathUUID(c, "stepId")
	if err != nil {
		return err
	}
	var body struct {
		ActualMinutes int     `json:"actual_minutes"`
		Notes         *string `json:"notes,omitempty"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	step, err := h.svc.CompleteProcedure(c.Request().Context(), id, stepID, body.ActualMinutes, body.Notes, actorID(c))
	if err != nil {
		return httpError(err)
	}
	if step == nil {
		return echo.NewHTTPError(http.StatusNotFound, "procedure step not found")
	}
	return c.JSON(http.StatusOK, step)
}

func (h *Handler) AddMaterial(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var in MaterialInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.AddMaterial(c.Request().Context(), id, in, actorID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) AddComplication(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var in ComplicationInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	comp, err := h.svc.AddComplication(c.Request().Context(), id, in, actorID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, comp)
}

func (h *Handler) ResolveComplication(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	compID, err := pathUUID(c, "complicationId")
	if err != nil {
		return err
	}
	var body struct {
		Resolution string `json:"resolution"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	comp, err := h.svc.ResolveComplication(c.Request().Context(), id, compID, body.Resolution, actorID(c))
	if err != nil {
		return httpError(err)
	}
	if comp == nil {
		return echo.NewHTTPError(http.StatusNotFound, "complication not found")
	}
	return c.JSON(http.StatusOK, comp)
}

func (h *Handler) AddClinicalNote(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		Content string `json:"content"`
		Type    string `json:"type,omitempty"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	note, err := h.svc.AddClinicalNote(c.Request().Context(), id, body.Content, body.Type, actorID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, note)
}

func (h *Handler) AddImage(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var in ImageInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	img, err := h.svc.AddImage(c.Request().Context(), id, in, actorID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, img)
}

func (h *Handler) RecordVitals(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var in VitalsInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.RecordVitals(c.Request().Context(), id, in, actorID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t.View())
}

func (h *Handler) ObtainConsent(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var in ConsentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.ObtainConsent(c.Request().Context(), id, in, actorID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t.View())
}

func (h *Handler) AddQualityMetric(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var in QualityMetricInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.AddQualityMetric(c.Request().Context(), id, in, actorID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, t.View())
}

func (h *Handler) RecordEquipmentUse(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var in EquipmentUseInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.RecordEquipmentUse(c.Request().Context(), id, in, actorID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, t.View())
}

func (h *Handler) AddAssistant(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var in AssistantInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.AddAssistant(c.Request().Context(), id, in, actorID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, t.View())
}

func (h *Handler) ScheduleFollowUp(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var in FollowUpInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	appt, err := h.svc.ScheduleFollowUp(c.Request().Context(), id, in, actorID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) RecordSatisfaction(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		Rating int     `json:"rating"`
		Notes  *string `json:"notes,omitempty"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.RecordPatientSatisfaction(c.Request().Context(), id, body.Rating, body.Notes, actorID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t.View())
}

func (h *Handler) UpdateBilling(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var in BillingInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.UpdateBilling(c.Request().Context(), id, in, actorID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t.View())
}

// -- Queries and reports --

func (h *Handler) SearchTreatments(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for k, v := range c.QueryParams() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	trts, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views(trts), total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := pathUUID(c, "patientId")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	trts, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views(trts), total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByDoctor(c echo.Context) error {
	doctorID, err := pathUUID(c, "doctorId")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	trts, total, err := h.svc.ListByDoctor(c.Request().Context(), doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views(trts), total, pg.Limit, pg.Offset))
}

func (h *Handler) TreatmentStats(c echo.Context) error {
	from, to, err := dateRange(c)
	if err != nil {
		return err
	}
	var clinicID *uuid.UUID
	if v := c.QueryParam("clinic_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid clinic_id")
		}
		clinicID = &id
	}
	stats, err := h.svc.Stats(c.Request().Context(), from, to, clinicID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) ComplicationReport(c echo.Context) error {
	from, to, err := dateRange(c)
	if err != nil {
		return err
	}
	stats, err := h.svc.ComplicationStats(c.Request().Context(), from, to)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

// dateRange parses from/to query params; from defaults to 30 days back and to
// defaults to now.
func dateRange(c echo.Context) (time.Time, time.Time, error) {
	now := time.Now()
	from, to := now.AddDate(0, 0, -30), now
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, echo.NewHTTPError(http.StatusBadRequest, "invalid from date")
		}
		from = t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, echo.NewHTTPError(http.StatusBadRequest, "invalid to date")
		}
		to = t
	}
	return from, to, nil
}

func views(trts []*Treatment) []View {
	out := make([]View, len(trts))
	for i, t := range trts {
		out[i] = t.View()
	}
	return out
}

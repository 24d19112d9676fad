package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/dentix/dentix/internal/platform/auth"
)

// MeasureDefinition defines a reporting measure with its SQL query.
type MeasureDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SQL         string   `json:"sql"`
	Parameters  []string `json:"parameters"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
	Parameters  map[string]string        `json:"parameters,omitempty"`
}

// PredefinedMeasures is the list of available practice-management measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "treatment-volume-by-type",
		Name:        "Treatment Volume by Type",
		Description: "Number of treatment records grouped by treatment type",
		SQL:         `SELECT type, COUNT(*) AS total FROM treatment GROUP BY type ORDER BY total DESC`,
		Parameters:  []string{},
	},
	{
		ID:          "treatment-status-breakdown",
		Name:        "Treatment Status Breakdown",
		Description: "Count of treatment records by lifecycle status",
		SQL:         `SELECT status, COUNT(*) AS total FROM treatment GROUP BY status ORDER BY total DESC`,
		Parameters:  []string{},
	},
	{
		ID:   "monthly-revenue",
		Name: "Monthly Revenue",
		Description: "Billed totals per calendar month over the last year, " +
			"from treatments carrying a billing record",
		SQL: `SELECT to_char(date_trunc('month', created_at), 'YYYY-MM') AS month,
			COALESCE(SUM((doc->'billing'->>'total_amount')::numeric), 0) AS revenue
			FROM treatment
			WHERE created_at >= now() - interval '1 year'
			GROUP BY 1 ORDER BY 1`,
		Parameters: []string{},
	},
	{
		ID:   "complication-rate",
		Name: "Complication Rate",
		Description: "Share of completed treatments with at least one " +
			"post-operative complication, grouped by treatment type",
		SQL: `SELECT type,
			COUNT(*) AS completed,
			COUNT(*) FILTER (WHERE jsonb_array_length(
				COALESCE(doc->'post_op_assessment'->'complications', '[]'::jsonb)) > 0) AS with_complications
			FROM treatment
			WHERE status = 'completed'
			GROUP BY type ORDER BY completed DESC`,
		Parameters: []string{},
	},
	{
		ID:   "doctor-productivity",
		Name: "Doctor Productivity",
		Description: "Completed treatments and average chair time per doctor " +
			"over the last 90 days",
		SQL: `SELECT doctor_id,
			COUNT(*) AS completed,
			COALESCE(AVG((doc->'actual_duration'->>'total_minutes')::numeric), 0) AS avg_minutes
			FROM treatment
			WHERE status = 'completed' AND created_at >= now() - interval '90 days'
			GROUP BY doctor_id ORDER BY completed DESC`,
		Parameters: []string{},
	},
	{
		ID:   "patient-satisfaction",
		Name: "Patient Satisfaction",
		Description: "Average satisfaction rating by treatment type, " +
			"counting only records where a rating was collected",
		SQL: `SELECT type,
			COUNT(*) AS rated,
			AVG((doc->'outcomes'->>'patient_satisfaction')::numeric) AS avg_rating
			FROM treatment
			WHERE doc->'outcomes'->>'patient_satisfaction' IS NOT NULL
			GROUP BY type ORDER BY avg_rating DESC`,
		Parameters: []string{},
	},
}

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	pool *pgxpool.Pool
}

// NewHandler creates a new reporting handler.
func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// RegisterRoutes registers the reporting API routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	reportGroup := api.Group("/reports", auth.RequireRole("admin", "dentist"))
	reportGroup.GET("/measures", h.ListMeasures)
	reportGroup.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

// ListMeasures returns all available measure definitions.
func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure executes a measure's SQL and returns the results.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measureID := c.Param("id")

	measure := FindMeasure(measureID)
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	// Collect parameters from query string
	params := map[string]string{}
	for _, p := range measure.Parameters {
		if v := c.QueryParam(p); v != "" {
			params[p] = v
		}
	}

	results, err := h.executeSQL(c.Request().Context(), measure.SQL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}

	report := MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: time.Now(),
		Results:     results,
		Parameters:  params,
	}

	return c.JSON(http.StatusOK, report)
}

// executeSQL runs a SQL query and returns results as a slice of maps.
func (h *Handler) executeSQL(ctx context.Context, sql string) ([]map[string]interface{}, error) {
	rows, err := h.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	var results []map[string]interface{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[string(fd.Name)] = values[i]
		}
		results = append(results, row)
	}

	if results == nil {
		results = []map[string]interface{}{}
	}

	return results, nil
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}

package treatment

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentix/dentix/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

// The aggregate is stored whole as a JSONB document; the columns alongside it
// are denormalized copies of the fields the list and report queries filter on.
const trtCols = `doc`

func (r *repoPG) Create(ctx context.Context, t *Treatment) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		q := r.conn(ctx)
		if t.TreatmentID == "" {
			// Serialize identifier assignment per year-month bucket so two
			// concurrent creations cannot count the same sequence number.
			prefix := IDPrefix(t.Meta.CreatedAt)
			if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, prefix); err != nil {
				return err
			}
			n, err := r.CountByIDPrefix(ctx, prefix)
			if err != nil {
				return err
			}
			t.TreatmentID = FormatTreatmentID(prefix, n+1)
		}
		doc, err := json.Marshal(t)
		if err != nil {
			return err
		}
		_, err = q.Exec(ctx, `
			INSERT INTO treatment (
				id, treatment_id, patient_id, doctor_id, clinic_id,
				type, category, status, version, created_at, updated_at, doc
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			t.ID, t.TreatmentID, t.PatientID, t.DoctorID, t.ClinicID,
			t.Type, t.Category, t.Status, t.Meta.Version,
			t.Meta.CreatedAt, t.Meta.UpdatedAt, doc,
		)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Caller-supplied identifier collided with an existing record.
			return ErrConflict
		}
		return err
	})
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Treatment, error) {
	return scanTrt(r.conn(ctx).QueryRow(ctx, `SELECT `+trtCols+` FROM treatment WHERE id = $1`, id))
}

func (r *repoPG) GetByTreatmentID(ctx context.Context, treatmentID string) (*Treatment, error) {
	return scanTrt(r.conn(ctx).QueryRow(ctx, `SELECT `+trtCols+` FROM treatment WHERE treatment_id = $1`, treatmentID))
}

// Update writes the document only where the stored version is exactly one
// behind the incoming one. A miss is disambiguated with a follow-up probe.
func (r *repoPG) Update(ctx context.Context, t *Treatment) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE treatment SET
			status=$2, version=$3, updated_at=$4, doc=$5
		WHERE id = $1 AND version = $6`,
		t.ID, t.Status, t.Meta.Version, t.Meta.UpdatedAt, doc, t.Meta.Version-1,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var v int
		err := r.conn(ctx).QueryRow(ctx, `SELECT version FROM treatment WHERE id = $1`, t.ID).Scan(&v)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

func (r *repoPG) CountByIDPrefix(ctx context.Context, prefix string) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM treatment WHERE treatment_id LIKE $1`, prefix+"%").Scan(&n)
	return n, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Treatment, int, error) {
	return r.list(ctx, `patient_id = $1`, []interface{}{patientID}, limit, offset)
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Treatment, int, error) {
	return r.list(ctx, `doctor_id = $1`, []interface{}{doctorID}, limit, offset)
}

func (r *repoPG) ListByType(ctx context.Context, treatmentType string, limit, offset int) ([]*Treatment, int, error) {
	return r.list(ctx, `type = $1`, []interface{}{treatmentType}, limit, offset)
}

func (r *repoPG) ListByDateRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*Treatment, int, error) {
	return r.list(ctx, `created_at >= $1 AND created_at <= $2`, []interface{}{from, to}, limit, offset)
}

func (r *repoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Treatment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM treatment WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+trtCols+` FROM treatment WHERE `+where+
			` ORDER BY created_at DESC LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2),
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectTrts(rows, total)
}

var treatmentSearchParams = map[string]db.SearchParamConfig{
	"patient":      {Type: db.SearchParamReference, Column: "patient_id"},
	"doctor":       {Type: db.SearchParamReference, Column: "doctor_id"},
	"clinic":       {Type: db.SearchParamReference, Column: "clinic_id"},
	"type":         {Type: db.SearchParamToken, Column: "type"},
	"category":     {Type: db.SearchParamToken, Column: "category"},
	"status":       {Type: db.SearchParamToken, Column: "status"},
	"treatment_id": {Type: db.SearchParamToken, Column: "treatment_id"},
	"date":         {Type: db.SearchParamDate, Column: "created_at"},
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Treatment, int, error) {
	qb := db.NewSearchQuery("treatment", trtCols)
	qb.ApplyParams(params, treatmentSearchParams)
	qb.ApplySort(params["sort"], "created_at DESC", treatmentSearchParams)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(limit, offset), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectTrts(rows, total)
}

func (r *repoPG) Stats(ctx context.Context, from, to time.Time, clinicID *uuid.UUID) (*Stats, error) {
	q := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'in_progress'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COALESCE(SUM((doc->'billing'->>'actual_cost')::numeric), 0),
			COALESCE(AVG((doc->'actual_duration'->>'total_minutes')::numeric), 0),
			COALESCE(AVG(CASE WHEN (doc->'outcomes'->>'success')::boolean THEN 1 ELSE 0 END), 0)
		FROM treatment
		WHERE created_at >= $1 AND created_at <= $2`
	args := []interface{}{from, to}
	if clinicID != nil {
		q += ` AND clinic_id = $3`
		args = append(args, *clinicID)
	}
	var s Stats
	err := r.conn(ctx).QueryRow(ctx, q, args...).Scan(
		&s.Total, &s.Completed, &s.InProgress, &s.Cancelled,
		&s.TotalActualCost, &s.AvgTotalMinutes, &s.AvgSuccessRate,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repoPG) ComplicationStats(ctx context.Context, from, to time.Time) ([]*ComplicationStat, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT
			c->>'type',
			COUNT(*),
			COUNT(*) FILTER (WHERE (c->>'resolved')::boolean),
			COALESCE(AVG(
				EXTRACT(EPOCH FROM (c->>'resolved_at')::timestamptz - (c->>'occurred_at')::timestamptz) / 3600
			) FILTER (WHERE (c->>'resolved')::boolean), 0)
		FROM treatment,
			jsonb_array_elements(doc->'post_op_assessment'->'complications') AS c
		WHERE created_at >= $1 AND created_at <= $2
		GROUP BY c->>'type'
		ORDER BY COUNT(*) DESC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []*ComplicationStat
	for rows.Next() {
		var cs ComplicationStat
		if err := rows.Scan(&cs.Type, &cs.Count, &cs.Resolved, &cs.AvgResolutionHours); err != nil {
			return nil, err
		}
		stats = append(stats, &cs)
	}
	return stats, rows.Err()
}

func scanTrt(row pgx.Row) (*Treatment, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var t Treatment
	if err := json.Unmarshal(doc, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func collectTrts(rows pgx.Rows, total int) ([]*Treatment, int, error) {
	var trts []*Treatment
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, 0, err
		}
		var t Treatment
		if err := json.Unmarshal(doc, &t); err != nil {
			return nil, 0, err
		}
		trts = append(trts, &t)
	}
	return trts, total, rows.Err()
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nbclinic/portal/internal/domain/exam"
	"github.com/nbclinic/portal/internal/observability"
	"github.com/nbclinic/portal/internal/utils"
)

type ExamRequestsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewExamRequestsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ExamRequestsRepo {
	return &ExamRequestsRepo{pool: pool, prom: prom}
}

func (r *ExamRequestsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *ExamRequestsRepo) Create(ctx context.Context, partnerID string, req exam.CreateRequest) (exam.Request, error) {
	now := time.Now().UTC()

	e := exam.Request{
		ID:               uuid.NewString(),
		PatientName:      req.PatientName,
		BirthDate:        req.BirthDate,
		ConsultationDate: req.ConsultationDate,
		DoctorID:         req.DoctorID,
		ExamType:         req.ExamType,
		Status:           exam.StatusReferred,
		PaymentType:      req.PaymentType,
		InsuranceID:      req.InsuranceID,
		PartnerID:        partnerID,
		Observations:     req.Observations,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	op := "exam_requests.create"

	err := r.observe(op, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO exam_requests(
				id, patient_name, birth_date, consultation_date, doctor_id,
				exam_type, status, payment_type, insurance_id, partner_id,
				observations, created_at, updated_at
			 ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			e.ID, e.PatientName, e.BirthDate, e.ConsultationDate, e.DoctorID,
			e.ExamType, e.Status, e.PaymentType, e.InsuranceID, e.PartnerID,
			e.Observations, e.CreatedAt, e.UpdatedAt)
		return err
	})

	if err != nil {
		return exam.Request{}, err
	}
	return e, nil
}

const examColumns = `id, patient_name, birth_date, consultation_date, doctor_id,
	exam_type, status, payment_type, insurance_id, partner_id,
	observations, created_at, updated_at`

func scanExam(row pgx.Row) (exam.Request, error) {
	var e exam.Request
	err := row.Scan(
		&e.ID, &e.PatientName, &e.BirthDate, &e.ConsultationDate, &e.DoctorID,
		&e.ExamType, &e.Status, &e.PaymentType, &e.InsuranceID, &e.PartnerID,
		&e.Observations, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

// List pages newest-first with a keyset cursor. nextCursor is empty when
// the page is the last one.
func (r *ExamRequestsRepo) List(ctx context.Context, filter exam.ListFilter) ([]exam.Request, string, error) {
	var conds []string
	var args []interface{}

	argsPosition := 1

	if filter.PartnerID != nil {
		conds = append(conds, fmt.Sprintf("partner_id = $%d", argsPosition))
		args = append(args, *filter.PartnerID)
		argsPosition++
	}

	if filter.Status != nil {
		conds = append(conds, fmt.Sprintf("status = $%d", argsPosition))
		args = append(args, *filter.Status)
		argsPosition++
	}

	if filter.From != nil {
		conds = append(conds, fmt.Sprintf("created_at >= $%d", argsPosition))
		args = append(args, *filter.From)
		argsPosition++
	}

	if filter.To != nil {
		conds = append(conds, fmt.Sprintf("created_at <= $%d", argsPosition))
		args = append(args, *filter.To)
		argsPosition++
	}

	if filter.Cursor != "" {
		c, err := utils.DecodeRequestCursor(filter.Cursor)
		if err != nil {
			return nil, "", err
		}
		conds = append(conds, fmt.Sprintf("(created_at, id) < ($%d, $%d)", argsPosition, argsPosition+1))
		args = append(args, c.CreatedAt, c.ID)
		argsPosition += 2
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT " + examColumns + " FROM exam_requests"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	// one extra row tells us whether another page exists
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argsPosition)
	args = append(args, limit+1)

	op := "exam_requests.list"

	var out []exam.Request

	err := r.observe(op, func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanExam(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(out) > limit {
		out = out[:limit]
		last := out[len(out)-1]
		nextCursor, err = utils.EncodeRequestCursor(last.CreatedAt, last.ID)
		if err != nil {
			return nil, "", err
		}
	}

	if out == nil {
		out = []exam.Request{}
	}
	return out, nextCursor, nil
}

func (r *ExamRequestsRepo) GetByID(ctx context.Context, id string) (exam.Request, error) {
	op := "exam_requests.get"

	var e exam.Request

	err := r.observe(op, func() error {
		var err error
		e, err = scanExam(r.pool.QueryRow(ctx,
			"SELECT "+examColumns+" FROM exam_requests WHERE id = $1", id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return exam.Request{}, exam.ErrNotFound
		}
		return exam.Request{}, err
	}
	return e, nil
}

func (r *ExamRequestsRepo) UpdateStatus(ctx context.Context, id, status string) (exam.Request, error) {
	op := "exam_requests.update_status"

	var e exam.Request

	err := r.observe(op, func() error {
		var err error
		e, err = scanExam(r.pool.QueryRow(ctx,
			`UPDATE exam_requests
			 SET status = $2,
			     updated_at = NOW()
			 WHERE id = $1
			 RETURNING `+examColumns,
			id, status))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return exam.Request{}, exam.ErrNotFound
		}
		return exam.Request{}, err
	}
	return e, nil
}

// CountByStatus feeds the admin reports screen.
func (r *ExamRequestsRepo) CountByStatus(ctx context.Context, from, to *time.Time) (map[string]int, error) {
	var conds []string
	var args []interface{}

	argsPosition := 1

	if from != nil {
		conds = append(conds, fmt.Sprintf("created_at >= $%d", argsPosition))
		args = append(args, *from)
		argsPosition++
	}
	if to != nil {
		conds = append(conds, fmt.Sprintf("created_at <= $%d", argsPosition))
		args = append(args, *to)
		argsPosition++
	}

	query := `SELECT status, COUNT(*) FROM exam_requests`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " GROUP BY status"

	op := "exam_requests.count_by_status"

	out := map[string]int{}

	err := r.observe(op, func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var status string
			var n int
			if err := rows.Scan(&status, &n); err != nil {
				return err
			}
			out[status] = n
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

// CountByPartner feeds the per-partner volume report.
func (r *ExamRequestsRepo) CountByPartner(ctx context.Context, from, to *time.Time) (map[string]int, error) {
	var conds []string
	var args []interface{}

	argsPosition := 1

	if from != nil {
		conds = append(conds, fmt.Sprintf("created_at >= $%d", argsPosition))
		args = append(args, *from)
		argsPosition++
	}
	if to != nil {
		conds = append(conds, fmt.Sprintf("created_at <= $%d", argsPosition))
		args = append(args, *to)
		argsPosition++
	}

	query := `SELECT partner_id, COUNT(*) FROM exam_requests`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " GROUP BY partner_id"

	op := "exam_requests.count_by_partner"

	out := map[string]int{}

	err := r.observe(op, func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var partnerID string
			var n int
			if err := rows.Scan(&partnerID, &n); err != nil {
				return err
			}
			out[partnerID] = n
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

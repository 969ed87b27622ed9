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

	"github.com/nbclinic/portal/internal/domain/checkup"
	"github.com/nbclinic/portal/internal/observability"
	"github.com/nbclinic/portal/internal/utils"
)

type CheckupRequestsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewCheckupRequestsRepo(pool *pgxpool.Pool, prom *observability.Prom) *CheckupRequestsRepo {
	return &CheckupRequestsRepo{pool: pool, prom: prom}
}

func (r *CheckupRequestsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const checkupColumns = `id, patient_name, birth_date, battery_id, requesting_company,
	exams_to_perform, unit_id, observations, status, created_at, updated_at`

func scanCheckup(row pgx.Row) (checkup.Request, error) {
	var c checkup.Request
	err := row.Scan(
		&c.ID, &c.PatientName, &c.BirthDate, &c.BatteryID, &c.RequestingCompany,
		&c.ExamsToPerform, &c.UnitID, &c.Observations, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *CheckupRequestsRepo) Create(ctx context.Context, req checkup.CreateRequest) (checkup.Request, error) {
	now := time.Now().UTC()

	c := checkup.Request{
		ID:                uuid.NewString(),
		PatientName:       req.PatientName,
		BirthDate:         req.BirthDate,
		BatteryID:         req.BatteryID,
		RequestingCompany: req.RequestingCompany,
		ExamsToPerform:    req.ExamsToPerform,
		UnitID:            req.UnitID,
		Observations:      req.Observations,
		Status:            checkup.StatusRequested,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	op := "checkup_requests.create"

	err := r.observe(op, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO checkup_requests(
				id, patient_name, birth_date, battery_id, requesting_company,
				exams_to_perform, unit_id, observations, status, created_at, updated_at
			 ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			c.ID, c.PatientName, c.BirthDate, c.BatteryID, c.RequestingCompany,
			c.ExamsToPerform, c.UnitID, c.Observations, c.Status, c.CreatedAt, c.UpdatedAt)
		return err
	})

	if err != nil {
		return checkup.Request{}, err
	}
	return c, nil
}

func (r *CheckupRequestsRepo) List(ctx context.Context, filter checkup.ListFilter) ([]checkup.Request, string, error) {
	var conds []string
	var args []interface{}

	argsPosition := 1

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

	query := "SELECT " + checkupColumns + " FROM checkup_requests"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argsPosition)
	args = append(args, limit+1)

	op := "checkup_requests.list"

	var out []checkup.Request

	err := r.observe(op, func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanCheckup(rows)
			if err != nil {
				return err
			}
			out = append(out, c)
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
		out = []checkup.Request{}
	}
	return out, nextCursor, nil
}

func (r *CheckupRequestsRepo) GetByID(ctx context.Context, id string) (checkup.Request, error) {
	op := "checkup_requests.get"

	var c checkup.Request

	err := r.observe(op, func() error {
		var err error
		c, err = scanCheckup(r.pool.QueryRow(ctx,
			"SELECT "+checkupColumns+" FROM checkup_requests WHERE id = $1", id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return checkup.Request{}, checkup.ErrNotFound
		}
		return checkup.Request{}, err
	}
	return c, nil
}

// UpdateStatus moves a request along the track and optionally assigns the
// unit it was referred to.
func (r *CheckupRequestsRepo) UpdateStatus(ctx context.Context, id, status string, unitID *string) (checkup.Request, error) {
	op := "checkup_requests.update_status"

	var c checkup.Request

	err := r.observe(op, func() error {
		var err error
		c, err = scanCheckup(r.pool.QueryRow(ctx,
			`UPDATE checkup_requests
			 SET status = $2,
			     unit_id = COALESCE($3, unit_id),
			     updated_at = NOW()
			 WHERE id = $1
			 RETURNING `+checkupColumns,
			id, status, unitID))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return checkup.Request{}, checkup.ErrNotFound
		}
		return checkup.Request{}, err
	}
	return c, nil
}

func (r *CheckupRequestsRepo) CountByStatus(ctx context.Context, from, to *time.Time) (map[string]int, error) {
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

	query := `SELECT status, COUNT(*) FROM checkup_requests`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " GROUP BY status"

	op := "checkup_requests.count_by_status"

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

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nbclinic/portal/internal/domain/checkup"
)

type BatteriesRepo struct {
	pool *pgxpool.Pool
}

func NewBatteriesRepo(pool *pgxpool.Pool) *BatteriesRepo {
	return &BatteriesRepo{pool: pool}
}

func (r *BatteriesRepo) Create(ctx context.Context, req checkup.CreateBatteryRequest) (checkup.Battery, error) {
	b := checkup.Battery{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Exams:     req.Exams,
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO batteries(id, name, exams, created_at)
		 VALUES($1,$2,$3,$4)`,
		b.ID, b.Name, b.Exams, b.CreatedAt)

	if err != nil {
		return checkup.Battery{}, err
	}
	return b, nil
}

func (r *BatteriesRepo) List(ctx context.Context) ([]checkup.Battery, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, exams, created_at
		 FROM batteries
		 ORDER BY name ASC, id ASC`)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []checkup.Battery{}

	for rows.Next() {
		var b checkup.Battery
		if err := rows.Scan(&b.ID, &b.Name, &b.Exams, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *BatteriesRepo) GetByID(ctx context.Context, id string) (checkup.Battery, error) {
	var b checkup.Battery

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, exams, created_at FROM batteries WHERE id = $1`, id).
		Scan(&b.ID, &b.Name, &b.Exams, &b.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return checkup.Battery{}, checkup.ErrBatteryNotFound
		}
		return checkup.Battery{}, err
	}
	return b, nil
}

func (r *BatteriesRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM batteries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return checkup.ErrBatteryNotFound
	}
	return nil
}

package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nbclinic/portal/internal/domain/checkup"
)

type UnitsRepo struct {
	pool *pgxpool.Pool
}

func NewUnitsRepo(pool *pgxpool.Pool) *UnitsRepo {
	return &UnitsRepo{pool: pool}
}

func (r *UnitsRepo) Create(ctx context.Context, req checkup.CreateUnitRequest) (checkup.Unit, error) {
	u := checkup.Unit{
		ID:        uuid.NewString(),
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO units(id, name, created_at) VALUES($1,$2,$3)`,
		u.ID, u.Name, u.CreatedAt)

	if err != nil {
		return checkup.Unit{}, err
	}
	return u, nil
}

func (r *UnitsRepo) List(ctx context.Context) ([]checkup.Unit, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, created_at FROM units ORDER BY name ASC, id ASC`)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []checkup.Unit{}

	for rows.Next() {
		var u checkup.Unit
		if err := rows.Scan(&u.ID, &u.Name, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *UnitsRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM units WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return checkup.ErrUnitNotFound
	}
	return nil
}

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nbclinic/portal/internal/domain/partner"
)

var ErrInsuranceNotFound = errors.New("insurance not found")

type InsurancesRepo struct {
	pool *pgxpool.Pool
}

func NewInsurancesRepo(pool *pgxpool.Pool) *InsurancesRepo {
	return &InsurancesRepo{pool: pool}
}

func (r *InsurancesRepo) Create(ctx context.Context, partnerID string, req partner.CreateInsuranceRequest) (partner.Insurance, error) {
	ins := partner.Insurance{
		ID:        uuid.NewString(),
		Name:      req.Name,
		PartnerID: partnerID,
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO insurances(id, name, partner_id, created_at)
		 VALUES($1,$2,$3,$4)`,
		ins.ID, ins.Name, ins.PartnerID, ins.CreatedAt)

	if err != nil {
		return partner.Insurance{}, err
	}
	return ins, nil
}

func (r *InsurancesRepo) ListByPartner(ctx context.Context, partnerID string) ([]partner.Insurance, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, partner_id, created_at
		 FROM insurances
		 WHERE partner_id = $1
		 ORDER BY name ASC, id ASC`, partnerID)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []partner.Insurance{}

	for rows.Next() {
		var ins partner.Insurance
		if err := rows.Scan(&ins.ID, &ins.Name, &ins.PartnerID, &ins.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ins)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *InsurancesRepo) GetByID(ctx context.Context, partnerID, id string) (partner.Insurance, error) {
	var ins partner.Insurance

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, partner_id, created_at
		 FROM insurances
		 WHERE id = $1 AND partner_id = $2`, id, partnerID).
		Scan(&ins.ID, &ins.Name, &ins.PartnerID, &ins.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return partner.Insurance{}, ErrInsuranceNotFound
		}
		return partner.Insurance{}, err
	}
	return ins, nil
}

func (r *InsurancesRepo) Delete(ctx context.Context, partnerID, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM insurances WHERE id = $1 AND partner_id = $2`, id, partnerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsuranceNotFound
	}
	return nil
}

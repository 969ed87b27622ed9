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

type PartnersRepo struct {
	pool *pgxpool.Pool
}

func NewPartnersRepo(pool *pgxpool.Pool) *PartnersRepo {
	return &PartnersRepo{pool: pool}
}

func (r *PartnersRepo) Create(ctx context.Context, req partner.CreatePartnerRequest) (partner.Partner, error) {
	now := time.Now().UTC()

	p := partner.Partner{
		ID:          uuid.NewString(),
		Name:        req.Name,
		CompanyType: req.CompanyType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO partners(id, name, company_type, created_at, updated_at)
		 VALUES($1,$2,$3,$4,$5)`,
		p.ID, p.Name, p.CompanyType, p.CreatedAt, p.UpdatedAt)

	if err != nil {
		return partner.Partner{}, err
	}

	return p, nil
}

func (r *PartnersRepo) List(ctx context.Context) ([]partner.Partner, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, company_type, created_at, updated_at
		 FROM partners
		 ORDER BY name ASC, id ASC`)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []partner.Partner{}

	for rows.Next() {
		var p partner.Partner
		if err := rows.Scan(&p.ID, &p.Name, &p.CompanyType, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PartnersRepo) GetByID(ctx context.Context, id string) (partner.Partner, error) {
	var p partner.Partner

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, company_type, created_at, updated_at
		 FROM partners
		 WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.CompanyType, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return partner.Partner{}, partner.ErrNotFound
		}
		return partner.Partner{}, err
	}
	return p, nil
}

func (r *PartnersRepo) Update(ctx context.Context, id string, req partner.UpdatePartnerRequest) (partner.Partner, error) {
	var p partner.Partner

	err := r.pool.QueryRow(ctx,
		`UPDATE partners
		 SET name = $2,
		     company_type = $3,
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING id, name, company_type, created_at, updated_at`,
		id, req.Name, req.CompanyType).
		Scan(&p.ID, &p.Name, &p.CompanyType, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return partner.Partner{}, partner.ErrNotFound
		}
		return partner.Partner{}, err
	}
	return p, nil
}

func (r *PartnersRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM partners WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return partner.ErrNotFound
	}
	return nil
}

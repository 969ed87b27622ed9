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

var ErrDoctorNotFound = errors.New("doctor not found")

type DoctorsRepo struct {
	pool *pgxpool.Pool
}

func NewDoctorsRepo(pool *pgxpool.Pool) *DoctorsRepo {
	return &DoctorsRepo{pool: pool}
}

func (r *DoctorsRepo) Create(ctx context.Context, partnerID string, req partner.CreateDoctorRequest) (partner.Doctor, error) {
	d := partner.Doctor{
		ID:        uuid.NewString(),
		Name:      req.Name,
		CRM:       req.CRM,
		PartnerID: partnerID,
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO doctors(id, name, crm, partner_id, created_at)
		 VALUES($1,$2,$3,$4,$5)`,
		d.ID, d.Name, d.CRM, d.PartnerID, d.CreatedAt)

	if err != nil {
		return partner.Doctor{}, err
	}
	return d, nil
}

func (r *DoctorsRepo) ListByPartner(ctx context.Context, partnerID string) ([]partner.Doctor, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, crm, partner_id, created_at
		 FROM doctors
		 WHERE partner_id = $1
		 ORDER BY name ASC, id ASC`, partnerID)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []partner.Doctor{}

	for rows.Next() {
		var d partner.Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.CRM, &d.PartnerID, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID scopes the lookup to a partner: a doctor is never visible to a
// different partner's referrals.
func (r *DoctorsRepo) GetByID(ctx context.Context, partnerID, id string) (partner.Doctor, error) {
	var d partner.Doctor

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, crm, partner_id, created_at
		 FROM doctors
		 WHERE id = $1 AND partner_id = $2`, id, partnerID).
		Scan(&d.ID, &d.Name, &d.CRM, &d.PartnerID, &d.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return partner.Doctor{}, ErrDoctorNotFound
		}
		return partner.Doctor{}, err
	}
	return d, nil
}

func (r *DoctorsRepo) Delete(ctx context.Context, partnerID, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM doctors WHERE id = $1 AND partner_id = $2`, id, partnerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

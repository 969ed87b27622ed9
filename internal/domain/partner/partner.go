package partner

import (
	"errors"
	"time"
)

type Partner struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CompanyType string    `json:"companyType"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Doctor and Insurance are partner-scoped reference data used when a
// partner files an exam referral.
type Doctor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CRM       string    `json:"crm"`
	PartnerID string    `json:"partnerId"`
	CreatedAt time.Time `json:"createdAt"`
}

type Insurance struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PartnerID string    `json:"partnerId"`
	CreatedAt time.Time `json:"createdAt"`
}

var ErrNotFound = errors.New("partner not found")

type CreatePartnerRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=160"`
	CompanyType string `json:"companyType" binding:"required,min=2,max=80"`
}

type UpdatePartnerRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=160"`
	CompanyType string `json:"companyType" binding:"required,min=2,max=80"`
}

type CreateDoctorRequest struct {
	Name string `json:"name" binding:"required,min=2,max=160"`
	CRM  string `json:"crm" binding:"required,min=4,max=20"`
}

type CreateInsuranceRequest struct {
	Name string `json:"name" binding:"required,min=2,max=160"`
}

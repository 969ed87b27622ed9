package exam

import (
	"errors"
	"time"
)

// Status values follow the original clinic workflow: a referral arrives
// from a partner, reception forwards it, and it either gets performed or
// flagged for intervention.
const (
	StatusReferred     = "encaminhado"
	StatusPerformed    = "executado"
	StatusIntervention = "intervencao"
)

const (
	PaymentPrivate   = "particular"
	PaymentInsurance = "convenio"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusReferred, StatusPerformed, StatusIntervention:
		return true
	}
	return false
}

type Request struct {
	ID               string    `json:"id"`
	PatientName      string    `json:"patientName"`
	BirthDate        time.Time `json:"birthDate"`
	ConsultationDate time.Time `json:"consultationDate"`
	DoctorID         string    `json:"doctorId"`
	ExamType         string    `json:"examType"`
	Status           string    `json:"status"`
	PaymentType      string    `json:"paymentType"`
	InsuranceID      *string   `json:"insuranceId,omitempty"`
	PartnerID        string    `json:"partnerId"`
	Observations     string    `json:"observations"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// with pointers if optional, it will be nil
type ListFilter struct {
	PartnerID *string
	Status    *string
	From      *time.Time
	To        *time.Time
	Limit     int
	Cursor    string
}

var ErrNotFound = errors.New("exam request not found")

type CreateRequest struct {
	PatientName      string    `json:"patientName" binding:"required,min=2,max=160"`
	BirthDate        time.Time `json:"birthDate" binding:"required"`
	ConsultationDate time.Time `json:"consultationDate" binding:"required"`
	DoctorID         string    `json:"doctorId" binding:"required,uuid"`
	ExamType         string    `json:"examType" binding:"required,min=2,max=120"`
	PaymentType      string    `json:"paymentType" binding:"required,oneof=particular convenio"`
	InsuranceID      *string   `json:"insuranceId" binding:"omitempty,uuid"`
	Observations     string    `json:"observations" binding:"omitempty,max=2000"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=encaminhado executado intervencao"`
}

package checkup

import (
	"errors"
	"time"
)

// Check-up requests move from requested to referred to performed; there is
// no intervention state on this track.
const (
	StatusRequested = "solicitado"
	StatusReferred  = "encaminhado"
	StatusPerformed = "executado"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusRequested, StatusReferred, StatusPerformed:
		return true
	}
	return false
}

// Battery is a named list of exams applied together during a company
// check-up.
type Battery struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Exams     []string  `json:"exams"`
	CreatedAt time.Time `json:"createdAt"`
}

// Unit is a clinic location where a check-up can be performed.
type Unit struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Request struct {
	ID                string    `json:"id"`
	PatientName       string    `json:"patientName"`
	BirthDate         time.Time `json:"birthDate"`
	BatteryID         string    `json:"batteryId"`
	RequestingCompany string    `json:"requestingCompany"`
	ExamsToPerform    []string  `json:"examsToPerform"`
	UnitID            *string   `json:"unitId,omitempty"`
	Observations      string    `json:"observations"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type ListFilter struct {
	Status *string
	From   *time.Time
	To     *time.Time
	Limit  int
	Cursor string
}

var (
	ErrNotFound        = errors.New("checkup request not found")
	ErrBatteryNotFound = errors.New("battery not found")
	ErrUnitNotFound    = errors.New("unit not found")
)

type CreateBatteryRequest struct {
	Name  string   `json:"name" binding:"required,min=2,max=160"`
	Exams []string `json:"exams" binding:"required,min=1,dive,min=2,max=120"`
}

type CreateUnitRequest struct {
	Name string `json:"name" binding:"required,min=2,max=160"`
}

type CreateRequest struct {
	PatientName       string    `json:"patientName" binding:"required,min=2,max=160"`
	BirthDate         time.Time `json:"birthDate" binding:"required"`
	BatteryID         string    `json:"batteryId" binding:"required,uuid"`
	RequestingCompany string    `json:"requestingCompany" binding:"required,min=2,max=160"`
	ExamsToPerform    []string  `json:"examsToPerform" binding:"required,min=1,dive,min=2,max=120"`
	UnitID            *string   `json:"unitId" binding:"omitempty,uuid"`
	Observations      string    `json:"observations" binding:"omitempty,max=2000"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=solicitado encaminhado executado"`
	UnitID *string `json:"unitId" binding:"omitempty,uuid"`
}

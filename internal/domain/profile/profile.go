package profile

import (
	"errors"
	"time"
)

// Roles carried by profile rows. A role is assigned once at creation and
// never changed afterwards; there is no role-change endpoint.
const (
	RoleAdmin     = "admin"
	RolePartner   = "partner"
	RoleReception = "reception"
	RoleCheckup   = "checkup"
)

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RolePartner, RoleReception, RoleCheckup:
		return true
	}
	return false
}

// Profile is the application-level row describing a user, keyed by the
// credential store's subject id. At most one profile exists per subject.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	PartnerID *string   `json:"partnerId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AuthUser is the resolved, consumer-facing projection of a profile.
type AuthUser struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	Role      string  `json:"role"`
	PartnerID *string `json:"partnerId,omitempty"`
}

func (p Profile) AuthUser() AuthUser {
	return AuthUser{
		ID:        p.ID,
		Email:     p.Email,
		Name:      p.Name,
		Role:      p.Role,
		PartnerID: p.PartnerID,
	}
}

// Metadata is the name/role pair attached to an identity at registration
// time. It lets the profile row be recreated if the original insert was
// lost (missing table, eventual consistency).
type Metadata struct {
	Name      string  `json:"name"`
	Role      string  `json:"role"`
	PartnerID *string `json:"partnerId,omitempty"`
}

var ErrNotFound = errors.New("profile not found")

// ErrTableMissing marks the expected pre-provisioning state where the
// profiles table has not been created yet. Callers treat it as "no row",
// not as a failure.
var ErrTableMissing = errors.New("profiles table does not exist")

type CreateUserRequest struct {
	Email     string  `json:"email" binding:"required,email"`
	Name      string  `json:"name" binding:"required,min=2,max=120"`
	Role      string  `json:"role" binding:"required,oneof=admin partner reception checkup"`
	PartnerID *string `json:"partnerId" binding:"omitempty,uuid"`
}

func NewFromMetadata(subjectID, email string, meta Metadata) Profile {
	now := time.Now().UTC()

	return Profile{
		ID:        subjectID,
		Email:     email,
		Name:      meta.Name,
		Role:      meta.Role,
		PartnerID: meta.PartnerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

package credstore

import (
	"time"

	"github.com/nbclinic/portal/internal/domain/profile"
)

// Session is the opaque token pair issued by the credential store.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"-"`
}

// Identity is the store's authentication record for a subject. Metadata is
// whatever was attached at registration time (name, role).
type Identity struct {
	ID          string           `json:"id"`
	Email       string           `json:"email"`
	ConfirmedAt *time.Time       `json:"confirmed_at,omitempty"`
	Metadata    profile.Metadata `json:"user_metadata"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Grant is the result of a successful password exchange.
type Grant struct {
	Session  Session
	Identity Identity
}

// SignUpParams registers a new identity. Metadata travels with the
// identity so the profile row can be reconstructed later.
type SignUpParams struct {
	Email    string
	Password string
	Metadata profile.Metadata
}

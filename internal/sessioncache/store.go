// Package sessioncache persists the credential store's token pair and the
// single fallback admin credential record between process runs. It is the
// server-side stand-in for the browser's local storage in the original
// deployment model.
package sessioncache

import (
	"context"
	"errors"
	"time"
)

// Fixed storage keys. The fallback record key matches the original
// deployment's "nb_admin_user" blob.
const (
	KeySession       = "nb:session"
	KeyFallbackAdmin = "nb:admin_fallback"
)

var ErrNotFound = errors.New("sessioncache: key not found")

// TokenPair mirrors the store-issued session.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// FallbackAdmin is the offline-continuity credential record written during
// provisioning. The secret is a bcrypt hash; this record is a dev/demo
// convenience, not a security mechanism, and deployments that do not want
// it set no record at all.
type FallbackAdmin struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store is the persistence seam. Redis in production, memory in tests.
type Store interface {
	SaveSession(ctx context.Context, pair TokenPair) error
	LoadSession(ctx context.Context) (TokenPair, error)
	ClearSession(ctx context.Context) error

	SaveFallbackAdmin(ctx context.Context, rec FallbackAdmin) error
	LoadFallbackAdmin(ctx context.Context) (FallbackAdmin, error)
	ClearFallbackAdmin(ctx context.Context) error
}

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/nbclinic/portal/internal/credstore"
	"github.com/nbclinic/portal/internal/domain/profile"
	"github.com/nbclinic/portal/internal/security"
	"github.com/nbclinic/portal/internal/sessioncache"
)

// Development escape hatch. Documented, not secret: lets the portal be
// exercised in environments with no reachable credential store.
const (
	DevAdminEmail    = "admin@nb.com"
	DevAdminPassword = "admin123"
	DevAdminID       = "dev-admin-id"
	DevAdminName     = "Administrador"
)

// settleDelay gives the store time to drop a stale cached session before
// the second grant attempt.
const settleDelay = 500 * time.Millisecond

// passwordGrantStrategy is the primary path: a direct credential exchange
// with the store's token endpoint.
type passwordGrantStrategy struct {
	store CredentialStore
}

func (s *passwordGrantStrategy) Name() string { return "password_grant" }

func (s *passwordGrantStrategy) Attempt(ctx context.Context, creds Credentials) Outcome {
	grant, err := s.store.PasswordGrant(ctx, creds.Email, creds.Password)

	if err != nil {
		return classifyGrantErr(err)
	}

	return SuccessGrant(grant)
}

// settleRetryStrategy re-attempts the exchange after explicitly clearing
// any stale mirrored session and waiting a settle delay. Exists because a
// cached session can conflict with a fresh login.
type settleRetryStrategy struct {
	store  CredentialStore
	mirror sessioncache.Store
	sleep  SleepFunc
}

func (s *settleRetryStrategy) Name() string { return "settle_retry" }

func (s *settleRetryStrategy) Attempt(ctx context.Context, creds Credentials) Outcome {
	// best effort: revoke whatever session the mirror still holds
	if pair, err := s.mirror.LoadSession(ctx); err == nil && pair.AccessToken != "" {
		_ = s.store.Logout(ctx, pair.AccessToken)
	}

	_ = s.mirror.ClearSession(ctx)

	sleep := s.sleep
	if sleep == nil {
		sleep = CtxSleep
	}

	if err := sleep(ctx, settleDelay); err != nil {
		return Retryable(err)
	}

	grant, err := s.store.PasswordGrant(ctx, creds.Email, creds.Password)

	if err != nil {
		return classifyGrantErr(err)
	}

	return SuccessGrant(grant)
}

// fallbackAdminStrategy matches against the single credential record
// written during provisioning. Last-resort continuity path when the store
// is unreachable.
type fallbackAdminStrategy struct {
	mirror sessioncache.Store
}

func (s *fallbackAdminStrategy) Name() string { return "fallback_record" }

func (s *fallbackAdminStrategy) Attempt(ctx context.Context, creds Credentials) Outcome {
	rec, err := s.mirror.LoadFallbackAdmin(ctx)

	if err != nil {
		return Retryable(err)
	}

	if rec.Email != creds.Email {
		return Retryable(errors.New("fallback record email mismatch"))
	}

	if err := security.CheckPassword(rec.PasswordHash, creds.Password); err != nil {
		return Retryable(errors.New("fallback record password mismatch"))
	}

	return SuccessUser(profile.AuthUser{
		ID:    rec.ID,
		Email: rec.Email,
		Name:  rec.Name,
		Role:  rec.Role,
	})
}

// devCredentialStrategy accepts the one hardcoded development pair.
type devCredentialStrategy struct{}

func (s *devCredentialStrategy) Name() string { return "dev_credential" }

func (s *devCredentialStrategy) Attempt(_ context.Context, creds Credentials) Outcome {
	if security.ConstantTimeEquals(creds.Email, DevAdminEmail) &&
		security.ConstantTimeEquals(creds.Password, DevAdminPassword) {
		return SuccessUser(profile.AuthUser{
			ID:    DevAdminID,
			Email: DevAdminEmail,
			Name:  DevAdminName,
			Role:  profile.RoleAdmin,
		})
	}

	return Retryable(errors.New("not the dev credential"))
}

// classifyGrantErr maps store rejections onto outcomes. Rate limiting and
// unconfirmed email are terminal; everything else lets the chain continue.
func classifyGrantErr(err error) Outcome {
	switch {
	case errors.Is(err, credstore.ErrRateLimited):
		return Fatal(ErrTooManyRequests, err)
	case errors.Is(err, credstore.ErrEmailNotConfirmed):
		return Fatal(ErrEmailNotConfirmed, err)
	default:
		return Retryable(err)
	}
}

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nbclinic/portal/internal/credstore"
	"github.com/nbclinic/portal/internal/domain/profile"
	"github.com/nbclinic/portal/internal/observability"
	"github.com/nbclinic/portal/internal/sessioncache"
)

// Bootstrapper restores a usable session at process start from whatever
// the mirror still holds. It is deliberately tolerant: any failure, at any
// step, resolves to "no session" rather than an error, because a broken
// restore must never keep the portal from starting.
type Bootstrapper struct {
	store    CredentialStore
	resolver *ProfileResolver
	mirror   sessioncache.Store
	policy   Policy
	metrics  *observability.Prom
	logger   *slog.Logger
}

func NewBootstrapper(store CredentialStore, resolver *ProfileResolver, mirror sessioncache.Store, policy Policy, metrics *observability.Prom, logger *slog.Logger) *Bootstrapper {
	if policy.MaxAttempts <= 0 {
		policy = DefaultProfilePolicy()
	}
	return &Bootstrapper{
		store:    store,
		resolver: resolver,
		mirror:   mirror,
		policy:   policy,
		metrics:  metrics,
		logger:   logger,
	}
}

// Restore returns the restored user, or nil when no session could be
// recovered. The error return is always nil; it exists so call sites read
// like the rest of the package.
func (b *Bootstrapper) Restore(ctx context.Context) (*profile.AuthUser, error) {
	pair, err := b.mirror.LoadSession(ctx)
	if err != nil {
		if !errors.Is(err, sessioncache.ErrNotFound) {
			b.logger.WarnContext(ctx, "session mirror read failed", "error", err)
		}
		return nil, nil
	}

	identity, ok := b.revalidate(ctx, pair)
	if !ok {
		return nil, nil
	}

	user, ok := b.resolveWithRetry(ctx, identity)
	if !ok {
		return nil, nil
	}

	b.logger.InfoContext(ctx, "session restored", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// revalidate proves the mirrored token pair against the store, refreshing
// once if the access token has gone stale.
func (b *Bootstrapper) revalidate(ctx context.Context, pair sessioncache.TokenPair) (credstore.Identity, bool) {
	identity, err := b.store.GetUser(ctx, pair.AccessToken)
	if err == nil {
		return identity, true
	}

	if !errors.Is(err, credstore.ErrUnauthorized) {
		// Store unreachable or misbehaving. Keep the mirrored pair; it
		// may still be good once the store is back.
		b.logger.InfoContext(ctx, "mirrored session not verifiable", "error", err)
		return credstore.Identity{}, false
	}

	if pair.RefreshToken == "" {
		_ = b.mirror.ClearSession(ctx)
		return credstore.Identity{}, false
	}

	grant, err := b.store.RefreshGrant(ctx, pair.RefreshToken)
	if err != nil {
		b.logger.InfoContext(ctx, "session refresh failed", "error", err)
		if errors.Is(err, credstore.ErrUnauthorized) {
			_ = b.mirror.ClearSession(ctx)
		}
		return credstore.Identity{}, false
	}

	refreshed := sessioncache.TokenPair{
		AccessToken:  grant.Session.AccessToken,
		RefreshToken: grant.Session.RefreshToken,
		ExpiresAt:    grant.Session.ExpiresAt,
	}
	if err := b.mirror.SaveSession(ctx, refreshed); err != nil {
		b.logger.WarnContext(ctx, "session mirror write failed", "error", err)
	}

	return grant.Identity, true
}

// resolveWithRetry waits out profile creation lag: a just-registered
// identity may not have its profile row yet.
func (b *Bootstrapper) resolveWithRetry(ctx context.Context, identity credstore.Identity) (*profile.AuthUser, bool) {
	for attempt := 1; ; attempt++ {
		p, err := b.resolver.Resolve(ctx, identity.ID, identity.Email, identity.Metadata)

		switch {
		case err == nil && p == nil:
			// Schema absent. Same decision the verifier makes: metadata
			// role or nothing.
			if identity.Metadata.Role == "" {
				return nil, false
			}
			u := profile.AuthUser{
				ID:    identity.ID,
				Email: identity.Email,
				Name:  identity.Metadata.Name,
				Role:  identity.Metadata.Role,
			}
			return &u, true
		case err == nil:
			u := p.AuthUser()
			return &u, true
		case !errors.Is(err, profile.ErrNotFound):
			b.logger.WarnContext(ctx, "profile resolution failed during restore", "user_id", identity.ID, "error", err)
			return nil, false
		}

		if attempt >= b.policy.MaxAttempts {
			b.logger.InfoContext(ctx, "profile still absent after restore retries", "user_id", identity.ID, "attempts", attempt)
			return nil, false
		}

		b.metrics.BootstrapRetries.Inc()

		if err := b.policy.Wait(ctx); err != nil {
			return nil, false
		}
	}
}

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/nbclinic/portal/internal/credstore"
	"github.com/nbclinic/portal/internal/domain/profile"
	"github.com/nbclinic/portal/internal/sessioncache"
)

// ErrNotConfigured is surfaced when the credential store connection
// parameters are absent. Operations still answer, they just answer this.
var ErrNotConfigured = errors.New("Sistema de autenticação não configurado")

// RecoverFunc sends a password recovery email. Wired to the circuit
// protected store call in production.
type RecoverFunc func(ctx context.Context, email string) error

// Context is the injectable session holder: one place that knows whether a
// session exists, who it belongs to, and whether the bootstrap already
// ran. Handlers and the reconciler share one instance.
type Context struct {
	verifier     *Verifier
	bootstrapper *Bootstrapper
	mirror       sessioncache.Store
	store        CredentialStore
	recover      RecoverFunc
	configured   bool
	logger       *slog.Logger

	bootstrapOnce sync.Once

	mu      sync.RWMutex
	user    *profile.AuthUser
	loading bool
}

func NewContext(verifier *Verifier, bootstrapper *Bootstrapper, mirror sessioncache.Store, store CredentialStore, recoverFn RecoverFunc, configured bool, logger *slog.Logger) *Context {
	return &Context{
		verifier:     verifier,
		bootstrapper: bootstrapper,
		mirror:       mirror,
		store:        store,
		recover:      recoverFn,
		configured:   configured,
		logger:       logger,
		loading:      true,
	}
}

// Bootstrap restores any persisted session. Runs at most once; later calls
// return immediately with the settled state.
func (s *Context) Bootstrap(ctx context.Context) {
	s.bootstrapOnce.Do(func() {
		defer s.setLoading(false)

		if !s.configured {
			s.logger.WarnContext(ctx, "credential store not configured, starting without session")
			return
		}

		user, _ := s.bootstrapper.Restore(ctx)
		if user != nil {
			s.setUser(user)
		}
	})
}

// SignIn runs the credential verifier and, on success, installs the user
// as the current session.
func (s *Context) SignIn(ctx context.Context, email, password string) (SignInResult, error) {
	if !s.configured {
		return SignInResult{}, ErrNotConfigured
	}

	res, err := s.verifier.SignIn(ctx, email, password)
	if err != nil {
		return SignInResult{}, err
	}

	s.setUser(&res.User)
	return res, nil
}

// SignOut revokes the store session when one exists and always clears the
// local state. Never fails: a sign-out that cannot reach the store still
// signs the user out locally.
func (s *Context) SignOut(ctx context.Context) {
	if pair, err := s.mirror.LoadSession(ctx); err == nil && pair.AccessToken != "" {
		if err := s.store.Logout(ctx, pair.AccessToken); err != nil {
			s.logger.WarnContext(ctx, "store sign-out failed, clearing locally", "error", err)
		}
	}

	if err := s.mirror.ClearSession(ctx); err != nil {
		s.logger.WarnContext(ctx, "session mirror clear failed", "error", err)
	}

	// the fallback admin record is session state too; a signed-out
	// machine must not keep an offline login around
	if err := s.mirror.ClearFallbackAdmin(ctx); err != nil {
		s.logger.WarnContext(ctx, "fallback record clear failed", "error", err)
	}

	s.setUser(nil)
}

// ResetPassword asks the store to send a recovery email.
func (s *Context) ResetPassword(ctx context.Context, email string) error {
	if !s.configured {
		return ErrNotConfigured
	}

	if err := s.recover(ctx, email); err != nil {
		if errors.Is(err, credstore.ErrRateLimited) {
			return ErrTooManyRequests
		}
		s.logger.WarnContext(ctx, "password recovery failed", "error", err)
		return ErrResetFailed
	}
	return nil
}

// User returns the current session's user, or nil.
func (s *Context) User() *profile.AuthUser {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Loading reports whether the bootstrap is still pending.
func (s *Context) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Configured reports whether the credential store parameters are present.
func (s *Context) Configured() bool { return s.configured }

func (s *Context) setUser(u *profile.AuthUser) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

func (s *Context) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

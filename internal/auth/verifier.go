package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/nbclinic/portal/internal/credstore"
	"github.com/nbclinic/portal/internal/domain/profile"
	"github.com/nbclinic/portal/internal/observability"
	"github.com/nbclinic/portal/internal/security"
	"github.com/nbclinic/portal/internal/sessioncache"
)

// SignInResult is what a successful verification hands back to the caller.
type SignInResult struct {
	User         profile.AuthUser
	AccessToken  string
	RefreshToken string
	Strategy     string
}

// Verifier runs the ordered credential strategies and resolves the signed
// in identity to a portal profile.
type Verifier struct {
	strategies   []Strategy
	resolver     *ProfileResolver
	tokens       *TokenManager
	mirror       sessioncache.Store
	fallbackRole string
	metrics      *observability.Prom
	logger       *slog.Logger
}

// VerifierOption tweaks construction; used mostly by tests.
type VerifierOption func(*Verifier)

// WithStrategies replaces the default chain.
func WithStrategies(strategies ...Strategy) VerifierOption {
	return func(v *Verifier) { v.strategies = strategies }
}

// WithSettleSleep swaps the settle delay in the retry strategy.
func WithSettleSleep(sleep SleepFunc) VerifierOption {
	return func(v *Verifier) {
		for _, s := range v.strategies {
			if sr, ok := s.(*settleRetryStrategy); ok {
				sr.sleep = sleep
			}
		}
	}
}

func NewVerifier(store CredentialStore, resolver *ProfileResolver, tokens *TokenManager, mirror sessioncache.Store, fallbackRole string, metrics *observability.Prom, logger *slog.Logger, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		strategies: []Strategy{
			&passwordGrantStrategy{store: store},
			&settleRetryStrategy{store: store, mirror: mirror},
			&fallbackAdminStrategy{mirror: mirror},
			&devCredentialStrategy{},
		},
		resolver:     resolver,
		tokens:       tokens,
		mirror:       mirror,
		fallbackRole: fallbackRole,
		metrics:      metrics,
		logger:       logger,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// SignIn validates the credentials, walks the strategy chain in order and
// returns the first success. Every rejection surfaces as ErrInvalidLogin;
// the per-strategy detail stays in the logs.
func (v *Verifier) SignIn(ctx context.Context, email, password string) (SignInResult, error) {
	started := time.Now()

	creds, err := normalize(email, password)
	if err != nil {
		return SignInResult{}, err
	}

	var fatal error

	for _, s := range v.strategies {
		out := s.Attempt(ctx, creds)

		v.metrics.StrategyAttempts.WithLabelValues(s.Name(), out.Kind.String()).Inc()

		switch out.Kind {
		case OutcomeSuccess:
			res, err := v.finish(ctx, s.Name(), out)
			if err != nil {
				return SignInResult{}, err
			}
			v.logger.InfoContext(ctx, "sign in succeeded",
				"strategy", s.Name(),
				"user_id", res.User.ID,
				"duration_ms", time.Since(started).Milliseconds())
			v.metrics.SignInDuration.Observe(time.Since(started).Seconds())
			return res, nil
		case OutcomeFatal:
			v.logger.WarnContext(ctx, "sign in aborted", "strategy", s.Name(), "error", out.Reason)
			fatal = out.Fatal
		default:
			v.logger.DebugContext(ctx, "strategy rejected credentials", "strategy", s.Name(), "error", out.Reason)
		}

		if fatal != nil {
			break
		}
	}

	if fatal != nil {
		return SignInResult{}, fatal
	}

	v.logger.InfoContext(ctx, "sign in failed, all strategies exhausted", "email", creds.Email)

	return SignInResult{}, ErrInvalidLogin
}

// finish resolves the profile and mints or mirrors the session tokens.
func (v *Verifier) finish(ctx context.Context, strategy string, out Outcome) (SignInResult, error) {
	if out.Grant == nil {
		// Strategy produced the identity directly (fallback or dev). Mint
		// a local token so the rest of the portal sees a normal session.
		token, err := v.tokens.GenerateLocalToken(*out.User)
		if err != nil {
			return SignInResult{}, ErrInternal
		}
		return SignInResult{User: *out.User, AccessToken: token, Strategy: strategy}, nil
	}

	user, err := v.resolveGrant(ctx, out.Grant)
	if err != nil {
		return SignInResult{}, err
	}

	pair := sessioncache.TokenPair{
		AccessToken:  out.Grant.Session.AccessToken,
		RefreshToken: out.Grant.Session.RefreshToken,
		ExpiresAt:    out.Grant.Session.ExpiresAt,
	}
	if err := v.mirror.SaveSession(ctx, pair); err != nil {
		v.logger.WarnContext(ctx, "session mirror write failed", "error", err)
	}

	return SignInResult{
		User:         user,
		AccessToken:  out.Grant.Session.AccessToken,
		RefreshToken: out.Grant.Session.RefreshToken,
		Strategy:     strategy,
	}, nil
}

func (v *Verifier) resolveGrant(ctx context.Context, grant *credstore.Grant) (profile.AuthUser, error) {
	id := grant.Identity

	p, err := v.resolver.Resolve(ctx, id.ID, id.Email, id.Metadata)
	if err != nil && !errors.Is(err, profile.ErrNotFound) {
		v.logger.ErrorContext(ctx, "profile resolution failed", "user_id", id.ID, "error", err)
		return profile.AuthUser{}, ErrProfileUnavailable
	}

	if p != nil {
		return p.AuthUser(), nil
	}

	// No row to lean on, whether the schema is absent or the row simply
	// never got written. Fall back to the identity's own metadata, then
	// the configured default role; with neither the session is not usable.
	role := id.Metadata.Role
	if role == "" {
		role = v.fallbackRole
	}
	if role == "" {
		return profile.AuthUser{}, ErrProfileUnavailable
	}

	name := id.Metadata.Name
	if name == "" {
		name = id.Email
	}

	return profile.AuthUser{ID: id.ID, Email: id.Email, Name: name, Role: role}, nil
}

func normalize(email, password string) (Credentials, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if email == "" || password == "" {
		return Credentials{}, ErrMissingFields
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return Credentials{}, ErrInvalidEmail
	}

	if len(password) < security.MinSignInPasswordLen {
		return Credentials{}, ErrShortPassword
	}

	return Credentials{Email: email, Password: password}, nil
}

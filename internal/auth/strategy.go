package auth

import (
	"context"

	"github.com/nbclinic/portal/internal/credstore"
	"github.com/nbclinic/portal/internal/domain/profile"
)

// Credentials is the normalized email/password pair every strategy sees.
type Credentials struct {
	Email    string
	Password string
}

type OutcomeKind int

const (
	// OutcomeSuccess ends the chain with a proven identity.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeRetryable lets the next strategy run.
	OutcomeRetryable
	// OutcomeFatal ends the chain with a specific user-facing error
	// (rate limiting, unconfirmed email). No further strategies run.
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of one strategy attempt. Success carries
// either a store-issued grant (profile resolution still pending) or a
// locally resolved user (fallback record, dev credential).
type Outcome struct {
	Kind  OutcomeKind
	Grant *credstore.Grant
	User  *profile.AuthUser

	// Fatal carries the user-facing error; Reason is internal and only
	// ever logged by the dispatcher.
	Fatal  error
	Reason error
}

func SuccessGrant(grant credstore.Grant) Outcome {
	return Outcome{Kind: OutcomeSuccess, Grant: &grant}
}

func SuccessUser(user profile.AuthUser) Outcome {
	return Outcome{Kind: OutcomeSuccess, User: &user}
}

func Retryable(reason error) Outcome {
	return Outcome{Kind: OutcomeRetryable, Reason: reason}
}

func Fatal(userErr, reason error) Outcome {
	return Outcome{Kind: OutcomeFatal, Fatal: userErr, Reason: reason}
}

// Strategy is one self-contained way of proving an email/password pair.
// Strategies never log and never surface raw errors; the dispatcher does
// both.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, creds Credentials) Outcome
}

// CredentialStore is the slice of the store client the strategies and
// flows need. Tests fake it.
type CredentialStore interface {
	PasswordGrant(ctx context.Context, email, password string) (credstore.Grant, error)
	RefreshGrant(ctx context.Context, refreshToken string) (credstore.Grant, error)
	SignUp(ctx context.Context, params credstore.SignUpParams) (credstore.Identity, error)
	GetUser(ctx context.Context, accessToken string) (credstore.Identity, error)
	Logout(ctx context.Context, accessToken string) error
}

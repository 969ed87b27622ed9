package auth

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nbclinic/portal/internal/credstore"
	"github.com/nbclinic/portal/internal/domain/profile"
	"github.com/nbclinic/portal/internal/observability"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics() *observability.Prom {
	return observability.NewProm(prometheus.NewRegistry())
}

// fakeStore scripts the credential store per method. Unset methods report
// the store as unreachable.
type fakeStore struct {
	mu sync.Mutex

	grantFn   func(email, password string) (credstore.Grant, error)
	refreshFn func(refreshToken string) (credstore.Grant, error)
	signUpFn  func(params credstore.SignUpParams) (credstore.Identity, error)
	getUserFn func(accessToken string) (credstore.Identity, error)

	grantCalls  int
	signUpCalls int
	logoutCalls int
}

func (f *fakeStore) PasswordGrant(_ context.Context, email, password string) (credstore.Grant, error) {
	f.mu.Lock()
	f.grantCalls++
	f.mu.Unlock()

	if f.grantFn == nil {
		return credstore.Grant{}, credstore.ErrUnavailable
	}
	return f.grantFn(email, password)
}

func (f *fakeStore) RefreshGrant(_ context.Context, refreshToken string) (credstore.Grant, error) {
	if f.refreshFn == nil {
		return credstore.Grant{}, credstore.ErrUnavailable
	}
	return f.refreshFn(refreshToken)
}

func (f *fakeStore) SignUp(_ context.Context, params credstore.SignUpParams) (credstore.Identity, error) {
	f.mu.Lock()
	f.signUpCalls++
	f.mu.Unlock()

	if f.signUpFn == nil {
		return credstore.Identity{}, credstore.ErrUnavailable
	}
	return f.signUpFn(params)
}

func (f *fakeStore) GetUser(_ context.Context, accessToken string) (credstore.Identity, error) {
	if f.getUserFn == nil {
		return credstore.Identity{}, credstore.ErrUnavailable
	}
	return f.getUserFn(accessToken)
}

func (f *fakeStore) Logout(_ context.Context, _ string) error {
	f.mu.Lock()
	f.logoutCalls++
	f.mu.Unlock()
	return nil
}

// fakeRepo is an in-memory ProfileRepo with switchable failure modes.
type fakeRepo struct {
	mu   sync.Mutex
	rows map[string]profile.Profile

	tableMissing bool
	insertErr    error

	getCalls    int
	insertCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[string]profile.Profile{}}
}

func (f *fakeRepo) Get(_ context.Context, id string) (profile.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++

	if f.tableMissing {
		return profile.Profile{}, profile.ErrTableMissing
	}
	p, ok := f.rows[id]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) Insert(_ context.Context, p profile.Profile) (profile.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++

	if f.tableMissing {
		return profile.Profile{}, profile.ErrTableMissing
	}
	if f.insertErr != nil {
		return profile.Profile{}, f.insertErr
	}
	f.rows[p.ID] = p
	return p, nil
}

func (f *fakeRepo) CountByRole(_ context.Context, role string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.tableMissing {
		return 0, profile.ErrTableMissing
	}
	n := 0
	for _, p := range f.rows {
		if p.Role == role {
			n++
		}
	}
	return n, nil
}

// namedStrategy wraps a strategy and records the order attempts happen in.
type namedStrategy struct {
	name  string
	out   Outcome
	trail *[]string
}

func (s *namedStrategy) Name() string { return s.name }

func (s *namedStrategy) Attempt(_ context.Context, _ Credentials) Outcome {
	*s.trail = append(*s.trail, s.name)
	return s.out
}

func grantFor(id, email string, meta profile.Metadata) credstore.Grant {
	return credstore.Grant{
		Session: credstore.Session{
			AccessToken:  "access-" + id,
			RefreshToken: "refresh-" + id,
			TokenType:    "bearer",
			ExpiresIn:    3600,
		},
		Identity: credstore.Identity{ID: id, Email: email, Metadata: meta},
	}
}

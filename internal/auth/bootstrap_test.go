package auth

import (
	"context"
	"testing"
	"time"

	"github.com/nbclinic/portal/internal/credstore"
	"github.com/nbclinic/portal/internal/domain/profile"
	"github.com/nbclinic/portal/internal/sessioncache"
)

func newBootstrapper(t *testing.T, store CredentialStore, repo ProfileRepo, mirror sessioncache.Store, policy Policy) *Bootstrapper {
	t.Helper()

	logger := testLogger()
	return NewBootstrapper(store, NewProfileResolver(repo, logger), mirror, policy, testMetrics(), logger)
}

func TestRestore_NoMirroredSession(t *testing.T) {
	b := newBootstrapper(t, &fakeStore{}, newFakeRepo(), sessioncache.NewMemoryStore(), Policy{MaxAttempts: 1})

	user, err := b.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if user != nil {
		t.Errorf("user = %+v, want nil after a restore with no mirrored session", user)
	}
}

func TestRestore_InvalidTokensClearMirror(t *testing.T) {
	mirror := sessioncache.NewMemoryStore()
	if err := mirror.SaveSession(context.Background(), sessioncache.TokenPair{AccessToken: "tok-bad", RefreshToken: "ref-bad"}); err != nil {
		t.Fatal(err)
	}

	store := &fakeStore{
		getUserFn: func(_ string) (credstore.Identity, error) {
			return credstore.Identity{}, credstore.ErrUnauthorized
		},
		refreshFn: func(_ string) (credstore.Grant, error) {
			return credstore.Grant{}, credstore.ErrUnauthorized
		},
	}

	b := newBootstrapper(t, store, newFakeRepo(), mirror, Policy{MaxAttempts: 1})

	if user, _ := b.Restore(context.Background()); user != nil {
		t.Fatalf("user = %+v, want nil", user)
	}

	if _, err := mirror.LoadSession(context.Background()); err != sessioncache.ErrNotFound {
		t.Errorf("LoadSession() error = %v, want ErrNotFound (dead pair dropped)", err)
	}
}

func TestRestore_ValidSession(t *testing.T) {
	repo := newFakeRepo()
	repo.rows["u1"] = profile.Profile{ID: "u1", Email: "ana@nb.com", Name: "Ana", Role: profile.RolePartner}

	mirror := sessioncache.NewMemoryStore()
	if err := mirror.SaveSession(context.Background(), sessioncache.TokenPair{AccessToken: "tok-ok"}); err != nil {
		t.Fatal(err)
	}

	store := &fakeStore{
		getUserFn: func(accessToken string) (credstore.Identity, error) {
			if accessToken != "tok-ok" {
				return credstore.Identity{}, credstore.ErrUnauthorized
			}
			return credstore.Identity{ID: "u1", Email: "ana@nb.com"}, nil
		},
	}

	b := newBootstrapper(t, store, repo, mirror, Policy{MaxAttempts: 1})

	user, err := b.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if user == nil || user.ID != "u1" || user.Role != profile.RolePartner {
		t.Errorf("user = %+v, want u1/partner", user)
	}
}

func TestRestore_RefreshesStaleToken(t *testing.T) {
	repo := newFakeRepo()
	repo.rows["u2"] = profile.Profile{ID: "u2", Email: "rui@nb.com", Name: "Rui", Role: profile.RoleReception}

	mirror := sessioncache.NewMemoryStore()
	if err := mirror.SaveSession(context.Background(), sessioncache.TokenPair{AccessToken: "tok-stale", RefreshToken: "ref-1"}); err != nil {
		t.Fatal(err)
	}

	store := &fakeStore{
		getUserFn: func(_ string) (credstore.Identity, error) {
			return credstore.Identity{}, credstore.ErrUnauthorized
		},
		refreshFn: func(refreshToken string) (credstore.Grant, error) {
			if refreshToken != "ref-1" {
				return credstore.Grant{}, credstore.ErrUnauthorized
			}
			return grantFor("u2", "rui@nb.com", profile.Metadata{}), nil
		},
	}

	b := newBootstrapper(t, store, repo, mirror, Policy{MaxAttempts: 1})

	user, err := b.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if user == nil || user.ID != "u2" {
		t.Fatalf("user = %+v, want u2", user)
	}

	pair, err := mirror.LoadSession(context.Background())
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if pair.AccessToken != "access-u2" || pair.RefreshToken != "refresh-u2" {
		t.Errorf("mirrored pair = %+v, want the refreshed tokens", pair)
	}
}

func TestRestore_WaitsOutProfileLag(t *testing.T) {
	repo := newFakeRepo()

	mirror := sessioncache.NewMemoryStore()
	if err := mirror.SaveSession(context.Background(), sessioncache.TokenPair{AccessToken: "tok-ok"}); err != nil {
		t.Fatal(err)
	}

	store := &fakeStore{
		getUserFn: func(_ string) (credstore.Identity, error) {
			// no metadata: resolution must find a real row
			return credstore.Identity{ID: "u3", Email: "lia@nb.com"}, nil
		},
	}

	waits := 0
	policy := Policy{
		MaxAttempts: 3,
		Delay:       2 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			waits++
			if d != 2*time.Second {
				t.Errorf("wait = %v, want 2s", d)
			}
			// the row shows up while we wait
			if waits == 2 {
				repo.rows["u3"] = profile.Profile{ID: "u3", Email: "lia@nb.com", Name: "Lia", Role: profile.RoleCheckup}
			}
			return nil
		},
	}

	b := newBootstrapper(t, store, repo, mirror, policy)

	user, err := b.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if user == nil || user.Role != profile.RoleCheckup {
		t.Fatalf("user = %+v, want checkup role", user)
	}
	if waits != 2 {
		t.Errorf("waits = %d, want 2", waits)
	}
}

func TestRestore_GivesUpQuietly(t *testing.T) {
	mirror := sessioncache.NewMemoryStore()
	if err := mirror.SaveSession(context.Background(), sessioncache.TokenPair{AccessToken: "tok-ok"}); err != nil {
		t.Fatal(err)
	}

	store := &fakeStore{
		getUserFn: func(_ string) (credstore.Identity, error) {
			return credstore.Identity{ID: "u4", Email: "x@nb.com"}, nil
		},
	}

	waits := 0
	policy := Policy{MaxAttempts: 3, Delay: 2 * time.Second, Sleep: func(_ context.Context, _ time.Duration) error {
		waits++
		return nil
	}}

	b := newBootstrapper(t, store, newFakeRepo(), mirror, policy)

	user, err := b.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore() must never error, got %v", err)
	}
	if user != nil {
		t.Errorf("user = %+v, want nil after exhausted retries", user)
	}
	if waits != 2 {
		t.Errorf("waits = %d, want 2 (three lookups, two waits)", waits)
	}
}

func TestRestore_UnreachableStoreKeepsMirroredPair(t *testing.T) {
	mirror := sessioncache.NewMemoryStore()
	if err := mirror.SaveSession(context.Background(), sessioncache.TokenPair{AccessToken: "tok-ok", RefreshToken: "ref"}); err != nil {
		t.Fatal(err)
	}

	// every store call fails with unavailable
	b := newBootstrapper(t, &fakeStore{}, newFakeRepo(), mirror, Policy{MaxAttempts: 1})

	user, err := b.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore() must never error, got %v", err)
	}
	if user != nil {
		t.Errorf("user = %+v, want nil", user)
	}

	// the pair survives for a later attempt
	if _, err := mirror.LoadSession(context.Background()); err != nil {
		t.Errorf("mirrored session was dropped: %v", err)
	}
}

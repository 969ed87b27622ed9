package worker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nbclinic/portal/internal/credstore"
	"github.com/nbclinic/portal/internal/domain/profile"
	"github.com/nbclinic/portal/internal/worker"
)

type fakeLister struct {
	pages [][]credstore.Identity
	err   error
	calls int
}

func (f *fakeLister) AdminListIdentities(_ context.Context, page, _ int) ([]credstore.Identity, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if page > len(f.pages) {
		return nil, nil
	}
	return f.pages[page-1], nil
}

type fakeHealer struct {
	missing  []string
	listErr  error
	insertFn func(p profile.Profile) error
	inserted []profile.Profile
}

func (f *fakeHealer) ListMissing(_ context.Context, _ []string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.missing, nil
}

func (f *fakeHealer) Insert(_ context.Context, p profile.Profile) (profile.Profile, error) {
	if f.insertFn != nil {
		if err := f.insertFn(p); err != nil {
			return profile.Profile{}, err
		}
	}
	f.inserted = append(f.inserted, p)
	return p, nil
}

func identity(id, email, role string) credstore.Identity {
	return credstore.Identity{
		ID:       id,
		Email:    email,
		Metadata: profile.Metadata{Name: "Fulano", Role: role},
	}
}

func newReconciler(store *fakeLister, profiles *fakeHealer) *worker.Reconciler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := worker.NewReconciler(store, profiles, nil, log)
	r.PageSize = 2
	return r
}

func TestPass_HealsMissingProfiles(t *testing.T) {
	store := &fakeLister{pages: [][]credstore.Identity{
		{identity("a", "a@nb.com", "partner"), identity("b", "b@nb.com", "reception")},
		{identity("c", "c@nb.com", "checkup")},
	}}
	profiles := &fakeHealer{missing: []string{"b", "c"}}

	healed, err := newReconciler(store, profiles).Pass(context.Background())
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if healed != 2 {
		t.Fatalf("healed = %d, want 2", healed)
	}
	if store.calls != 2 {
		t.Fatalf("list calls = %d, want 2", store.calls)
	}
	if len(profiles.inserted) != 2 || profiles.inserted[0].ID != "b" || profiles.inserted[1].ID != "c" {
		t.Fatalf("inserted = %+v", profiles.inserted)
	}
	if profiles.inserted[0].Role != "reception" {
		t.Fatalf("role = %q, want reception", profiles.inserted[0].Role)
	}
}

func TestPass_SkipsIdentityWithoutRole(t *testing.T) {
	store := &fakeLister{pages: [][]credstore.Identity{
		{identity("a", "a@nb.com", ""), identity("b", "b@nb.com", "partner")},
	}}
	profiles := &fakeHealer{missing: []string{"a", "b"}}

	healed, err := newReconciler(store, profiles).Pass(context.Background())
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if healed != 1 {
		t.Fatalf("healed = %d, want 1", healed)
	}
	if len(profiles.inserted) != 1 || profiles.inserted[0].ID != "b" {
		t.Fatalf("inserted = %+v", profiles.inserted)
	}
}

func TestPass_TableMissingIsNotAFailure(t *testing.T) {
	store := &fakeLister{pages: [][]credstore.Identity{
		{identity("a", "a@nb.com", "partner")},
	}}
	profiles := &fakeHealer{listErr: profile.ErrTableMissing}

	healed, err := newReconciler(store, profiles).Pass(context.Background())
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if healed != 0 {
		t.Fatalf("healed = %d, want 0", healed)
	}
}

func TestPass_ToleratesInsertRace(t *testing.T) {
	store := &fakeLister{pages: [][]credstore.Identity{
		{identity("a", "a@nb.com", "partner"), identity("b", "b@nb.com", "partner")},
	}}
	profiles := &fakeHealer{
		missing: []string{"a", "b"},
		insertFn: func(p profile.Profile) error {
			if p.ID == "a" {
				return &pgconn.PgError{Code: "23505"}
			}
			return nil
		},
	}

	healed, err := newReconciler(store, profiles).Pass(context.Background())
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if healed != 1 {
		t.Fatalf("healed = %d, want 1", healed)
	}
}

func TestPass_ListFailurePropagates(t *testing.T) {
	store := &fakeLister{err: errors.New("store down")}
	profiles := &fakeHealer{}

	_, err := newReconciler(store, profiles).Pass(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
}

package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/nbclinic/portal/internal/domain/profile"
)

func TestResolve_ExistingProfileWins(t *testing.T) {
	repo := newFakeRepo()
	repo.rows["u1"] = profile.Profile{ID: "u1", Email: "ana@nb.com", Name: "Ana", Role: profile.RolePartner}

	r := NewProfileResolver(repo, testLogger())

	// metadata disagrees with the stored row; the row wins
	p, err := r.Resolve(context.Background(), "u1", "ana@nb.com", profile.Metadata{Name: "Outra", Role: profile.RoleAdmin})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.Role != profile.RolePartner || p.Name != "Ana" {
		t.Errorf("resolved profile = %+v, want stored row", p)
	}
	if repo.insertCalls != 0 {
		t.Errorf("insertCalls = %d, want 0", repo.insertCalls)
	}
}

func TestResolve_CreatesOnMiss(t *testing.T) {
	repo := newFakeRepo()
	r := NewProfileResolver(repo, testLogger())

	p, err := r.Resolve(context.Background(), "u2", "rui@nb.com", profile.Metadata{Name: "Rui", Role: profile.RoleReception})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.ID != "u2" || p.Role != profile.RoleReception {
		t.Errorf("created profile = %+v", p)
	}

	// second resolve is a plain read
	if _, err := r.Resolve(context.Background(), "u2", "rui@nb.com", profile.Metadata{}); err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if repo.insertCalls != 1 {
		t.Errorf("insertCalls = %d, want 1", repo.insertCalls)
	}
}

func TestResolve_ConcurrentInsertLosesGracefully(t *testing.T) {
	repo := newFakeRepo()
	repo.insertErr = errors.New("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)")
	repo.rows["u3"] = profile.Profile{ID: "u3", Email: "lia@nb.com", Name: "Lia", Role: profile.RoleCheckup}

	// force the miss-then-conflict path: Get misses once, Insert fails,
	// re-Get finds the row the other writer committed
	missed := false
	base := repo
	r := NewProfileResolver(&flakyRepo{inner: base, missFirst: &missed}, testLogger())

	p, err := r.Resolve(context.Background(), "u3", "lia@nb.com", profile.Metadata{Name: "Lia", Role: profile.RoleCheckup})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.ID != "u3" {
		t.Errorf("resolved profile = %+v", p)
	}
}

func TestResolve_TableMissingResolvesToNoProfile(t *testing.T) {
	repo := newFakeRepo()
	repo.tableMissing = true

	r := NewProfileResolver(repo, testLogger())

	p, err := r.Resolve(context.Background(), "u4", "x@nb.com", profile.Metadata{Name: "X", Role: profile.RoleAdmin})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p != nil {
		t.Errorf("profile = %+v, want nil before schema provisioning", p)
	}
}

func TestResolve_MissWithoutMetadata(t *testing.T) {
	r := NewProfileResolver(newFakeRepo(), testLogger())

	_, err := r.Resolve(context.Background(), "u5", "x@nb.com", profile.Metadata{})
	if !errors.Is(err, profile.ErrNotFound) {
		t.Fatalf("Resolve() error = %v, want %v", err, profile.ErrNotFound)
	}
}

// flakyRepo reports one Get miss before delegating, simulating a row that
// lands between the read and the insert.
type flakyRepo struct {
	inner     *fakeRepo
	missFirst *bool
}

func (f *flakyRepo) Get(ctx context.Context, id string) (profile.Profile, error) {
	if !*f.missFirst {
		*f.missFirst = true
		return profile.Profile{}, profile.ErrNotFound
	}
	return f.inner.Get(ctx, id)
}

func (f *flakyRepo) Insert(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	return f.inner.Insert(ctx, p)
}

func (f *flakyRepo) CountByRole(ctx context.Context, role string) (int, error) {
	return f.inner.CountByRole(ctx, role)
}

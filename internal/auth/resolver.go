package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nbclinic/portal/internal/domain/profile"
)

// ProfileRepo is the slice of profile storage the resolver needs.
type ProfileRepo interface {
	Get(ctx context.Context, id string) (profile.Profile, error)
	Insert(ctx context.Context, p profile.Profile) (profile.Profile, error)
	CountByRole(ctx context.Context, role string) (int, error)
}

// ProfileResolver turns a store identity into a portal profile, creating
// the row on first sight when the identity carries enough metadata.
type ProfileResolver struct {
	repo   ProfileRepo
	logger *slog.Logger
}

func NewProfileResolver(repo ProfileRepo, logger *slog.Logger) *ProfileResolver {
	return &ProfileResolver{repo: repo, logger: logger}
}

// Resolve fetches the profile for id, inserting one from metadata on a
// miss. A missing portal schema resolves to (nil, nil): the caller decides
// whether a profile-less session is acceptable.
func (r *ProfileResolver) Resolve(ctx context.Context, id, email string, meta profile.Metadata) (*profile.Profile, error) {
	p, err := r.repo.Get(ctx, id)

	switch {
	case err == nil:
		return &p, nil
	case errors.Is(err, profile.ErrTableMissing):
		r.logger.InfoContext(ctx, "profile schema not provisioned, resolving without profile", "user_id", id)
		return nil, nil
	case !errors.Is(err, profile.ErrNotFound):
		return nil, err
	}

	if meta.Name == "" && meta.Role == "" {
		return nil, profile.ErrNotFound
	}

	created, err := r.repo.Insert(ctx, profile.NewFromMetadata(id, email, meta))
	if err == nil {
		r.logger.InfoContext(ctx, "profile created from identity metadata", "user_id", id, "role", created.Role)
		return &created, nil
	}

	// A concurrent login may have inserted the same row. The re-read is
	// the source of truth either way.
	p, getErr := r.repo.Get(ctx, id)
	if getErr == nil {
		return &p, nil
	}

	if errors.Is(err, profile.ErrTableMissing) {
		r.logger.InfoContext(ctx, "profile schema not provisioned, resolving without profile", "user_id", id)
		return nil, nil
	}

	return nil, err
}

package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nbclinic/portal/internal/auth"
	"github.com/nbclinic/portal/internal/credstore"
	"github.com/nbclinic/portal/internal/domain/profile"
	"github.com/nbclinic/portal/internal/observability"
	"github.com/nbclinic/portal/internal/repo/postgres"
)

type IdentityLister interface {
	AdminListIdentities(ctx context.Context, page, perPage int) ([]credstore.Identity, error)
}

type ProfileHealer interface {
	ListMissing(ctx context.Context, candidates []string) ([]string, error)
	Insert(ctx context.Context, p profile.Profile) (profile.Profile, error)
}

// Reconciler heals the gap the sign-up race leaves behind: an identity
// exists in the credential store but the portal never managed to write
// its profile row. Each pass pages the store's identities and inserts
// rows for the ones that resolve to nothing locally.
type Reconciler struct {
	store    IdentityLister
	profiles ProfileHealer
	metrics  *observability.Prom
	logger   *slog.Logger

	Interval time.Duration
	PageSize int
}

func NewReconciler(store IdentityLister, profiles ProfileHealer, metrics *observability.Prom, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		profiles: profiles,
		metrics:  metrics,
		logger:   logger,
		Interval: 5 * time.Minute,
		PageSize: 100,
	}
}

// Run loops until the context ends. Failed passes back off exponentially
// instead of hammering the store.
func (r *Reconciler) Run(ctx context.Context) {
	failures := 0

	for {
		healed, err := r.Pass(ctx)

		wait := r.Interval

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Warn("reconciler.pass_failed", "err", err, "failures", failures)
			wait = auth.ExponentialBackoff(failures)
			failures++
		} else {
			if healed > 0 {
				r.logger.Info("reconciler.pass_done", "healed", healed)
			}
			failures = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// Pass runs one full reconciliation and returns how many rows it healed.
func (r *Reconciler) Pass(ctx context.Context) (int, error) {
	identities, err := r.listAll(ctx)
	if err != nil {
		r.observePass("list_failed")
		return 0, err
	}

	if len(identities) == 0 {
		r.observePass("ok")
		return 0, nil
	}

	byID := make(map[string]credstore.Identity, len(identities))
	ids := make([]string, 0, len(identities))

	for _, identity := range identities {
		byID[identity.ID] = identity
		ids = append(ids, identity.ID)
	}

	missing, err := r.profiles.ListMissing(ctx, ids)
	if err != nil {
		if errors.Is(err, profile.ErrTableMissing) {
			// nothing to heal into yet
			r.observePass("table_missing")
			return 0, nil
		}
		r.observePass("query_failed")
		return 0, err
	}

	healed := 0

	for _, id := range missing {
		identity := byID[id]

		// metadata-less identities cannot be assigned a role; leave them
		// for an operator to sort out
		if !profile.ValidRole(identity.Metadata.Role) {
			r.logger.Warn("reconciler.skip_identity", "subject", id, "reason", "no_role")
			continue
		}

		_, err := r.profiles.Insert(ctx, profile.NewFromMetadata(id, identity.Email, identity.Metadata))
		if err != nil {
			if errors.Is(err, profile.ErrTableMissing) {
				r.observePass("table_missing")
				return healed, nil
			}
			if postgres.IsUniqueViolation(err) {
				// another writer healed it first
				continue
			}
			r.logger.Warn("reconciler.heal_failed", "subject", id, "err", err)
			continue
		}

		healed++
		if r.metrics != nil {
			r.metrics.ReconcilerHealed.Inc()
		}
	}

	r.observePass("ok")
	return healed, nil
}

func (r *Reconciler) listAll(ctx context.Context) ([]credstore.Identity, error) {
	var out []credstore.Identity

	for page := 1; ; page++ {
		batch, err := r.store.AdminListIdentities(ctx, page, r.PageSize)
		if err != nil {
			return nil, err
		}

		out = append(out, batch...)

		if len(batch) < r.PageSize {
			return out, nil
		}
	}
}

func (r *Reconciler) observePass(result string) {
	if r.metrics != nil {
		r.metrics.ReconcilerPasses.WithLabelValues(result).Inc()
	}
}

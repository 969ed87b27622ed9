package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nbclinic/portal/internal/credstore"
	"github.com/nbclinic/portal/internal/domain/profile"
	"github.com/nbclinic/portal/internal/observability"
	"github.com/nbclinic/portal/internal/security"
	"github.com/nbclinic/portal/internal/sessioncache"
)

// Provisioner creates identities in the credential store and their
// matching profile rows. First-admin creation is idempotent end to end:
// running it against an already provisioned system is a no-op success.
type Provisioner struct {
	store   CredentialStore
	repo    ProfileRepo
	mirror  sessioncache.Store
	metrics *observability.Prom
	logger  *slog.Logger
}

func NewProvisioner(store CredentialStore, repo ProfileRepo, mirror sessioncache.Store, metrics *observability.Prom, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		store:   store,
		repo:    repo,
		mirror:  mirror,
		metrics: metrics,
		logger:  logger,
	}
}

// CreateFirstAdmin provisions the initial administrator. Safe to call on
// every boot: an existing admin, an already registered identity, and an
// unreachable store all resolve to success, so a restart never wedges on
// provisioning.
func (p *Provisioner) CreateFirstAdmin(ctx context.Context, email, password, name string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if email == "" || password == "" || name == "" {
		return ErrProvisionMissing
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}
	if len(password) < security.MinProvisionPasswordLen {
		return ErrProvisionPassword
	}

	count, err := p.repo.CountByRole(ctx, profile.RoleAdmin)
	switch {
	case err == nil && count > 0:
		p.logger.InfoContext(ctx, "admin already provisioned, skipping")
		p.metrics.ProvisioningTotal.WithLabelValues("already_provisioned").Inc()
		return nil
	case err != nil && !errors.Is(err, profile.ErrTableMissing):
		p.metrics.ProvisioningTotal.WithLabelValues("error").Inc()
		p.logger.ErrorContext(ctx, "admin count lookup failed", "error", err)
		return ErrProvisionFailed
	}

	identity, err := p.store.SignUp(ctx, credstore.SignUpParams{
		Email:    email,
		Password: password,
		Metadata: profile.Metadata{Name: name, Role: profile.RoleAdmin},
	})

	switch {
	case err == nil:
		p.insertProfile(ctx, profile.NewFromMetadata(identity.ID, email, profile.Metadata{Name: name, Role: profile.RoleAdmin}))
		p.writeFallbackRecord(ctx, identity.ID, email, password, name)
		p.metrics.ProvisioningTotal.WithLabelValues("created").Inc()
		p.logger.InfoContext(ctx, "first admin provisioned", "user_id", identity.ID)
		return nil
	case errors.Is(err, credstore.ErrAlreadyRegistered):
		// Identity exists from a previous run; treat as provisioned.
		p.metrics.ProvisioningTotal.WithLabelValues("already_provisioned").Inc()
		p.logger.InfoContext(ctx, "admin identity already registered, skipping")
		return nil
	case errors.Is(err, credstore.ErrUnavailable):
		// Store down. The fallback record keeps the portal reachable
		// until the store comes back and a real identity is created.
		p.writeFallbackRecord(ctx, uuid.NewString(), email, password, name)
		p.metrics.ProvisioningTotal.WithLabelValues("fallback_only").Inc()
		p.logger.WarnContext(ctx, "store unavailable, admin provisioned via fallback record only")
		return nil
	default:
		p.metrics.ProvisioningTotal.WithLabelValues("error").Inc()
		p.logger.ErrorContext(ctx, "first admin provisioning failed", "error", err)
		return ErrProvisionFailed
	}
}

// CreateUser registers a portal operator. Unlike first-admin creation this
// is not idempotent: a duplicate email is the caller's mistake.
func (p *Provisioner) CreateUser(ctx context.Context, req profile.CreateUserRequest, password string) (profile.Profile, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if !profile.ValidRole(req.Role) {
		return profile.Profile{}, ErrProvisionMissing
	}
	if len(password) < security.MinProvisionPasswordLen {
		return profile.Profile{}, ErrProvisionPassword
	}

	identity, err := p.store.SignUp(ctx, credstore.SignUpParams{
		Email:    email,
		Password: password,
		Metadata: profile.Metadata{Name: req.Name, Role: req.Role, PartnerID: req.PartnerID},
	})

	switch {
	case errors.Is(err, credstore.ErrAlreadyRegistered):
		return profile.Profile{}, ErrUserExists
	case err != nil:
		p.logger.ErrorContext(ctx, "user registration failed", "email", email, "error", err)
		return profile.Profile{}, ErrProvisionFailed
	}

	created, err := p.repo.Insert(ctx, profile.NewFromMetadata(identity.ID, email, profile.Metadata{Name: req.Name, Role: req.Role, PartnerID: req.PartnerID}))
	if err != nil {
		// Identity exists but the row write failed; the reconciler heals
		// this from metadata on its next pass.
		p.logger.WarnContext(ctx, "profile insert failed after registration", "user_id", identity.ID, "error", err)
		return profile.NewFromMetadata(identity.ID, email, profile.Metadata{Name: req.Name, Role: req.Role, PartnerID: req.PartnerID}), nil
	}

	return created, nil
}

func (p *Provisioner) insertProfile(ctx context.Context, row profile.Profile) {
	if _, err := p.repo.Insert(ctx, row); err != nil && !errors.Is(err, profile.ErrTableMissing) {
		p.logger.WarnContext(ctx, "admin profile insert failed", "user_id", row.ID, "error", err)
	}
}

func (p *Provisioner) writeFallbackRecord(ctx context.Context, id, email, password, name string) {
	hash, err := security.HashPassword(password)
	if err != nil {
		p.logger.WarnContext(ctx, "fallback record hash failed", "error", err)
		return
	}

	rec := sessioncache.FallbackAdmin{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         profile.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.mirror.SaveFallbackAdmin(ctx, rec); err != nil {
		p.logger.WarnContext(ctx, "fallback record write failed", "error", err)
	}
}

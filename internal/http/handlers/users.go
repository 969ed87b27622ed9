package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nbclinic/portal/internal/auth"
	"github.com/nbclinic/portal/internal/config"
	"github.com/nbclinic/portal/internal/domain/profile"
)

type ProfileStore interface {
	List(ctx context.Context) ([]profile.Profile, error)
	Delete(ctx context.Context, id string) error
}

type UsersHandler struct {
	profiles    ProfileStore
	provisioner *auth.Provisioner
	cfg         config.Config
}

func NewUsersHandler(profiles ProfileStore, provisioner *auth.Provisioner, cfg config.Config) *UsersHandler {
	return &UsersHandler{profiles: profiles, provisioner: provisioner, cfg: cfg}
}

func (h *UsersHandler) List(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	users, err := h.profiles.List(cctx)
	if err != nil {
		if errors.Is(err, profile.ErrTableMissing) {
			ctx.JSON(http.StatusOK, gin.H{"users": []profile.Profile{}})
			return
		}
		RespondInternal(ctx, "Não foi possível listar usuários")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"users": users})
}

// Create registers a new operator with the configured default password;
// the store sends a confirmation/recovery email for the first login.
func (h *UsersHandler) Create(ctx *gin.Context) {
	var req profile.CreateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	created, err := h.provisioner.CreateUser(cctx, req, h.cfg.DefaultUserPassword)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			RespondConflict(ctx, "email_taken", err.Error())
		case errors.Is(err, auth.ErrProvisionMissing),
			errors.Is(err, auth.ErrProvisionPassword):
			RespondBadRequest(ctx, err.Error(), nil)
		default:
			RespondInternal(ctx, auth.ErrProvisionFailed.Error())
		}
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

func (h *UsersHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.profiles.Delete(cctx, id); err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			RespondNotFound(ctx, "Usuário não encontrado")
			return
		}
		RespondInternal(ctx, "Não foi possível remover o usuário")
		return
	}

	ctx.Status(http.StatusNoContent)
}

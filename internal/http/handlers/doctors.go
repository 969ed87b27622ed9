package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nbclinic/portal/internal/config"
	"github.com/nbclinic/portal/internal/domain/partner"
	"github.com/nbclinic/portal/internal/domain/profile"
	"github.com/nbclinic/portal/internal/http/middlewares"
	"github.com/nbclinic/portal/internal/repo/postgres"
	"github.com/nbclinic/portal/internal/utils"
)

type DoctorStore interface {
	Create(ctx context.Context, partnerID string, req partner.CreateDoctorRequest) (partner.Doctor, error)
	ListByPartner(ctx context.Context, partnerID string) ([]partner.Doctor, error)
	Delete(ctx context.Context, partnerID, id string) error
}

type DoctorsHandler struct {
	repo DoctorStore
}

func NewDoctorsHandler(repo DoctorStore) *DoctorsHandler {
	return &DoctorsHandler{repo: repo}
}

// scopedPartnerID resolves which partner the request operates on: partner
// operators are locked to their own link, admins pick one via query.
func scopedPartnerID(ctx *gin.Context) (string, bool) {
	role, _ := middlewares.RoleFromContext(ctx)

	if role == profile.RoleAdmin {
		id := ctx.Query("partnerId")
		if id == "" || !utils.IsUUID(id) {
			RespondBadRequest(ctx, "Informe o parceiro (partnerId)", nil)
			return "", false
		}
		return id, true
	}

	id, ok := middlewares.PartnerIDFromContext(ctx)
	if !ok || id == "" {
		RespondForbidden(ctx, "Perfil sem parceiro vinculado")
		return "", false
	}
	return id, true
}

func (h *DoctorsHandler) Create(ctx *gin.Context) {
	partnerID, ok := scopedPartnerID(ctx)
	if !ok {
		return
	}

	var req partner.CreateDoctorRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	d, err := h.repo.Create(cctx, partnerID, req)
	if err != nil {
		RespondInternal(ctx, "Não foi possível cadastrar o médico")
		return
	}

	ctx.JSON(http.StatusCreated, d)
}

func (h *DoctorsHandler) List(ctx *gin.Context) {
	partnerID, ok := scopedPartnerID(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	doctors, err := h.repo.ListByPartner(cctx, partnerID)
	if err != nil {
		RespondInternal(ctx, "Não foi possível listar médicos")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": doctors,
		"count": len(doctors),
	})
}

func (h *DoctorsHandler) Delete(ctx *gin.Context) {
	partnerID, ok := scopedPartnerID(ctx)
	if !ok {
		return
	}

	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Identificador inválido", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.repo.Delete(cctx, partnerID, id); err != nil {
		if errors.Is(err, postgres.ErrDoctorNotFound) {
			RespondNotFound(ctx, "Médico não encontrado")
			return
		}
		RespondInternal(ctx, "Não foi possível remover o médico")
		return
	}

	ctx.Status(http.StatusNoContent)
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nbclinic/portal/internal/config"
	"github.com/nbclinic/portal/internal/domain/partner"
	"github.com/nbclinic/portal/internal/repo/postgres"
	"github.com/nbclinic/portal/internal/utils"
)

type InsuranceStore interface {
	Create(ctx context.Context, partnerID string, req partner.CreateInsuranceRequest) (partner.Insurance, error)
	ListByPartner(ctx context.Context, partnerID string) ([]partner.Insurance, error)
	Delete(ctx context.Context, partnerID, id string) error
}

type InsurancesHandler struct {
	repo InsuranceStore
}

func NewInsurancesHandler(repo InsuranceStore) *InsurancesHandler {
	return &InsurancesHandler{repo: repo}
}

func (h *InsurancesHandler) Create(ctx *gin.Context) {
	partnerID, ok := scopedPartnerID(ctx)
	if !ok {
		return
	}

	var req partner.CreateInsuranceRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	ins, err := h.repo.Create(cctx, partnerID, req)
	if err != nil {
		RespondInternal(ctx, "Não foi possível cadastrar o convênio")
		return
	}

	ctx.JSON(http.StatusCreated, ins)
}

func (h *InsurancesHandler) List(ctx *gin.Context) {
	partnerID, ok := scopedPartnerID(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	insurances, err := h.repo.ListByPartner(cctx, partnerID)
	if err != nil {
		RespondInternal(ctx, "Não foi possível listar convênios")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": insurances,
		"count": len(insurances),
	})
}

func (h *InsurancesHandler) Delete(ctx *gin.Context) {
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
		if errors.Is(err, postgres.ErrInsuranceNotFound) {
			RespondNotFound(ctx, "Convênio não encontrado")
			return
		}
		RespondInternal(ctx, "Não foi possível remover o convênio")
		return
	}

	ctx.Status(http.StatusNoContent)
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nbclinic/portal/internal/config"
	"github.com/nbclinic/portal/internal/domain/partner"
	"github.com/nbclinic/portal/internal/utils"
)

type PartnerStore interface {
	Create(ctx context.Context, req partner.CreatePartnerRequest) (partner.Partner, error)
	List(ctx context.Context) ([]partner.Partner, error)
	GetByID(ctx context.Context, id string) (partner.Partner, error)
	Update(ctx context.Context, id string, req partner.UpdatePartnerRequest) (partner.Partner, error)
	Delete(ctx context.Context, id string) error
}

type PartnersHandler struct {
	repo PartnerStore
}

func NewPartnersHandler(repo PartnerStore) *PartnersHandler {
	return &PartnersHandler{repo: repo}
}

func (h *PartnersHandler) Create(ctx *gin.Context) {
	var req partner.CreatePartnerRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	p, err := h.repo.Create(cctx, req)
	if err != nil {
		RespondInternal(ctx, "Não foi possível cadastrar o parceiro")
		return
	}

	ctx.JSON(http.StatusCreated, p)
}

func (h *PartnersHandler) List(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	partners, err := h.repo.List(cctx)
	if err != nil {
		RespondInternal(ctx, "Não foi possível listar parceiros")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": partners,
		"count": len(partners),
	})
}

func (h *PartnersHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Identificador inválido", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	p, err := h.repo.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, partner.ErrNotFound) {
			RespondNotFound(ctx, "Parceiro não encontrado")
			return
		}
		RespondInternal(ctx, "Não foi possível buscar o parceiro")
		return
	}

	ctx.JSON(http.StatusOK, p)
}

func (h *PartnersHandler) Update(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Identificador inválido", nil)
		return
	}

	var req partner.UpdatePartnerRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	p, err := h.repo.Update(cctx, id, req)
	if err != nil {
		if errors.Is(err, partner.ErrNotFound) {
			RespondNotFound(ctx, "Parceiro não encontrado")
			return
		}
		RespondInternal(ctx, "Não foi possível atualizar o parceiro")
		return
	}

	ctx.JSON(http.StatusOK, p)
}

func (h *PartnersHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Identificador inválido", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.repo.Delete(cctx, id); err != nil {
		if errors.Is(err, partner.ErrNotFound) {
			RespondNotFound(ctx, "Parceiro não encontrado")
			return
		}
		RespondInternal(ctx, "Não foi possível remover o parceiro")
		return
	}

	ctx.Status(http.StatusNoContent)
}

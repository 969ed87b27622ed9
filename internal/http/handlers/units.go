package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nbclinic/portal/internal/config"
	"github.com/nbclinic/portal/internal/domain/checkup"
	"github.com/nbclinic/portal/internal/utils"
)

type UnitStore interface {
	Create(ctx context.Context, req checkup.CreateUnitRequest) (checkup.Unit, error)
	List(ctx context.Context) ([]checkup.Unit, error)
	Delete(ctx context.Context, id string) error
}

type UnitsHandler struct {
	repo UnitStore
}

func NewUnitsHandler(repo UnitStore) *UnitsHandler {
	return &UnitsHandler{repo: repo}
}

func (h *UnitsHandler) Create(ctx *gin.Context) {
	var req checkup.CreateUnitRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.repo.Create(cctx, req)
	if err != nil {
		RespondInternal(ctx, "Não foi possível cadastrar a unidade")
		return
	}

	ctx.JSON(http.StatusCreated, u)
}

func (h *UnitsHandler) List(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	units, err := h.repo.List(cctx)
	if err != nil {
		RespondInternal(ctx, "Não foi possível listar unidades")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": units,
		"count": len(units),
	})
}

func (h *UnitsHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Identificador inválido", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.repo.Delete(cctx, id); err != nil {
		if errors.Is(err, checkup.ErrUnitNotFound) {
			RespondNotFound(ctx, "Unidade não encontrada")
			return
		}
		RespondInternal(ctx, "Não foi possível remover a unidade")
		return
	}

	ctx.Status(http.StatusNoContent)
}

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

type BatteryStore interface {
	Create(ctx context.Context, req checkup.CreateBatteryRequest) (checkup.Battery, error)
	List(ctx context.Context) ([]checkup.Battery, error)
	GetByID(ctx context.Context, id string) (checkup.Battery, error)
	Delete(ctx context.Context, id string) error
}

type BatteriesHandler struct {
	repo BatteryStore
}

func NewBatteriesHandler(repo BatteryStore) *BatteriesHandler {
	return &BatteriesHandler{repo: repo}
}

func (h *BatteriesHandler) Create(ctx *gin.Context) {
	var req checkup.CreateBatteryRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	b, err := h.repo.Create(cctx, req)
	if err != nil {
		RespondInternal(ctx, "Não foi possível cadastrar a bateria")
		return
	}

	ctx.JSON(http.StatusCreated, b)
}

func (h *BatteriesHandler) List(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	batteries, err := h.repo.List(cctx)
	if err != nil {
		RespondInternal(ctx, "Não foi possível listar baterias")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": batteries,
		"count": len(batteries),
	})
}

func (h *BatteriesHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Identificador inválido", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	b, err := h.repo.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, checkup.ErrBatteryNotFound) {
			RespondNotFound(ctx, "Bateria não encontrada")
			return
		}
		RespondInternal(ctx, "Não foi possível carregar a bateria")
		return
	}

	ctx.JSON(http.StatusOK, b)
}

func (h *BatteriesHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Identificador inválido", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.repo.Delete(cctx, id); err != nil {
		if errors.Is(err, checkup.ErrBatteryNotFound) {
			RespondNotFound(ctx, "Bateria não encontrada")
			return
		}
		RespondInternal(ctx, "Não foi possível remover a bateria")
		return
	}

	ctx.Status(http.StatusNoContent)
}

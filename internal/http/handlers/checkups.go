package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nbclinic/portal/internal/cache"
	"github.com/nbclinic/portal/internal/config"
	"github.com/nbclinic/portal/internal/domain/checkup"
	"github.com/nbclinic/portal/internal/utils"
)

type CheckupStore interface {
	Create(ctx context.Context, req checkup.CreateRequest) (checkup.Request, error)
	List(ctx context.Context, filter checkup.ListFilter) ([]checkup.Request, string, error)
	GetByID(ctx context.Context, id string) (checkup.Request, error)
	UpdateStatus(ctx context.Context, id, status string, unitID *string) (checkup.Request, error)
}

type BatteryLookup interface {
	GetByID(ctx context.Context, id string) (checkup.Battery, error)
}

type CheckupsHandler struct {
	checkups  CheckupStore
	batteries BatteryLookup
	units     UnitStore
	cache     *cache.Cache
}

func NewCheckupsHandler(checkups CheckupStore, batteries BatteryLookup, units UnitStore, c *cache.Cache) *CheckupsHandler {
	return &CheckupsHandler{checkups: checkups, batteries: batteries, units: units, cache: c}
}

func (h *CheckupsHandler) unitExists(ctx context.Context, id string) (bool, error) {
	units, err := h.units.List(ctx)
	if err != nil {
		return false, err
	}
	for _, u := range units {
		if u.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// POST /checkups
func (h *CheckupsHandler) Create(ctx *gin.Context) {
	var req checkup.CreateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	if _, err := h.batteries.GetByID(cctx, req.BatteryID); err != nil {
		if errors.Is(err, checkup.ErrBatteryNotFound) {
			RespondBadRequest(ctx, "Bateria não encontrada", nil)
			return
		}
		RespondInternal(ctx, "Não foi possível registrar o check-up")
		return
	}

	if req.UnitID != nil {
		ok, err := h.unitExists(cctx, *req.UnitID)
		if err != nil {
			RespondInternal(ctx, "Não foi possível registrar o check-up")
			return
		}
		if !ok {
			RespondBadRequest(ctx, "Unidade não encontrada", nil)
			return
		}
	}

	c, err := h.checkups.Create(cctx, req)
	if err != nil {
		RespondInternal(ctx, "Não foi possível registrar o check-up")
		return
	}

	h.cache.DeletePrefix("checkups:list:")

	ctx.JSON(http.StatusCreated, c)
}

// GET /checkups?status=&from=&to=&limit=&cursor=
func (h *CheckupsHandler) List(ctx *gin.Context) {
	limit := parseIntDefault(ctx.Query("limit"), 20)
	if limit < 1 || limit > 100 {
		RespondBadRequest(ctx, "limit deve estar entre 1 e 100", nil)
		return
	}

	var statusPtr *string
	if s := ctx.Query("status"); s != "" {
		if !checkup.ValidStatus(s) {
			RespondBadRequest(ctx, "status inválido", nil)
			return
		}
		statusPtr = &s
	}

	from, err := parseDateQuery(ctx.Query("from"))
	if err != nil {
		RespondBadRequest(ctx, "from deve ser uma data válida", nil)
		return
	}
	to, err := parseDateQuery(ctx.Query("to"))
	if err != nil {
		RespondBadRequest(ctx, "to deve ser uma data válida", nil)
		return
	}

	cursor := ctx.Query("cursor")

	cacheKey := ""
	if cursor == "" {
		cacheKey = utils.BuildCheckupListCacheKey(limit, statusPtr, from, to)
		if cached, ok := h.cache.Get(cacheKey); ok {
			RespondJSONWithETag(ctx, http.StatusOK, cached)
			return
		}
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	items, next, err := h.checkups.List(cctx, checkup.ListFilter{
		Status: statusPtr,
		From:   from,
		To:     to,
		Limit:  limit,
		Cursor: cursor,
	})

	if err != nil {
		if errors.Is(err, utils.ErrInvalidCursor) {
			RespondBadRequest(ctx, "cursor inválido", nil)
			return
		}
		RespondInternal(ctx, "Não foi possível listar check-ups")
		return
	}

	resp := gin.H{
		"items":      items,
		"count":      len(items),
		"limit":      limit,
		"nextCursor": next,
	}

	if cacheKey != "" {
		h.cache.Set(cacheKey, resp)
	}

	RespondJSONWithETag(ctx, http.StatusOK, resp)
}

func (h *CheckupsHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Identificador inválido", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	c, err := h.checkups.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, checkup.ErrNotFound) {
			RespondNotFound(ctx, "Check-up não encontrado")
			return
		}
		RespondInternal(ctx, "Não foi possível buscar o check-up")
		return
	}

	ctx.JSON(http.StatusOK, c)
}

// PATCH /checkups/:id/status. May also assign the performing unit.
func (h *CheckupsHandler) UpdateStatus(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Identificador inválido", nil)
		return
	}

	var req checkup.UpdateStatusRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	if req.UnitID != nil {
		ok, err := h.unitExists(cctx, *req.UnitID)
		if err != nil {
			RespondInternal(ctx, "Não foi possível atualizar o status")
			return
		}
		if !ok {
			RespondBadRequest(ctx, "Unidade não encontrada", nil)
			return
		}
	}

	c, err := h.checkups.UpdateStatus(cctx, id, req.Status, req.UnitID)
	if err != nil {
		if errors.Is(err, checkup.ErrNotFound) {
			RespondNotFound(ctx, "Check-up não encontrado")
			return
		}
		RespondInternal(ctx, "Não foi possível atualizar o status")
		return
	}

	h.cache.DeletePrefix("checkups:list:")

	ctx.JSON(http.StatusOK, c)
}

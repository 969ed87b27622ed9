package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nbclinic/portal/internal/cache"
	"github.com/nbclinic/portal/internal/config"
	"github.com/nbclinic/portal/internal/domain/exam"
	"github.com/nbclinic/portal/internal/domain/partner"
	"github.com/nbclinic/portal/internal/domain/profile"
	"github.com/nbclinic/portal/internal/http/middlewares"
	"github.com/nbclinic/portal/internal/repo/postgres"
	"github.com/nbclinic/portal/internal/utils"
)

type ExamStore interface {
	Create(ctx context.Context, partnerID string, req exam.CreateRequest) (exam.Request, error)
	List(ctx context.Context, filter exam.ListFilter) ([]exam.Request, string, error)
	GetByID(ctx context.Context, id string) (exam.Request, error)
	UpdateStatus(ctx context.Context, id, status string) (exam.Request, error)
}

type DoctorLookup interface {
	GetByID(ctx context.Context, partnerID, id string) (partner.Doctor, error)
}

type InsuranceLookup interface {
	GetByID(ctx context.Context, partnerID, id string) (partner.Insurance, error)
}

type ExamsHandler struct {
	exams      ExamStore
	doctors    DoctorLookup
	insurances InsuranceLookup
	cache      *cache.Cache
}

func NewExamsHandler(exams ExamStore, doctors DoctorLookup, insurances InsuranceLookup, c *cache.Cache) *ExamsHandler {
	return &ExamsHandler{exams: exams, doctors: doctors, insurances: insurances, cache: c}
}

func parseIntDefault(s string, fallback int) int {
	if s == "" {
		return fallback
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// parseDateQuery accepts RFC 3339 or plain dates (2006-01-02).
func parseDateQuery(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, err
		}
	}

	t = t.UTC()
	return &t, nil
}

// POST /exams. A partner files a referral for its own link.
func (h *ExamsHandler) Create(ctx *gin.Context) {
	partnerID, ok := middlewares.PartnerIDFromContext(ctx)
	if !ok || partnerID == "" {
		RespondForbidden(ctx, "Perfil sem parceiro vinculado")
		return
	}

	var req exam.CreateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	// the doctor must belong to the requesting partner
	if _, err := h.doctors.GetByID(cctx, partnerID, req.DoctorID); err != nil {
		if errors.Is(err, postgres.ErrDoctorNotFound) {
			RespondBadRequest(ctx, "Médico não encontrado para este parceiro", nil)
			return
		}
		RespondInternal(ctx, "Não foi possível registrar o pedido de exame")
		return
	}

	if req.PaymentType == exam.PaymentInsurance {
		if req.InsuranceID == nil {
			RespondBadRequest(ctx, "Convênio é obrigatório para pagamento por convênio", nil)
			return
		}
		if _, err := h.insurances.GetByID(cctx, partnerID, *req.InsuranceID); err != nil {
			if errors.Is(err, postgres.ErrInsuranceNotFound) {
				RespondBadRequest(ctx, "Convênio não encontrado para este parceiro", nil)
				return
			}
			RespondInternal(ctx, "Não foi possível registrar o pedido de exame")
			return
		}
	} else {
		// particular never carries an insurance link
		req.InsuranceID = nil
	}

	e, err := h.exams.Create(cctx, partnerID, req)
	if err != nil {
		RespondInternal(ctx, "Não foi possível registrar o pedido de exame")
		return
	}

	h.cache.DeletePrefix("exams:list:")

	ctx.JSON(http.StatusCreated, e)
}

// GET /exams?status=&from=&to=&limit=&cursor=
//
// Partners only ever see their own referrals; reception and admin may
// filter by partnerId.
func (h *ExamsHandler) List(ctx *gin.Context) {
	limit := parseIntDefault(ctx.Query("limit"), 20)
	if limit < 1 || limit > 100 {
		RespondBadRequest(ctx, "limit deve estar entre 1 e 100", nil)
		return
	}

	var partnerPtr *string

	role, _ := middlewares.RoleFromContext(ctx)
	if role == profile.RolePartner {
		id, ok := middlewares.PartnerIDFromContext(ctx)
		if !ok || id == "" {
			RespondForbidden(ctx, "Perfil sem parceiro vinculado")
			return
		}
		partnerPtr = &id
	} else if p := ctx.Query("partnerId"); p != "" {
		if !utils.IsUUID(p) {
			RespondBadRequest(ctx, "partnerId deve ser um identificador válido", nil)
			return
		}
		partnerPtr = &p
	}

	var statusPtr *string
	if s := ctx.Query("status"); s != "" {
		if !exam.ValidStatus(s) {
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

	// only first pages are cached; cursor pages are cheap keyset reads
	cacheKey := ""
	if cursor == "" {
		cacheKey = utils.BuildExamListCacheKey(limit, partnerPtr, statusPtr, from, to)
		if cached, ok := h.cache.Get(cacheKey); ok {
			RespondJSONWithETag(ctx, http.StatusOK, cached)
			return
		}
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	items, next, err := h.exams.List(cctx, exam.ListFilter{
		PartnerID: partnerPtr,
		Status:    statusPtr,
		From:      from,
		To:        to,
		Limit:     limit,
		Cursor:    cursor,
	})

	if err != nil {
		if errors.Is(err, utils.ErrInvalidCursor) {
			RespondBadRequest(ctx, "cursor inválido", nil)
			return
		}
		RespondInternal(ctx, "Não foi possível listar pedidos de exame")
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

func (h *ExamsHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Identificador inválido", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	e, err := h.exams.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, exam.ErrNotFound) {
			RespondNotFound(ctx, "Pedido de exame não encontrado")
			return
		}
		RespondInternal(ctx, "Não foi possível buscar o pedido de exame")
		return
	}

	// partner isolation also applies to direct lookups
	if role, _ := middlewares.RoleFromContext(ctx); role == profile.RolePartner {
		own, _ := middlewares.PartnerIDFromContext(ctx)
		if own != e.PartnerID {
			RespondNotFound(ctx, "Pedido de exame não encontrado")
			return
		}
	}

	ctx.JSON(http.StatusOK, e)
}

// PATCH /exams/:id/status. Reception moves a referral along the workflow.
func (h *ExamsHandler) UpdateStatus(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Identificador inválido", nil)
		return
	}

	var req exam.UpdateStatusRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	e, err := h.exams.UpdateStatus(cctx, id, req.Status)
	if err != nil {
		if errors.Is(err, exam.ErrNotFound) {
			RespondNotFound(ctx, "Pedido de exame não encontrado")
			return
		}
		RespondInternal(ctx, "Não foi possível atualizar o status")
		return
	}

	h.cache.DeletePrefix("exams:list:")

	ctx.JSON(http.StatusOK, e)
}

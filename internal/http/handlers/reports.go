package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nbclinic/portal/internal/cache"
	"github.com/nbclinic/portal/internal/config"
)

type ExamReporter interface {
	CountByStatus(ctx context.Context, from, to *time.Time) (map[string]int, error)
	CountByPartner(ctx context.Context, from, to *time.Time) (map[string]int, error)
}

type CheckupReporter interface {
	CountByStatus(ctx context.Context, from, to *time.Time) (map[string]int, error)
}

// ReportsHandler serves the admin dashboard aggregates. Counts are cheap
// GROUP BY queries but the dashboard polls, so results sit in the TTL
// cache between refreshes.
type ReportsHandler struct {
	exams    ExamReporter
	checkups CheckupReporter
	cache    *cache.Cache
}

func NewReportsHandler(exams ExamReporter, checkups CheckupReporter, c *cache.Cache) *ReportsHandler {
	return &ReportsHandler{exams: exams, checkups: checkups, cache: c}
}

func reportCacheKey(kind string, from, to *time.Time) string {
	key := "reports:" + kind + ":v1:from="
	if from != nil {
		key += from.UTC().Format(time.RFC3339Nano)
	}
	key += ":to="
	if to != nil {
		key += to.UTC().Format(time.RFC3339Nano)
	}
	return key
}

// GET /reports/exams?from=&to=
func (h *ReportsHandler) Exams(ctx *gin.Context) {
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

	key := reportCacheKey("exams", from, to)
	if cached, ok := h.cache.Get(key); ok {
		RespondJSONWithETag(ctx, http.StatusOK, cached)
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	byStatus, err := h.exams.CountByStatus(cctx, from, to)
	if err != nil {
		RespondInternal(ctx, "Não foi possível gerar o relatório")
		return
	}

	byPartner, err := h.exams.CountByPartner(cctx, from, to)
	if err != nil {
		RespondInternal(ctx, "Não foi possível gerar o relatório")
		return
	}

	total := 0
	for _, n := range byStatus {
		total += n
	}

	resp := gin.H{
		"total":     total,
		"byStatus":  byStatus,
		"byPartner": byPartner,
	}

	h.cache.Set(key, resp)
	RespondJSONWithETag(ctx, http.StatusOK, resp)
}

// GET /reports/checkups?from=&to=
func (h *ReportsHandler) Checkups(ctx *gin.Context) {
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

	key := reportCacheKey("checkups", from, to)
	if cached, ok := h.cache.Get(key); ok {
		RespondJSONWithETag(ctx, http.StatusOK, cached)
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	byStatus, err := h.checkups.CountByStatus(cctx, from, to)
	if err != nil {
		RespondInternal(ctx, "Não foi possível gerar o relatório")
		return
	}

	total := 0
	for _, n := range byStatus {
		total += n
	}

	resp := gin.H{
		"total":    total,
		"byStatus": byStatus,
	}

	h.cache.Set(key, resp)
	RespondJSONWithETag(ctx, http.StatusOK, resp)
}

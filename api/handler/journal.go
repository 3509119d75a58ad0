package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/farmchain/backend/pkg/httpcontext"
	"github.com/farmchain/backend/repository"
)

type JournalHandler struct {
	baseHandler
	journal repository.JournalRepository
}

func NewJournalHandler(journal repository.JournalRepository, adapter *httpcontext.Adapter, logger *zap.Logger) *JournalHandler {
	return &JournalHandler{
		baseHandler: newBaseHandler(adapter, logger),
		journal:     journal,
	}
}

// @Summary Recent reconciliation audit entries
// @Tags journal
// @Router /api/v1/journal [get]
func (h *JournalHandler) ListRecent(ctx *fasthttp.RequestCtx) {
	if h.journal == nil {
		h.respondSuccess(ctx, http.StatusOK, []repository.JournalEntry{})
		return
	}

	limit := parseInt(string(ctx.QueryArgs().Peek("limit")), 50)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	entries, err := h.journal.ListRecent(stdCtx, limit)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if entries == nil {
		entries = []repository.JournalEntry{}
	}
	h.respondSuccess(ctx, http.StatusOK, entries)
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/farmchain/backend/api/transport"
	"github.com/farmchain/backend/domain"
	"github.com/farmchain/backend/pkg/httpcontext"
	reconcileUC "github.com/farmchain/backend/usecase/reconcile"
	registryUC "github.com/farmchain/backend/usecase/registry"
	walletUC "github.com/farmchain/backend/usecase/wallet"
)

type ProductHandler struct {
	baseHandler
	reconcile *reconcileUC.Service
	registry  *registryUC.UseCase
	wallet    *walletUC.UseCase
}

func NewProductHandler(reconcile *reconcileUC.Service, registry *registryUC.UseCase, wallet *walletUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		baseHandler: newBaseHandler(adapter, logger),
		reconcile:   reconcile,
		registry:    registry,
		wallet:      wallet,
	}
}

// @Summary List recent products (cache-scoped, not authoritative)
// @Tags products
// @Router /api/v1/products [get]
func (h *ProductHandler) ListRecent(ctx *fasthttp.RequestCtx) {
	limit := parseInt(string(ctx.QueryArgs().Peek("limit")), 50)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	summaries, err := h.reconcile.ListRecent(stdCtx, limit)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, summaries)
}

// @Summary Get product by id, cache-or-ledger
// @Tags products
// @Router /api/v1/products/{id} [get]
func (h *ProductHandler) GetByID(ctx *fasthttp.RequestCtx) {
	id, ok := h.productID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	projection, err := h.reconcile.GetByID(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, projection)
}

// @Summary List products by owner address
// @Tags products
// @Router /api/v1/products/owner/{address} [get]
func (h *ProductHandler) GetByOwner(ctx *fasthttp.RequestCtx) {
	address, _ := ctx.UserValue("address").(string)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	summaries, unresolved, err := h.reconcile.GetByOwner(stdCtx, address)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	var meta interface{}
	if len(unresolved) > 0 {
		meta = transport.PartialMeta{Partial: true, UnresolvedIDs: unresolved}
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(summaries, meta))
}

// @Summary Force a ledger-to-cache refresh
// @Tags products
// @Router /api/v1/products/sync/{id} [post]
func (h *ProductHandler) Sync(ctx *fasthttp.RequestCtx) {
	id, ok := h.productID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	projection, err := h.reconcile.Sync(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, projection)
}

// @Summary Register a new product on the ledger
// @Tags products
// @Router /api/v1/products [post]
func (h *ProductHandler) Create(ctx *fasthttp.RequestCtx) {
	var req transport.CreateProductRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	session, err := h.session(stdCtx, ctx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	id, txRef, err := h.registry.Create(stdCtx, session, req.Name, req.Quantity, domain.EpochToTime(req.HarvestDate))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, map[string]interface{}{
		"id":     id,
		"tx_ref": txRef,
	})
}

// @Summary Append a lifecycle event to a product
// @Tags products
// @Router /api/v1/products/{id}/updates [post]
func (h *ProductHandler) AppendUpdate(ctx *fasthttp.RequestCtx) {
	id, ok := h.productID(ctx)
	if !ok {
		return
	}

	var req transport.AppendUpdateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	session, err := h.session(stdCtx, ctx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	txRef, err := h.registry.AppendUpdate(stdCtx, session, id, req.Status, req.Payload)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusAccepted, map[string]interface{}{
		"id":     id,
		"tx_ref": txRef,
	})
}

func (h *ProductHandler) productID(ctx *fasthttp.RequestCtx) (int64, bool) {
	raw, _ := ctx.UserValue("id").(string)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.respondError(ctx, domain.ErrInvalidID)
		return 0, false
	}
	return id, true
}

func (h *ProductHandler) session(stdCtx context.Context, ctx *fasthttp.RequestCtx) (*domain.WalletSession, error) {
	sessionID := string(ctx.Request.Header.Peek("X-Session-ID"))
	if sessionID == "" {
		return nil, domain.ErrUnauthorized
	}
	return h.wallet.Get(stdCtx, sessionID)
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}

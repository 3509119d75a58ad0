package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/farmchain/backend/api/transport"
	"github.com/farmchain/backend/domain"
	"github.com/farmchain/backend/pkg/httpcontext"
	walletUC "github.com/farmchain/backend/usecase/wallet"
)

type WalletHandler struct {
	baseHandler
	wallet *walletUC.UseCase
}

func NewWalletHandler(wallet *walletUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{
		baseHandler: newBaseHandler(adapter, logger),
		wallet:      wallet,
	}
}

// @Summary Open a wallet session
// @Tags wallet
// @Router /api/v1/wallet/connect [post]
func (h *WalletHandler) Connect(ctx *fasthttp.RequestCtx) {
	var req transport.WalletConnectRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	session, token, err := h.wallet.Connect(stdCtx, req.Address, req.NetworkID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, map[string]interface{}{
		"session": session,
		"token":   token,
	})
}

// @Summary Record an explicit network switch
// @Tags wallet
// @Router /api/v1/wallet/switch-network [post]
func (h *WalletHandler) SwitchNetwork(ctx *fasthttp.RequestCtx) {
	sessionID := string(ctx.Request.Header.Peek("X-Session-ID"))
	if sessionID == "" {
		h.respondError(ctx, domain.ErrUnauthorized)
		return
	}

	var req transport.SwitchNetworkRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	session, err := h.wallet.SwitchNetwork(stdCtx, sessionID, req.NetworkID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, session)
}

// @Summary Terminate the wallet session
// @Tags wallet
// @Router /api/v1/wallet/session [delete]
func (h *WalletHandler) Disconnect(ctx *fasthttp.RequestCtx) {
	sessionID := string(ctx.Request.Header.Peek("X-Session-ID"))
	if sessionID == "" {
		h.respondError(ctx, domain.ErrUnauthorized)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.wallet.Disconnect(stdCtx, sessionID); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusNoContent, nil)
}

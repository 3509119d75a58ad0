package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/farmchain/backend/api/transport"
	"github.com/farmchain/backend/internal/infrastructure/monitor"
	"github.com/farmchain/backend/pkg/httpcontext"
)

type HealthHandler struct {
	baseHandler
	monitor *monitor.Monitor
}

func NewHealthHandler(mon *monitor.Monitor, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	payload := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"services": map[string]interface{}{
			"cache":   status.Mongo,
			"ledger":  status.Ledger,
			"redis":   status.Redis,
			"journal": status.PostgreSQL,
			"buffer": map[string]interface{}{
				"online": status.Buffer,
				"size":   status.BufferSize,
			},
		},
	}

	// The ledger is the sole authority; without it nothing can be
	// served fresh. The cache being down only degrades reads.
	if status.Ledger {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.Envelope{
		Status:  "error",
		Error:   "DEGRADED",
		Message: "ledger gateway unreachable",
		Data:    payload,
	})
}

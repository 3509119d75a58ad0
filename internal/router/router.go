package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/farmchain/backend/api/handler"
	"github.com/farmchain/backend/api/transport"
)

type Handlers struct {
	Product *apiHandler.ProductHandler
	Wallet  *apiHandler.WalletHandler
	Journal *apiHandler.JournalHandler
	Health  *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Read paths carry no auth; any caller may inspect any product.
	r.GET("/api/v1/products", handlers.Product.ListRecent)
	r.GET("/api/v1/products/{id}", handlers.Product.GetByID)
	r.GET("/api/v1/products/owner/{address}", handlers.Product.GetByOwner)
	r.GET("/api/v1/journal", handlers.Journal.ListRecent)

	// Wallet session transitions
	r.POST("/api/v1/wallet/connect", handlers.Wallet.Connect)
	r.POST("/api/v1/wallet/switch-network", authMiddleware(handlers.Wallet.SwitchNetwork))
	r.DELETE("/api/v1/wallet/session", authMiddleware(handlers.Wallet.Disconnect))

	// Mutating paths
	r.POST("/api/v1/products", authMiddleware(handlers.Product.Create))
	r.POST("/api/v1/products/{id}/updates", authMiddleware(handlers.Product.AppendUpdate))
	r.POST("/api/v1/products/sync/{id}", authMiddleware(handlers.Product.Sync))

	r.NotFound = func(ctx *fasthttp.RequestCtx) {
		ctx.Response.Header.SetContentType("application/json")
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		ctx.SetBodyString(transport.NewError("NOT_FOUND", "Route not found").String())
	}

	return r
}

package routes

import (
	"ledgercore/internal/api/handlers"
	"ledgercore/internal/api/middleware"
	"ledgercore/internal/pkg/config"
	"ledgercore/internal/store/postgres"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires every endpoint of spec.md §6 onto router,
// middleware first, then the account/transfer/read surface.
func RegisterRoutes(router *gin.Engine, container *handlers.Container, idemStore *postgres.IdempotencyStore, cfg *config.Config) {
	router.Use(middleware.CorrelationID())
	router.Use(middleware.Prometheus())
	router.Use(middleware.CORS(cfg))
	router.Use(middleware.RateLimit(cfg))

	mutating := router.Group("/")
	mutating.Use(middleware.Idempotency(idemStore, cfg.Core.IdempotencyTTL))
	{
		mutating.POST("/accounts", handlers.MakeCreateAccountHandler(container))
		mutating.POST("/accounts/:id/freeze", handlers.MakeFreezeAccountHandler(container))
		mutating.POST("/accounts/:id/unfreeze", handlers.MakeUnfreezeAccountHandler(container))
		mutating.POST("/accounts/:id/close", handlers.MakeCloseAccountHandler(container))
		mutating.POST("/transfers", handlers.MakeInitiateTransferHandler(container))
		mutating.POST("/transfers/:id/reverse", handlers.MakeReverseTransferHandler(container))
	}

	router.GET("/accounts/:id", handlers.MakeGetAccountHandler(container))
	router.GET("/accounts/:id/transfers", handlers.MakeListAccountTransfersHandler(container))
	router.GET("/accounts/:id/statement", handlers.MakeAccountStatementHandler(container))
	router.GET("/transfers", handlers.MakeListTransfersHandler(container))
	router.GET("/transfers/:id", handlers.MakeGetTransferHandler(container))

	router.GET("/metrics", handlers.Metrics)
}

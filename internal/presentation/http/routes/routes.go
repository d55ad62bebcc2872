package routes

import (
	"github.com/labstack/echo"
	"github.com/qqdog1/ws/internal/presentation/http/handlers"
)

// SetupRoutes sets up all routes for the application
func SetupRoutes(e *echo.Echo, h *handlers.WalletHandler) {
	// Health check
	e.GET("/health", handlers.HeartBeat)

	api := e.Group("/api/v1")

	// Address management
	api.POST("/addresses", h.CreateAddress())
	api.GET("/addresses", h.ListAddresses())
	api.GET("/addresses/:id", h.GetAddress())

	// Balances
	api.GET("/currencies", h.Currencies())
	api.GET("/balances/:address", h.Balance())
	api.GET("/balances/:address/:currency", h.Balance())

	// Transfers
	api.POST("/transfers", h.Transfer())
	api.POST("/transfers/:currency", h.Transfer())

	// History
	api.GET("/users/:id/withdrawals", h.Withdrawals())
	api.GET("/users/:id/deposits", h.Deposits())
	api.GET("/transactions/:hash", h.Transaction())
	api.GET("/blocks/:chain", h.LastBlock())
}

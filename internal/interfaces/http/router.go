package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/agromarket-api/internal/application/analytics"
	"github.com/jhoicas/agromarket-api/internal/application/inventory"
	"github.com/jhoicas/agromarket-api/internal/application/sales"
	"github.com/jhoicas/agromarket-api/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Ledger    *inventory.LedgerUseCase
	Sales     *sales.SaleUseCase
	Queries   *analytics.StockQueryUseCase
	JWTSecret string
	// Gatherer expone /metrics; nil omite la ruta.
	Gatherer prometheus.Gatherer
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	adminOnly := RequireRole(jwt.RoleAdmin)

	productHandler := NewProductHandler(deps.Ledger)
	inventoryHandler := NewInventoryHandler(deps.Ledger, deps.Queries)
	saleHandler := NewSaleHandler(deps.Sales)
	dashboardHandler := NewDashboardHandler(deps.Queries)

	// Products
	products := protected.Group("/products")
	products.Get("/:id", productHandler.GetByID)
	products.Post("/", adminOnly, productHandler.Create)
	products.Put("/:id", adminOnly, productHandler.Update)
	products.Delete("/:id", adminOnly, productHandler.Delete)
	products.Patch("/:id/stock", adminOnly, inventoryHandler.AdjustStock)
	products.Get("/:id/inventory-log", adminOnly, inventoryHandler.History)
	products.Get("/:id/reconciliation", adminOnly, inventoryHandler.Reconciliation)

	// Inventory
	invGroup := protected.Group("/inventory", adminOnly)
	invGroup.Get("/low-stock", inventoryHandler.LowStock)

	// Sales: cualquier usuario autenticado compra; pagos y reembolsos los confirma admin
	salesGroup := protected.Group("/sales")
	salesGroup.Post("/", saleHandler.Create)
	salesGroup.Get("/:id", saleHandler.GetByID)
	salesGroup.Post("/:id/payment", adminOnly, saleHandler.ConfirmPayment)
	salesGroup.Post("/:id/refund", adminOnly, saleHandler.Refund)

	// Dashboard
	protected.Get("/dashboard/snapshot", adminOnly, dashboardHandler.Snapshot)
}

package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/agromarket-api/internal/application/analytics"
	"github.com/jhoicas/agromarket-api/internal/application/dto"
	"github.com/jhoicas/agromarket-api/internal/application/inventory"
)

// InventoryHandler ajustes de stock, historial, alertas y conciliación (solo admin).
type InventoryHandler struct {
	ledger  *inventory.LedgerUseCase
	queries *analytics.StockQueryUseCase
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(ledger *inventory.LedgerUseCase, queries *analytics.StockQueryUseCase) *InventoryHandler {
	return &InventoryHandler{ledger: ledger, queries: queries}
}

// AdjustStock godoc
// @Summary      Ajustar stock
// @Description  delta con signo; restock y return solo suman, adjustment admite ambos signos.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                  true  "ID del producto"
// @Param        body  body  dto.AdjustStockRequest  true  "delta, type, note"
// @Success      200   {object}  dto.StockChangeResponse
// @Failure      400   {object}  dto.ValidationErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.StockErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/products/{id}/stock [patch]
func (h *InventoryHandler) AdjustStock(c *fiber.Ctx) error {
	var in dto.AdjustStockRequest
	if ok, err := parseAndValidate(c, &in); !ok {
		return err
	}
	change, err := h.ledger.AdjustStock(c.Context(), inventory.AdjustStockInput{
		ProductID: c.Params("id"),
		Delta:     in.Delta,
		Type:      in.Type,
		Note:      in.Note,
		ActorID:   GetUserID(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.StockChangeResponse{
		ProductID:     change.ProductID,
		PreviousStock: change.PreviousStock,
		NewStock:      change.NewStock,
	})
}

// LowStock godoc
// @Summary      Productos bajo el umbral de reorden
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.LowStockResponse
// @Router       /api/inventory/low-stock [get]
func (h *InventoryHandler) LowStock(c *fiber.Ctx) error {
	list, err := h.queries.ListLowStock(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	items := make([]dto.ProductResponse, 0, len(list))
	for _, p := range list {
		items = append(items, toProductResponse(p))
	}
	return c.JSON(dto.LowStockResponse{Items: items, Count: len(items)})
}

// History godoc
// @Summary      Historial de inventario del producto
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        id      path   string  true   "ID del producto"
// @Param        limit   query  int     false  "máximo de entradas (por defecto 50)"
// @Param        offset  query  int     false  "desplazamiento"
// @Success      200  {object}  dto.InventoryLogListResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/products/{id}/inventory-log [get]
func (h *InventoryHandler) History(c *fiber.Ctx) error {
	page := dto.PageRequest{Limit: c.QueryInt("limit", 50), Offset: c.QueryInt("offset", 0)}
	if err := validate.Struct(page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ValidationErrorResponse{
			Code: "VALIDATION", Message: "paginación inválida", Fields: validationFields(err),
		})
	}
	entries, err := h.queries.GetInventoryHistory(c.Context(), c.Params("id"), page.Limit, page.Offset)
	if err != nil {
		return writeError(c, err)
	}
	items := make([]dto.InventoryLogEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, toLogEntryResponse(e))
	}
	return c.JSON(dto.InventoryLogListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}

// Reconciliation godoc
// @Summary      Conciliar stock con el historial
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del producto"
// @Success      200  {object}  dto.StockReconciliationDTO
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/products/{id}/reconciliation [get]
func (h *InventoryHandler) Reconciliation(c *fiber.Ctx) error {
	rec, err := h.queries.ReconcileProduct(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(rec)
}

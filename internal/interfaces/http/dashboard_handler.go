package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/agromarket-api/internal/application/analytics"
)

// DashboardHandler panel de administración.
type DashboardHandler struct {
	queries *analytics.StockQueryUseCase
}

// NewDashboardHandler construye el handler.
func NewDashboardHandler(queries *analytics.StockQueryUseCase) *DashboardHandler {
	return &DashboardHandler{queries: queries}
}

// Snapshot godoc
// @Summary      Resumen del panel
// @Description  Productos activos, ingresos completados, stock bajo y últimas ventas.
// @Tags         dashboard
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.DashboardSnapshotDTO
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/dashboard/snapshot [get]
func (h *DashboardHandler) Snapshot(c *fiber.Ctx) error {
	snap, err := h.queries.GetDashboardSnapshot(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(snap)
}

package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/agromarket-api/internal/application/dto"
	"github.com/jhoicas/agromarket-api/internal/application/sales"
	"github.com/jhoicas/agromarket-api/pkg/jwt"
)

// SaleHandler checkout, confirmación de pago y reembolsos.
type SaleHandler struct {
	uc *sales.SaleUseCase
}

// NewSaleHandler construye el handler.
func NewSaleHandler(uc *sales.SaleUseCase) *SaleHandler {
	return &SaleHandler{uc: uc}
}

// Create godoc
// @Summary      Crear venta desde el carrito
// @Description  Descuenta stock de todas las líneas de forma atómica. El comprador es el usuario del token.
// @Tags         sales
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateSaleRequest  true  "items, payment_method"
// @Success      201   {object}  dto.SaleResponse
// @Failure      400   {object}  dto.ValidationErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.StockErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/sales [post]
func (h *SaleHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateSaleRequest
	if ok, err := parseAndValidate(c, &in); !ok {
		return err
	}
	lines := make([]sales.CartLine, 0, len(in.Items))
	for _, it := range in.Items {
		lines = append(lines, sales.CartLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	sale, err := h.uc.CreateSale(c.Context(), sales.CreateSaleInput{
		BuyerID:       GetUserID(c),
		Items:         lines,
		PaymentMethod: in.PaymentMethod,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toSaleResponse(sale))
}

// GetByID godoc
// @Summary      Obtener venta
// @Description  Un comprador solo ve sus propias ventas; admin ve todas.
// @Tags         sales
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la venta"
// @Success      200  {object}  dto.SaleResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/sales/{id} [get]
func (h *SaleHandler) GetByID(c *fiber.Ctx) error {
	sale, err := h.uc.GetSale(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	if GetRole(c) != jwt.RoleAdmin && sale.BuyerID != GetUserID(c) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "recurso no encontrado"})
	}
	return c.JSON(toSaleResponse(sale))
}

// ConfirmPayment godoc
// @Summary      Confirmar resultado del pago
// @Description  completed o failed. Repetir el mismo resultado no cambia nada; failed devuelve las unidades al stock.
// @Tags         sales
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                     true  "ID de la venta"
// @Param        body  body  dto.ConfirmPaymentRequest  true  "outcome, transaction_ref"
// @Success      200   {object}  dto.SaleResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/sales/{id}/payment [post]
func (h *SaleHandler) ConfirmPayment(c *fiber.Ctx) error {
	var in dto.ConfirmPaymentRequest
	if ok, err := parseAndValidate(c, &in); !ok {
		return err
	}
	sale, err := h.uc.ConfirmPayment(c.Context(), c.Params("id"), in.Outcome, in.TransactionRef)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toSaleResponse(sale))
}

// Refund godoc
// @Summary      Reembolsar venta completada
// @Tags         sales
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la venta"
// @Success      200  {object}  dto.SaleResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/sales/{id}/refund [post]
func (h *SaleHandler) Refund(c *fiber.Ctx) error {
	sale, err := h.uc.RefundSale(c.Context(), c.Params("id"), GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toSaleResponse(sale))
}

package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrProductNotFound   = fmt.Errorf("producto: %w", ErrNotFound)
	ErrSaleNotFound      = fmt.Errorf("venta: %w", ErrNotFound)
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrDuplicate         = errors.New("recurso duplicado")
	ErrInsufficientStock = errors.New("stock insuficiente")
	ErrInvalidState      = errors.New("operación no válida para el estado actual de la venta")

	// Errores de infraestructura: el caller puede reintentar la operación completa.
	ErrPersistence = errors.New("error de persistencia")
	ErrBusy        = errors.New("recurso ocupado, tiempo de espera de bloqueo agotado")
)

// InsufficientStockError detalla qué producto no alcanza y cuánto se pidió vs. cuánto hay.
// errors.Is(err, ErrInsufficientStock) es true.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente para el producto %s: solicitado %d, disponible %d",
		e.ProductID, e.Requested, e.Available)
}

// Is permite comparar con ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// ProductNotFoundError producto inexistente o inactivo.
// errors.Is contra ErrProductNotFound y ErrNotFound es true.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("producto no encontrado: %s", e.ProductID)
}

// Unwrap encadena con ErrProductNotFound (y por ende con ErrNotFound).
func (e *ProductNotFoundError) Unwrap() error {
	return ErrProductNotFound
}

// NewProductNotFound construye el error para el producto indicado.
func NewProductNotFound(productID string) error {
	return &ProductNotFoundError{ProductID: productID}
}

// IsCallerError indica si el error es responsabilidad del caller (no se reintenta).
func IsCallerError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInvalidState)
}

// IsRetryable indica si el error es de infraestructura y la operación completa puede reintentarse.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence) || errors.Is(err, ErrBusy)
}

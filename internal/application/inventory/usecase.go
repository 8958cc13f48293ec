package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/agromarket-api/internal/application/dto"
	"github.com/jhoicas/agromarket-api/internal/domain"
	"github.com/jhoicas/agromarket-api/internal/domain/entity"
	"github.com/jhoicas/agromarket-api/internal/domain/repository"
	"github.com/rs/zerolog"
)

const (
	noteInitialStock = "Stock inicial al crear producto"
	noteManualUpdate = "Actualización manual de stock"
)

// LedgerUseCase es la única vía para mutar el stock de un producto.
// Cada mutación bloquea la fila (SELECT FOR UPDATE), actualiza el stock y agrega
// su registro en inventory_log dentro de la misma transacción.
type LedgerUseCase struct {
	txRunner    TxRunner
	productRepo repository.ProductRepository
	logger      zerolog.Logger
}

// NewLedgerUseCase construye el caso de uso. productRepo se usa solo para lecturas fuera de transacción.
func NewLedgerUseCase(
	txRunner TxRunner,
	productRepo repository.ProductRepository,
	logger zerolog.Logger,
) *LedgerUseCase {
	return &LedgerUseCase{
		txRunner:    txRunner,
		productRepo: productRepo,
		logger:      logger,
	}
}

// AdjustStockInput entrada de un ajuste de stock administrativo.
// Delta con signo; Type debe ser coherente con el signo (ver entity.DeltaMatchesType).
type AdjustStockInput struct {
	ProductID string
	Delta     int
	Type      string
	Note      string
	ActorID   string
}

// StockChange stock antes y después de una mutación.
type StockChange struct {
	ProductID     string
	PreviousStock int
	NewStock      int
}

// GetStock devuelve el stock actual de un producto activo.
func (uc *LedgerUseCase) GetStock(ctx context.Context, productID string) (int, error) {
	product, err := uc.GetProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	return product.Stock, nil
}

// GetProduct obtiene un producto activo; ProductNotFound si no existe o está inactivo.
func (uc *LedgerUseCase) GetProduct(ctx context.Context, productID string) (*entity.Product, error) {
	if productID == "" {
		return nil, domain.ErrInvalidInput
	}
	product, err := uc.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive() {
		return nil, domain.NewProductNotFound(productID)
	}
	return product, nil
}

// AdjustStock aplica newStock = stock + delta en su propia transacción.
// Si el resultado fuera negativo devuelve InsufficientStock y no escribe nada.
func (uc *LedgerUseCase) AdjustStock(ctx context.Context, input AdjustStockInput) (StockChange, error) {
	if input.ProductID == "" || input.Delta == 0 {
		return StockChange{}, domain.ErrInvalidInput
	}
	// initial lo emite la creación del producto y sale solo el coordinador de ventas
	if input.Type == entity.LogTypeInitial || input.Type == entity.LogTypeSale ||
		!entity.DeltaMatchesType(input.Type, input.Delta) {
		return StockChange{}, domain.ErrInvalidInput
	}

	var change StockChange
	err := uc.txRunner.Run(ctx, func(repos repository.TxRepos) error {
		product, err := repos.Products.GetForUpdate(ctx, input.ProductID)
		if err != nil {
			return err
		}
		if !product.IsActive() {
			return domain.NewProductNotFound(input.ProductID)
		}
		change, err = uc.AdjustInTx(ctx, repos, product, input.Delta, input.Type, input.Note, input.ActorID, time.Now().UTC())
		return err
	})
	if err != nil {
		uc.logger.Warn().Err(err).
			Str("product_id", input.ProductID).
			Int("delta", input.Delta).
			Str("type", input.Type).
			Msg("ajuste de stock rechazado")
		return StockChange{}, err
	}
	uc.logger.Info().
		Str("product_id", input.ProductID).
		Int("previous_stock", change.PreviousStock).
		Int("new_stock", change.NewStock).
		Str("type", input.Type).
		Msg("stock ajustado")
	return change, nil
}

// AdjustInTx aplica el delta usando los repositorios de la transacción del caller.
// product debe estar bloqueado por esa transacción; su Stock queda actualizado al nuevo valor.
func (uc *LedgerUseCase) AdjustInTx(
	ctx context.Context,
	repos repository.TxRepos,
	product *entity.Product,
	delta int,
	logType, note, actorID string,
	now time.Time,
) (StockChange, error) {
	if !entity.DeltaMatchesType(logType, delta) {
		return StockChange{}, domain.ErrInvalidInput
	}
	previous := product.Stock
	newStock := previous + delta
	if newStock < 0 {
		return StockChange{}, &domain.InsufficientStockError{
			ProductID: product.ID,
			Requested: -delta,
			Available: previous,
		}
	}
	if err := repos.Products.UpdateStock(ctx, product.ID, newStock); err != nil {
		return StockChange{}, err
	}
	quantity := delta
	if quantity < 0 {
		quantity = -quantity
	}
	entry := &entity.InventoryLogEntry{
		ID:            uuid.New().String(),
		ProductID:     product.ID,
		Type:          logType,
		Quantity:      quantity,
		PreviousStock: previous,
		NewStock:      newStock,
		Notes:         note,
		CreatedBy:     actorID,
		CreatedAt:     now,
	}
	if err := repos.InventoryLog.Append(ctx, entry); err != nil {
		return StockChange{}, err
	}
	product.Stock = newStock
	product.UpdatedAt = now
	return StockChange{ProductID: product.ID, PreviousStock: previous, NewStock: newStock}, nil
}

// CreateProduct crea el producto y, si trae stock, su entrada initial en el historial.
func (uc *LedgerUseCase) CreateProduct(ctx context.Context, in dto.CreateProductRequest, actorID string) (*entity.Product, error) {
	name := strings.TrimSpace(in.Name)
	category := strings.TrimSpace(in.Category)
	if name == "" || category == "" || in.Price.IsNegative() || in.Stock < 0 {
		return nil, domain.ErrInvalidInput
	}
	minStock := entity.DefaultMinStock
	if in.MinStock != nil {
		if *in.MinStock < 0 {
			return nil, domain.ErrInvalidInput
		}
		minStock = *in.MinStock
	}

	now := time.Now().UTC()
	product := &entity.Product{
		ID:          uuid.New().String(),
		Name:        name,
		Category:    category,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		MinStock:    minStock,
		Status:      entity.ProductStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := uc.txRunner.Run(ctx, func(repos repository.TxRepos) error {
		if err := repos.Products.Create(ctx, product); err != nil {
			return err
		}
		if product.Stock == 0 {
			return nil
		}
		return repos.InventoryLog.Append(ctx, &entity.InventoryLogEntry{
			ID:            uuid.New().String(),
			ProductID:     product.ID,
			Type:          entity.LogTypeInitial,
			Quantity:      product.Stock,
			PreviousStock: 0,
			NewStock:      product.Stock,
			Notes:         noteInitialStock,
			CreatedBy:     actorID,
			CreatedAt:     now,
		})
	})
	if err != nil {
		return nil, err
	}
	uc.logger.Info().Str("product_id", product.ID).Int("stock", product.Stock).Msg("producto creado")
	return product, nil
}

// UpdateProduct actualización parcial. Un cambio de Stock se registra como restock (sube)
// o adjustment (baja), igual que AdjustStock.
func (uc *LedgerUseCase) UpdateProduct(ctx context.Context, id string, in dto.UpdateProductRequest, actorID string) (*entity.Product, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, domain.ErrInvalidInput
	}
	if in.Category != nil && strings.TrimSpace(*in.Category) == "" {
		return nil, domain.ErrInvalidInput
	}
	if (in.Price != nil && in.Price.IsNegative()) ||
		(in.Stock != nil && *in.Stock < 0) ||
		(in.MinStock != nil && *in.MinStock < 0) {
		return nil, domain.ErrInvalidInput
	}

	var updated *entity.Product
	err := uc.txRunner.Run(ctx, func(repos repository.TxRepos) error {
		product, err := repos.Products.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !product.IsActive() {
			return domain.NewProductNotFound(id)
		}
		now := time.Now().UTC()
		if in.Name != nil {
			product.Name = strings.TrimSpace(*in.Name)
		}
		if in.Category != nil {
			product.Category = strings.TrimSpace(*in.Category)
		}
		if in.Description != nil {
			product.Description = *in.Description
		}
		if in.Price != nil {
			product.Price = *in.Price
		}
		if in.MinStock != nil {
			product.MinStock = *in.MinStock
		}
		product.UpdatedAt = now
		if err := repos.Products.Update(ctx, product); err != nil {
			return err
		}
		if in.Stock != nil && *in.Stock != product.Stock {
			delta := *in.Stock - product.Stock
			logType := entity.LogTypeRestock
			if delta < 0 {
				logType = entity.LogTypeAdjustment
			}
			if _, err := uc.AdjustInTx(ctx, repos, product, delta, logType, noteManualUpdate, actorID, now); err != nil {
				return err
			}
		}
		updated = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SoftDeleteProduct pasa el producto a inactive. Stock e historial no se tocan. Idempotente.
func (uc *LedgerUseCase) SoftDeleteProduct(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrInvalidInput
	}
	return uc.txRunner.Run(ctx, func(repos repository.TxRepos) error {
		product, err := repos.Products.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if product == nil {
			return domain.NewProductNotFound(id)
		}
		if !product.IsActive() {
			return nil
		}
		product.Status = entity.ProductStatusInactive
		product.UpdatedAt = time.Now().UTC()
		return repos.Products.Update(ctx, product)
	})
}

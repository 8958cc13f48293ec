// Package analytics contiene las consultas de solo lectura sobre stock e historial:
// alertas de stock bajo, historial de inventario, snapshot del dashboard y conciliación.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/agromarket-api/internal/application/dto"
	"github.com/jhoicas/agromarket-api/internal/domain"
	"github.com/jhoicas/agromarket-api/internal/domain/entity"
	"github.com/jhoicas/agromarket-api/internal/domain/repository"
	"github.com/shopspring/decimal"
)

// DefaultRecentSales número de ventas recientes en el snapshot si no se configura.
const DefaultRecentSales = 5

const defaultHistoryLimit = 50

// StockQueryUseCase consultas read-only. No toma bloqueos: cada lectura ve el último
// estado confirmado y el snapshot puede mezclar instantes distintos.
type StockQueryUseCase struct {
	productRepo repository.ProductRepository
	logRepo     repository.InventoryLogRepository
	saleRepo    repository.SaleRepository
	recentSales int
}

// NewStockQueryUseCase construye el caso de uso. recentSales <= 0 usa DefaultRecentSales.
func NewStockQueryUseCase(
	productRepo repository.ProductRepository,
	logRepo repository.InventoryLogRepository,
	saleRepo repository.SaleRepository,
	recentSales int,
) *StockQueryUseCase {
	if recentSales <= 0 {
		recentSales = DefaultRecentSales
	}
	return &StockQueryUseCase{
		productRepo: productRepo,
		logRepo:     logRepo,
		saleRepo:    saleRepo,
		recentSales: recentSales,
	}
}

// ListLowStock productos activos con stock < min_stock, el más crítico primero.
// Cada llamada relee el estado actual.
func (uc *StockQueryUseCase) ListLowStock(ctx context.Context) ([]*entity.Product, error) {
	return uc.productRepo.ListLowStock(ctx)
}

// GetInventoryHistory historial del producto, más reciente primero.
// Los productos inactivos conservan su historial consultable.
func (uc *StockQueryUseCase) GetInventoryHistory(ctx context.Context, productID string, limit, offset int) ([]*entity.InventoryLogEntry, error) {
	if productID == "" || offset < 0 {
		return nil, domain.ErrInvalidInput
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	product, err := uc.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.NewProductNotFound(productID)
	}
	return uc.logRepo.ListByProduct(ctx, productID, limit, offset)
}

// ReconcileProduct compara el stock actual con Σ deltas del historial.
func (uc *StockQueryUseCase) ReconcileProduct(ctx context.Context, productID string) (*dto.StockReconciliationDTO, error) {
	if productID == "" {
		return nil, domain.ErrInvalidInput
	}
	product, err := uc.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.NewProductNotFound(productID)
	}
	logged, err := uc.logRepo.SumDeltasByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("conciliación: suma del historial: %w", err)
	}
	return &dto.StockReconciliationDTO{
		ProductID:    productID,
		CurrentStock: product.Stock,
		LoggedStock:  logged,
		Difference:   product.Stock - logged,
		Consistent:   product.Stock == logged,
	}, nil
}

// GetDashboardSnapshot arma el resumen del panel de administración.
//
// Cuatro lecturas en paralelo, sin bloqueo:
//  1. CountActive          → ActiveProducts
//  2. SumTotalByStatus     → CompletedRevenue
//  3. ListLowStock         → LowStockCount
//  4. ListRecent(N)        → RecentSales
func (uc *StockQueryUseCase) GetDashboardSnapshot(ctx context.Context) (*dto.DashboardSnapshotDTO, error) {
	type countResult struct {
		n   int
		err error
	}
	type revenueResult struct {
		total decimal.Decimal
		err   error
	}
	type recentResult struct {
		sales []*entity.Sale
		err   error
	}

	activeCh := make(chan countResult, 1)
	revenueCh := make(chan revenueResult, 1)
	lowCh := make(chan countResult, 1)
	recentCh := make(chan recentResult, 1)

	go func() {
		n, err := uc.productRepo.CountActive(ctx)
		activeCh <- countResult{n, err}
	}()
	go func() {
		total, err := uc.saleRepo.SumTotalByStatus(ctx, entity.SaleStatusCompleted)
		revenueCh <- revenueResult{total, err}
	}()
	go func() {
		low, err := uc.productRepo.ListLowStock(ctx)
		lowCh <- countResult{len(low), err}
	}()
	go func() {
		sales, err := uc.saleRepo.ListRecent(ctx, uc.recentSales)
		recentCh <- recentResult{sales, err}
	}()

	active := <-activeCh
	revenue := <-revenueCh
	low := <-lowCh
	recent := <-recentCh

	if active.err != nil {
		return nil, fmt.Errorf("dashboard: productos activos: %w", active.err)
	}
	if revenue.err != nil {
		return nil, fmt.Errorf("dashboard: ingresos: %w", revenue.err)
	}
	if low.err != nil {
		return nil, fmt.Errorf("dashboard: stock bajo: %w", low.err)
	}
	if recent.err != nil {
		return nil, fmt.Errorf("dashboard: ventas recientes: %w", recent.err)
	}

	summaries := make([]dto.SaleSummaryDTO, 0, len(recent.sales))
	for _, s := range recent.sales {
		summaries = append(summaries, dto.SaleSummaryDTO{
			ID:        s.ID,
			BuyerID:   s.BuyerID,
			Total:     s.Total,
			Status:    s.Status,
			CreatedAt: s.CreatedAt,
		})
	}
	return &dto.DashboardSnapshotDTO{
		ActiveProducts:   active.n,
		CompletedRevenue: revenue.total.Round(2),
		LowStockCount:    low.n,
		RecentSales:      summaries,
		GeneratedAt:      time.Now().UTC(),
	}, nil
}

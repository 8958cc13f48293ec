package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// DashboardSnapshotDTO respuesta de GET /api/dashboard/snapshot.
// Lecturas independientes sin bloqueo: los valores pueden no ser mutuamente consistentes.
type DashboardSnapshotDTO struct {
	ActiveProducts   int              `json:"active_products"`
	CompletedRevenue decimal.Decimal  `json:"completed_revenue"` // Σ total de ventas completed
	LowStockCount    int              `json:"low_stock_count"`
	RecentSales      []SaleSummaryDTO `json:"recent_sales"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

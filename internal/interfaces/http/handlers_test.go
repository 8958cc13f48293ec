package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/agromarket-api/internal/application/analytics"
	"github.com/jhoicas/agromarket-api/internal/application/dto"
	"github.com/jhoicas/agromarket-api/internal/application/inventory"
	"github.com/jhoicas/agromarket-api/internal/application/sales"
	"github.com/jhoicas/agromarket-api/internal/domain/entity"
	"github.com/jhoicas/agromarket-api/internal/domain/repository"
	"github.com/jhoicas/agromarket-api/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/agromarket-api/internal/interfaces/http"
	"github.com/jhoicas/agromarket-api/internal/metrics"
	pkgjwt "github.com/jhoicas/agromarket-api/pkg/jwt"
)

const (
	adminID = "admin-1"
	buyerID = "buyer-1"
)

type testAPI struct {
	app   *fiber.App
	store *memory.Store
	admin string
	buyer string
}

func newTestAPI(t *testing.T, opts ...memory.Option) *testAPI {
	t.Helper()
	store := memory.New(opts...)
	registry := prometheus.NewRegistry()
	ledger := inventory.NewLedgerUseCase(store, store.Products(), zerolog.Nop())
	coordinator := sales.NewSaleUseCase(store, ledger, store.Sales(), metrics.NewSalesMetrics(registry), zerolog.Nop())
	queries := analytics.NewStockQueryUseCase(store.Products(), store.InventoryLog(), store.Sales(), 5)

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Ledger:    ledger,
		Sales:     coordinator,
		Queries:   queries,
		JWTSecret: testJWTSecret,
		Gatherer:  registry,
	})

	admin, err := pkgjwt.Generate(testJWTSecret, adminID, pkgjwt.RoleAdmin, testIssuer, testExpMin)
	require.NoError(t, err)
	buyer, err := pkgjwt.Generate(testJWTSecret, buyerID, pkgjwt.RoleBuyer, testIssuer, testExpMin)
	require.NoError(t, err)
	return &testAPI{app: app, store: store, admin: "Bearer " + admin, buyer: "Bearer " + buyer}
}

func (a *testAPI) seed(id string, price int64, stock int) {
	now := time.Now().UTC()
	a.store.SeedProduct(&entity.Product{
		ID: id, Name: "Producto " + id, Category: "Agro", Price: decimal.NewFromInt(price),
		Stock: stock, MinStock: entity.DefaultMinStock, Status: entity.ProductStatusActive,
		CreatedAt: now, UpdatedAt: now,
	})
}

func (a *testAPI) do(t *testing.T, method, path, auth string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func saleBody(productID string, qty int) map[string]any {
	return map[string]any{
		"items":          []map[string]any{{"product_id": productID, "quantity": qty}},
		"payment_method": "card",
	}
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	resp := api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProducts_CrearSoloAdmin(t *testing.T) {
	api := newTestAPI(t)
	body := map[string]any{"name": "Café", "category": "Bebidas", "price": "15000", "stock": 20}

	resp := api.do(t, http.MethodPost, "/api/products", api.buyer, body)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = api.do(t, http.MethodPost, "/api/products", api.admin, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[dto.ProductResponse](t, resp)
	assert.Equal(t, 20, created.Stock)
	assert.Equal(t, entity.DefaultMinStock, created.MinStock)

	resp = api.do(t, http.MethodGet, "/api/products/"+created.ID, api.buyer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[dto.ProductResponse](t, resp)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(15000)))
}

func TestProducts_ValidacionYNoEncontrado(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(t, http.MethodPost, "/api/products", api.admin, map[string]any{"category": "X", "price": "1"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	verr := decode[dto.ValidationErrorResponse](t, resp)
	assert.Equal(t, "VALIDATION", verr.Code)
	assert.Equal(t, "required", verr.Fields["CreateProductRequest.Name"])

	resp = api.do(t, http.MethodGet, "/api/products/nope", api.admin, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "PRODUCT_NOT_FOUND", decode[dto.ErrorResponse](t, resp).Code)
}

func TestProducts_SoftDelete(t *testing.T) {
	api := newTestAPI(t)
	api.seed("p1", 1000, 5)

	resp := api.do(t, http.MethodDelete, "/api/products/p1", api.admin, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = api.do(t, http.MethodGet, "/api/products/p1", api.admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = api.do(t, http.MethodDelete, "/api/products/p1", api.admin, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAdjustStock(t *testing.T) {
	api := newTestAPI(t)
	api.seed("p1", 1000, 5)

	resp := api.do(t, http.MethodPatch, "/api/products/p1/stock", api.admin, map[string]any{"delta": 7, "type": "restock"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	change := decode[dto.StockChangeResponse](t, resp)
	assert.Equal(t, 5, change.PreviousStock)
	assert.Equal(t, 12, change.NewStock)

	resp = api.do(t, http.MethodPatch, "/api/products/p1/stock", api.admin, map[string]any{"delta": -20, "type": "adjustment"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	stockErr := decode[dto.StockErrorResponse](t, resp)
	assert.Equal(t, "INSUFFICIENT_STOCK", stockErr.Code)
	assert.Equal(t, 20, stockErr.Requested)
	assert.Equal(t, 12, stockErr.Available)

	resp = api.do(t, http.MethodPatch, "/api/products/p1/stock", api.admin, map[string]any{"delta": -2, "type": "restock"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "restock no admite delta negativo")
	resp = api.do(t, http.MethodPatch, "/api/products/p1/stock", api.admin, map[string]any{"delta": 2, "type": "initial"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/api/products/p1/inventory-log?limit=10", api.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decode[dto.InventoryLogListResponse](t, resp)
	require.Len(t, history.Items, 2)
	assert.Equal(t, entity.LogTypeRestock, history.Items[0].Type)
	assert.Equal(t, adminID, history.Items[0].CreatedBy)

	resp = api.do(t, http.MethodGet, "/api/products/p1/inventory-log?limit=500", api.admin, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/api/products/p1/reconciliation", api.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[dto.StockReconciliationDTO](t, resp).Consistent)
}

func TestSales_CicloCompleto(t *testing.T) {
	api := newTestAPI(t)
	api.seed("p1", 2500, 10)

	resp := api.do(t, http.MethodPost, "/api/sales", api.buyer, saleBody("p1", 3))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sale := decode[dto.SaleResponse](t, resp)
	assert.Equal(t, buyerID, sale.BuyerID)
	assert.Equal(t, entity.SaleStatusPending, sale.Status)
	assert.True(t, sale.Total.Equal(decimal.NewFromInt(7500)))
	require.Len(t, sale.Items, 1)

	resp = api.do(t, http.MethodPost, "/api/sales/"+sale.ID+"/payment", api.buyer,
		map[string]any{"outcome": "completed"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "el comprador no confirma su propio pago")

	resp = api.do(t, http.MethodPost, "/api/sales/"+sale.ID+"/payment", api.admin,
		map[string]any{"outcome": "completed", "transaction_ref": "tx-99"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "tx-99", decode[dto.SaleResponse](t, resp).TransactionRef)

	resp = api.do(t, http.MethodPost, "/api/sales/"+sale.ID+"/payment", api.admin,
		map[string]any{"outcome": "failed"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "INVALID_STATE", decode[dto.ErrorResponse](t, resp).Code)

	resp = api.do(t, http.MethodPost, "/api/sales/"+sale.ID+"/refund", api.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, entity.SaleStatusRefunded, decode[dto.SaleResponse](t, resp).Status)

	resp = api.do(t, http.MethodGet, "/api/sales/"+sale.ID, api.buyer, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	other, err := pkgjwt.Generate(testJWTSecret, "buyer-2", pkgjwt.RoleBuyer, testIssuer, testExpMin)
	require.NoError(t, err)
	resp = api.do(t, http.MethodGet, "/api/sales/"+sale.ID, "Bearer "+other, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "otro comprador no ve la venta")

	resp = api.do(t, http.MethodGet, "/api/products/p1", api.buyer, nil)
	assert.Equal(t, 10, decode[dto.ProductResponse](t, resp).Stock)
}

func TestSales_Errores(t *testing.T) {
	api := newTestAPI(t)
	api.seed("p1", 2500, 2)

	resp := api.do(t, http.MethodPost, "/api/sales", api.buyer, saleBody("p1", 3))
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	stockErr := decode[dto.StockErrorResponse](t, resp)
	assert.Equal(t, "p1", stockErr.ProductID)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)

	resp = api.do(t, http.MethodPost, "/api/sales", api.buyer, saleBody("nope", 1))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = api.do(t, http.MethodPost, "/api/sales", api.buyer, map[string]any{"items": []any{}, "payment_method": "card"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.do(t, http.MethodPost, "/api/sales", api.buyer, saleBody("p1", 0))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.do(t, http.MethodPost, "/api/sales", "", saleBody("p1", 1))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/api/sales/nope", api.admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	api.store.SetFault(memory.FailOn("sale.create"))
	resp = api.do(t, http.MethodPost, "/api/sales", api.buyer, saleBody("p1", 1))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	api.store.SetFault(nil)

	resp = api.do(t, http.MethodGet, "/api/products/p1", api.buyer, nil)
	assert.Equal(t, 2, decode[dto.ProductResponse](t, resp).Stock)
}

func TestSales_BloqueoOcupadoDevuelve503(t *testing.T) {
	api := newTestAPI(t, memory.WithLockTimeout(50*time.Millisecond))
	api.seed("p1", 2500, 5)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- api.store.Run(context.Background(), func(tx repository.TxRepos) error {
			if _, err := tx.Products.GetForUpdate(context.Background(), "p1"); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	resp := api.do(t, http.MethodPost, "/api/sales", api.buyer, saleBody("p1", 1))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))

	close(release)
	require.NoError(t, <-done)
}

func TestDashboardYStockBajo(t *testing.T) {
	api := newTestAPI(t)
	api.seed("p1", 1000, 12)
	api.seed("p2", 1000, 3)

	resp := api.do(t, http.MethodPost, "/api/sales", api.buyer, saleBody("p1", 4))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/api/inventory/low-stock", api.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	low := decode[dto.LowStockResponse](t, resp)
	require.Equal(t, 2, low.Count)
	assert.Equal(t, "p2", low.Items[0].ID)
	assert.True(t, low.Items[0].LowStock)

	resp = api.do(t, http.MethodGet, "/api/inventory/low-stock", api.buyer, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/api/dashboard/snapshot", api.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decode[dto.DashboardSnapshotDTO](t, resp)
	assert.Equal(t, 2, snap.ActiveProducts)
	assert.Equal(t, 2, snap.LowStockCount)
	assert.Len(t, snap.RecentSales, 1)
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.seed("p1", 1000, 5)
	resp := api.do(t, http.MethodPost, "/api/sales", api.buyer, saleBody("p1", 1))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "agromarket_sales_created_total 1")
}

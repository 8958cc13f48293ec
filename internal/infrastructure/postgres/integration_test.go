package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/agromarket-api/internal/application/dto"
	"github.com/jhoicas/agromarket-api/internal/application/inventory"
	"github.com/jhoicas/agromarket-api/internal/application/sales"
	"github.com/jhoicas/agromarket-api/internal/domain"
	"github.com/jhoicas/agromarket-api/internal/domain/entity"
	"github.com/jhoicas/agromarket-api/internal/domain/repository"
	"github.com/jhoicas/agromarket-api/internal/infrastructure/postgres"
	"github.com/jhoicas/agromarket-api/pkg/config"
)

// Requiere una base PostgreSQL desechable: TEST_DATABASE_URL=postgres://... go test ./...
func openPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL no definido")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := postgres.NewPool(ctx, config.DBConfig{DatabaseURL: url, AutoMigrate: true})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func createProduct(t *testing.T, ledger *inventory.LedgerUseCase, name string, stock int) *entity.Product {
	t.Helper()
	p, err := ledger.CreateProduct(context.Background(), dto.CreateProductRequest{
		Name: name + " " + uuid.NewString()[:8], Category: "Agro", Price: decimal.RequireFromString("2500.50"), Stock: stock,
	}, "it-admin")
	require.NoError(t, err)
	return p
}

func TestPostgres_CicloDeVenta(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()
	runner := postgres.NewTxRunner(pool, time.Second)
	repos := postgres.Repos(pool)
	ledger := inventory.NewLedgerUseCase(runner, repos.Products, zerolog.Nop())
	coordinator := sales.NewSaleUseCase(runner, ledger, repos.Sales, nil, zerolog.Nop())

	a := createProduct(t, ledger, "Café", 10)
	b := createProduct(t, ledger, "Miel", 3)

	sale, err := coordinator.CreateSale(ctx, sales.CreateSaleInput{
		BuyerID: "buyer-it", PaymentMethod: "card",
		Items: []sales.CartLine{{ProductID: b.ID, Quantity: 1}, {ProductID: a.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.True(t, sale.Total.Equal(decimal.RequireFromString("7501.50")), sale.Total.String())
	require.Len(t, sale.Items, 2)
	assert.Equal(t, b.ID, sale.Items[0].ProductID)

	stock, err := ledger.GetStock(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, stock)

	history, err := repos.InventoryLog.ListByProduct(ctx, a.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, entity.LogTypeSale, history[0].Type)
	assert.Equal(t, entity.LogTypeInitial, history[1].Type)

	_, err = coordinator.ConfirmPayment(ctx, sale.ID, sales.OutcomeCompleted, "tx-it")
	require.NoError(t, err)
	refunded, err := coordinator.RefundSale(ctx, sale.ID, "it-admin")
	require.NoError(t, err)
	assert.Equal(t, entity.SaleStatusRefunded, refunded.Status)

	stock, _ = ledger.GetStock(ctx, a.ID)
	assert.Equal(t, 10, stock)
	sum, err := repos.InventoryLog.SumDeltasByProduct(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, sum)
}

func TestPostgres_StockInsuficienteNoEscribe(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()
	runner := postgres.NewTxRunner(pool, time.Second)
	repos := postgres.Repos(pool)
	ledger := inventory.NewLedgerUseCase(runner, repos.Products, zerolog.Nop())
	coordinator := sales.NewSaleUseCase(runner, ledger, repos.Sales, nil, zerolog.Nop())

	a := createProduct(t, ledger, "Panela", 5)
	b := createProduct(t, ledger, "Cacao", 1)

	_, err := coordinator.CreateSale(ctx, sales.CreateSaleInput{
		BuyerID: "buyer-it", PaymentMethod: "cash",
		Items: []sales.CartLine{{ProductID: a.ID, Quantity: 2}, {ProductID: b.ID, Quantity: 2}},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	stock, _ := ledger.GetStock(ctx, a.ID)
	assert.Equal(t, 5, stock)
	history, _ := repos.InventoryLog.ListByProduct(ctx, a.ID, 10, 0)
	assert.Len(t, history, 1)
}

func TestPostgres_LockTimeoutDevuelveBusy(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()
	holder := postgres.NewTxRunner(pool, time.Second)
	impatient := postgres.NewTxRunner(pool, 100*time.Millisecond)
	repos := postgres.Repos(pool)
	ledger := inventory.NewLedgerUseCase(holder, repos.Products, zerolog.Nop())
	p := createProduct(t, ledger, "Quinua", 5)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- holder.Run(ctx, func(tx repository.TxRepos) error {
			if _, err := tx.Products.GetForUpdate(ctx, p.ID); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	blocked := inventory.NewLedgerUseCase(impatient, repos.Products, zerolog.Nop())
	_, err := blocked.AdjustStock(ctx, inventory.AdjustStockInput{ProductID: p.ID, Delta: 1, Type: entity.LogTypeRestock})
	assert.ErrorIs(t, err, domain.ErrBusy)

	close(release)
	require.NoError(t, <-done)
}

func TestPostgres_Outbox(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()
	repos := postgres.Repos(pool)

	msg := &entity.OutboxMessage{
		ID: uuid.NewString(), AggregateType: entity.AggregateSale, AggregateID: uuid.NewString(),
		EventType: entity.EventSaleCreated, Payload: []byte(`{"ok":true}`), CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repos.Outbox.Enqueue(ctx, msg))
	require.NoError(t, repos.Outbox.MarkSent(ctx, msg.ID))
	assert.ErrorIs(t, repos.Outbox.MarkSent(ctx, uuid.NewString()), domain.ErrNotFound)
}

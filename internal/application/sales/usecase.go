package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jhoicas/agromarket-api/internal/application/inventory"
	"github.com/jhoicas/agromarket-api/internal/domain"
	"github.com/jhoicas/agromarket-api/internal/domain/entity"
	"github.com/jhoicas/agromarket-api/internal/domain/repository"
	"github.com/jhoicas/agromarket-api/internal/metrics"
)

// Resultados de pago aceptados por ConfirmPayment.
const (
	OutcomeCompleted = entity.SaleStatusCompleted
	OutcomeFailed    = entity.SaleStatusFailed
)

const tracerName = "github.com/jhoicas/agromarket-api/sales"

// SaleUseCase coordina carrito → validación → descuento de stock → log → venta + ítems,
// todo en una sola transacción. También confirma pagos y reembolsa ventas.
type SaleUseCase struct {
	txRunner inventory.TxRunner
	ledger   *inventory.LedgerUseCase
	saleRepo repository.SaleRepository
	metrics  *metrics.SalesMetrics
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewSaleUseCase construye el coordinador. saleRepo se usa para lecturas fuera de transacción.
// salesMetrics puede ser nil.
func NewSaleUseCase(
	txRunner inventory.TxRunner,
	ledger *inventory.LedgerUseCase,
	saleRepo repository.SaleRepository,
	salesMetrics *metrics.SalesMetrics,
	logger zerolog.Logger,
) *SaleUseCase {
	return &SaleUseCase{
		txRunner: txRunner,
		ledger:   ledger,
		saleRepo: saleRepo,
		metrics:  salesMetrics,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// CreateSale convierte el carrito en una venta pending.
// Bloquea los productos en orden ascendente de ID; si alguno no existe, está inactivo
// o no alcanza el stock, no se escribe nada.
func (uc *SaleUseCase) CreateSale(ctx context.Context, input CreateSaleInput) (sale *entity.Sale, err error) {
	ctx, span := uc.tracer.Start(ctx, "sales.create_sale")
	defer span.End()
	start := time.Now()
	defer func() { uc.finish(span, "create_sale", start, err) }()

	lines, err := input.normalize()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("sale.buyer_id", input.BuyerID),
		attribute.Int("sale.lines", len(lines)),
	)

	now := time.Now().UTC()
	sale = &entity.Sale{
		ID:            uuid.New().String(),
		BuyerID:       input.BuyerID,
		PaymentMethod: input.PaymentMethod,
		Status:        entity.SaleStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = uc.txRunner.Run(ctx, func(repos repository.TxRepos) error {
		locked, err := repos.Products.GetManyForUpdate(ctx, productIDs(lines))
		if err != nil {
			return err
		}
		// Validar todo el carrito antes de escribir
		for _, l := range lines {
			p, ok := locked[l.ProductID]
			if !ok || !p.IsActive() {
				return domain.NewProductNotFound(l.ProductID)
			}
			if l.Quantity > p.Stock {
				return &domain.InsufficientStockError{ProductID: l.ProductID, Requested: l.Quantity, Available: p.Stock}
			}
		}

		// Snapshots de nombre y precio tomados con la fila bloqueada
		items := make([]*entity.SaleItem, 0, len(lines))
		total := decimal.Zero
		for i, l := range lines {
			p := locked[l.ProductID]
			subtotal := p.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
			items = append(items, &entity.SaleItem{
				ID:          uuid.New().String(),
				SaleID:      sale.ID,
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    l.Quantity,
				UnitPrice:   p.Price,
				Subtotal:    subtotal,
				Position:    i,
			})
			total = total.Add(subtotal)
		}
		sale.Total = total
		sale.Items = items

		note := "Venta " + sale.ID
		for _, l := range lines {
			if _, err := uc.ledger.AdjustInTx(ctx, repos, locked[l.ProductID], -l.Quantity, entity.LogTypeSale, note, input.BuyerID, now); err != nil {
				return err
			}
		}
		if err := repos.Sales.Create(ctx, sale); err != nil {
			return err
		}
		for _, it := range items {
			if err := repos.Sales.CreateItem(ctx, it); err != nil {
				return err
			}
		}
		return uc.enqueue(ctx, repos, entity.EventSaleCreated, sale, now)
	})
	if err != nil {
		uc.logRejection(err, "venta rechazada", input.BuyerID, "")
		return nil, err
	}

	uc.metrics.RecordSaleCreated()
	span.SetAttributes(attribute.String("sale.id", sale.ID), attribute.String("sale.total", sale.Total.String()))
	uc.logger.Info().
		Str("sale_id", sale.ID).
		Str("buyer_id", sale.BuyerID).
		Str("total", sale.Total.String()).
		Int("items", len(sale.Items)).
		Msg("venta creada")
	return sale, nil
}

// ConfirmPayment aplica el resultado del pago a una venta pending.
// Repetir el mismo resultado es un no-op; cualquier otra transición es InvalidState.
// Un pago fallido devuelve las unidades al stock con entradas return.
func (uc *SaleUseCase) ConfirmPayment(ctx context.Context, saleID, outcome, transactionRef string) (sale *entity.Sale, err error) {
	ctx, span := uc.tracer.Start(ctx, "sales.confirm_payment")
	defer span.End()
	start := time.Now()
	defer func() { uc.finish(span, "confirm_payment", start, err) }()

	if saleID == "" || (outcome != OutcomeCompleted && outcome != OutcomeFailed) {
		return nil, domain.ErrInvalidInput
	}
	span.SetAttributes(attribute.String("sale.id", saleID), attribute.String("payment.outcome", outcome))

	applied := false
	err = uc.txRunner.Run(ctx, func(repos repository.TxRepos) error {
		current, err := repos.Sales.GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrSaleNotFound
		}
		if current.Items, err = repos.Sales.ListItems(ctx, saleID); err != nil {
			return err
		}
		sale = current
		if current.Status == outcome {
			return nil
		}
		if current.Status != entity.SaleStatusPending {
			return fmt.Errorf("%w: venta %s en estado %s", domain.ErrInvalidState, saleID, current.Status)
		}

		now := time.Now().UTC()
		if outcome == OutcomeFailed {
			if err := uc.restoreStock(ctx, repos, current, entity.LogTypeReturn, "Pago fallido venta "+saleID, "", now); err != nil {
				return err
			}
		}
		current.Status = outcome
		current.TransactionRef = transactionRef
		current.UpdatedAt = now
		if err := repos.Sales.UpdateStatus(ctx, current); err != nil {
			return err
		}
		eventType := entity.EventSaleCompleted
		if outcome == OutcomeFailed {
			eventType = entity.EventSaleFailed
		}
		applied = true
		return uc.enqueue(ctx, repos, eventType, current, now)
	})
	if err != nil {
		uc.logRejection(err, "confirmación de pago rechazada", "", saleID)
		return nil, err
	}
	if applied {
		uc.metrics.RecordPayment(outcome)
		uc.logger.Info().
			Str("sale_id", saleID).
			Str("status", outcome).
			Str("transaction_ref", transactionRef).
			Msg("pago confirmado")
	}
	return sale, nil
}

// RefundSale reembolsa una venta completed: devuelve cada ítem al stock (entradas refund,
// permitidas sobre productos inactivos) y la deja en refunded.
func (uc *SaleUseCase) RefundSale(ctx context.Context, saleID, actorID string) (sale *entity.Sale, err error) {
	ctx, span := uc.tracer.Start(ctx, "sales.refund_sale")
	defer span.End()
	start := time.Now()
	defer func() { uc.finish(span, "refund_sale", start, err) }()

	if saleID == "" {
		return nil, domain.ErrInvalidInput
	}
	span.SetAttributes(attribute.String("sale.id", saleID))

	err = uc.txRunner.Run(ctx, func(repos repository.TxRepos) error {
		current, err := repos.Sales.GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrSaleNotFound
		}
		if current.Status != entity.SaleStatusCompleted {
			return fmt.Errorf("%w: venta %s en estado %s", domain.ErrInvalidState, saleID, current.Status)
		}
		if current.Items, err = repos.Sales.ListItems(ctx, saleID); err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := uc.restoreStock(ctx, repos, current, entity.LogTypeRefund, "Reembolso venta "+saleID, actorID, now); err != nil {
			return err
		}
		current.Status = entity.SaleStatusRefunded
		current.UpdatedAt = now
		if err := repos.Sales.UpdateStatus(ctx, current); err != nil {
			return err
		}
		sale = current
		return uc.enqueue(ctx, repos, entity.EventSaleRefunded, current, now)
	})
	if err != nil {
		uc.logRejection(err, "reembolso rechazado", "", saleID)
		return nil, err
	}
	uc.metrics.RecordRefund()
	uc.logger.Info().Str("sale_id", saleID).Str("actor_id", actorID).Msg("venta reembolsada")
	return sale, nil
}

// GetSale obtiene la venta con sus ítems en orden de carrito.
func (uc *SaleUseCase) GetSale(ctx context.Context, saleID string) (*entity.Sale, error) {
	if saleID == "" {
		return nil, domain.ErrInvalidInput
	}
	sale, err := uc.saleRepo.GetByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, domain.ErrSaleNotFound
	}
	if sale.Items, err = uc.saleRepo.ListItems(ctx, saleID); err != nil {
		return nil, err
	}
	return sale, nil
}

// restoreStock bloquea los productos de la venta (orden ascendente) y suma cada cantidad.
// No exige que el producto siga activo.
func (uc *SaleUseCase) restoreStock(
	ctx context.Context,
	repos repository.TxRepos,
	sale *entity.Sale,
	logType, note, actorID string,
	now time.Time,
) error {
	ids := make([]string, 0, len(sale.Items))
	for _, it := range sale.Items {
		ids = append(ids, it.ProductID)
	}
	locked, err := repos.Products.GetManyForUpdate(ctx, ids)
	if err != nil {
		return err
	}
	for _, it := range sale.Items {
		p, ok := locked[it.ProductID]
		if !ok {
			return domain.NewProductNotFound(it.ProductID)
		}
		if _, err := uc.ledger.AdjustInTx(ctx, repos, p, it.Quantity, logType, note, actorID, now); err != nil {
			return err
		}
	}
	return nil
}

func (uc *SaleUseCase) enqueue(ctx context.Context, repos repository.TxRepos, eventType string, sale *entity.Sale, now time.Time) error {
	msg, err := newSaleMessage(eventType, sale, now)
	if err != nil {
		return err
	}
	return repos.Outbox.Enqueue(ctx, msg)
}

func (uc *SaleUseCase) finish(span trace.Span, operation string, start time.Time, err error) {
	uc.metrics.ObserveDuration(operation, time.Since(start))
	if err != nil {
		uc.metrics.RecordRejected(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

func (uc *SaleUseCase) logRejection(err error, msg, buyerID, saleID string) {
	ev := uc.logger.Warn()
	if !domain.IsCallerError(err) {
		ev = uc.logger.Error()
	}
	ev = ev.Err(err)
	if buyerID != "" {
		ev = ev.Str("buyer_id", buyerID)
	}
	if saleID != "" {
		ev = ev.Str("sale_id", saleID)
	}
	var stockErr *domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		ev = ev.Str("product_id", stockErr.ProductID).
			Int("requested", stockErr.Requested).
			Int("available", stockErr.Available)
	}
	var notFound *domain.ProductNotFoundError
	if errors.As(err, &notFound) {
		ev = ev.Str("product_id", notFound.ProductID)
	}
	ev.Msg(msg)
}

// Package metrics agrupa las métricas Prometheus del núcleo de ventas.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/agromarket-api/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Motivos de rechazo de una venta (label reason).
const (
	ReasonInvalidInput      = "invalid_input"
	ReasonNotFound          = "not_found"
	ReasonInsufficientStock = "insufficient_stock"
	ReasonInvalidState      = "invalid_state"
	ReasonBusy              = "busy"
	ReasonPersistence       = "persistence"
	ReasonOther             = "other"
)

// SalesMetrics métricas de ventas, pagos, reembolsos y outbox.
// Un *SalesMetrics nil es válido: todas las operaciones son no-op.
type SalesMetrics struct {
	salesCreated   prometheus.Counter
	salesRejected  *prometheus.CounterVec
	payments       *prometheus.CounterVec
	salesRefunded  prometheus.Counter
	duration       *prometheus.HistogramVec
	outboxSent     prometheus.Counter
	outboxFailed   prometheus.Counter
	outboxAttempts prometheus.Counter
}

// NewSalesMetrics registra las métricas en registerer (DefaultRegisterer si es nil).
// Registrar dos veces devuelve los colectores existentes.
func NewSalesMetrics(registerer prometheus.Registerer) *SalesMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &SalesMetrics{
		salesCreated: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agromarket_sales_created_total",
			Help: "Ventas confirmadas (commit) en estado pending",
		})),
		salesRejected: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agromarket_sales_rejected_total",
			Help: "Operaciones de venta rechazadas por motivo",
		}, []string{"reason"})),
		payments: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agromarket_sale_payments_total",
			Help: "Confirmaciones de pago aplicadas por resultado",
		}, []string{"outcome"})),
		salesRefunded: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agromarket_sales_refunded_total",
			Help: "Ventas reembolsadas",
		})),
		duration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agromarket_sale_operation_duration_seconds",
			Help:    "Duración de las operaciones del coordinador de ventas",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"})),
		outboxSent: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agromarket_outbox_sent_total",
			Help: "Eventos del outbox publicados",
		})),
		outboxFailed: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agromarket_outbox_failed_total",
			Help: "Eventos del outbox marcados como fallidos",
		})),
		outboxAttempts: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agromarket_outbox_publish_errors_total",
			Help: "Intentos de publicación fallidos",
		})),
	}
}

func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) C {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			existing, ok := already.ExistingCollector.(C)
			if !ok {
				panic(fmt.Sprintf("collector ya registrado con otro tipo: %v", err))
			}
			return existing
		}
		panic(fmt.Sprintf("registrar collector: %v", err))
	}
	return collector
}

// ReasonFor clasifica un error del dominio en un label reason.
func ReasonFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return ReasonInvalidInput
	case errors.Is(err, domain.ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return ReasonInsufficientStock
	case errors.Is(err, domain.ErrInvalidState):
		return ReasonInvalidState
	case errors.Is(err, domain.ErrBusy):
		return ReasonBusy
	case errors.Is(err, domain.ErrPersistence):
		return ReasonPersistence
	}
	return ReasonOther
}

func (m *SalesMetrics) RecordSaleCreated() {
	if m == nil {
		return
	}
	m.salesCreated.Inc()
}

// RecordRejected cuenta un rechazo con el motivo derivado de err.
func (m *SalesMetrics) RecordRejected(err error) {
	if m == nil || err == nil {
		return
	}
	m.salesRejected.WithLabelValues(ReasonFor(err)).Inc()
}

func (m *SalesMetrics) RecordPayment(outcome string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(outcome).Inc()
}

func (m *SalesMetrics) RecordRefund() {
	if m == nil {
		return
	}
	m.salesRefunded.Inc()
}

// ObserveDuration registra la duración de una operación (create_sale, confirm_payment, refund_sale).
func (m *SalesMetrics) ObserveDuration(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *SalesMetrics) RecordOutboxSent() {
	if m == nil {
		return
	}
	m.outboxSent.Inc()
}

func (m *SalesMetrics) RecordOutboxFailed() {
	if m == nil {
		return
	}
	m.outboxFailed.Inc()
}

func (m *SalesMetrics) RecordOutboxPublishError() {
	if m == nil {
		return
	}
	m.outboxAttempts.Inc()
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jhoicas/agromarket-api/internal/application/analytics"
	"github.com/jhoicas/agromarket-api/internal/application/inventory"
	"github.com/jhoicas/agromarket-api/internal/application/outbox"
	"github.com/jhoicas/agromarket-api/internal/application/sales"
	"github.com/jhoicas/agromarket-api/internal/domain/repository"
	"github.com/jhoicas/agromarket-api/internal/infrastructure/kafka"
	"github.com/jhoicas/agromarket-api/internal/infrastructure/memory"
	"github.com/jhoicas/agromarket-api/internal/infrastructure/postgres"
	"github.com/jhoicas/agromarket-api/internal/infrastructure/redislock"
	httpRouter "github.com/jhoicas/agromarket-api/internal/interfaces/http"
	"github.com/jhoicas/agromarket-api/internal/metrics"
	"github.com/jhoicas/agromarket-api/pkg/config"
	"github.com/jhoicas/agromarket-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Almacenamiento: PostgreSQL si está configurado; si no, store en memoria (demo/local).
	var (
		txRunner inventory.TxRunner
		repos    repository.TxRepos
	)
	if cfg.DB.Enabled() {
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		txRunner = postgres.NewTxRunner(pool, cfg.DB.LockTimeout)
		repos = postgres.Repos(pool)
	} else {
		log.Warn().Msg("sin DATABASE_URL ni DB_HOST: usando store en memoria, los datos no persisten")
		store := memory.New(memory.WithLockTimeout(cfg.DB.LockTimeout))
		txRunner = store
		repos = repository.TxRepos{
			Products:     store.Products(),
			InventoryLog: store.InventoryLog(),
			Sales:        store.Sales(),
			Outbox:       store.Outbox(),
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	salesMetrics := metrics.NewSalesMetrics(registry)

	ledgerUC := inventory.NewLedgerUseCase(txRunner, repos.Products, log.Component("inventory"))
	saleUC := sales.NewSaleUseCase(txRunner, ledgerUC, repos.Sales, salesMetrics, log.Component("sales"))
	queryUC := analytics.NewStockQueryUseCase(repos.Products, repos.InventoryLog, repos.Sales, cfg.Sales.RecentLimit)

	// Outbox → Kafka. Sin brokers los eventos quedan pending en la tabla.
	workerDone := make(chan struct{})
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewSyncProducer(cfg.Kafka.Brokers, cfg.Kafka.ClientID)
		if err != nil {
			log.Fatal().Err(err).Msg("productor Kafka")
		}
		publisher := kafka.NewPublisher(producer, cfg.Kafka.Topic, log.Component("kafka"))
		defer func() { _ = publisher.Close() }()

		opts := []outbox.Option{
			outbox.WithPollInterval(cfg.Outbox.PollInterval),
			outbox.WithBatchSize(cfg.Outbox.BatchSize),
			outbox.WithMaxAttempts(cfg.Outbox.MaxAttempts),
			outbox.WithLogger(log.Component("outbox")),
			outbox.WithMetrics(salesMetrics),
		}
		if cfg.Redis.Addr != "" {
			rdb, err := redislock.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				log.Fatal().Err(err).Msg("conexión a Redis")
			}
			defer func() { _ = rdb.Close() }()
			opts = append(opts, outbox.WithLocker(redislock.New(rdb)))
		} else {
			log.Warn().Msg("sin REDIS_ADDR: el outbox asume una sola réplica publicando")
		}

		worker := outbox.NewWorker(repos.Outbox, publisher, opts...)
		go func() {
			defer close(workerDone)
			worker.Run(ctx)
		}()
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("outbox worker iniciado")
	} else {
		close(workerDone)
		log.Warn().Msg("sin KAFKA_BROKERS: el outbox no se publica")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "AgroMarket API",
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		Ledger:    ledgerUC,
		Sales:     saleUC,
		Queries:   queryUC,
		JWTSecret: cfg.JWT.Secret,
		Gatherer:  registry,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	stop()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("outbox worker no terminó a tiempo")
	}

	log.Info().Msg("aplicación detenida")
}

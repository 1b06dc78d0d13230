package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmcarrillo/fogata-backend/api/routes"
	"github.com/jmcarrillo/fogata-backend/internal/admission"
	"github.com/jmcarrillo/fogata-backend/internal/allocation"
	"github.com/jmcarrillo/fogata-backend/internal/catalog"
	"github.com/jmcarrillo/fogata-backend/internal/ledger"
	"github.com/jmcarrillo/fogata-backend/internal/notifications"
	"github.com/jmcarrillo/fogata-backend/internal/orders"
	"github.com/jmcarrillo/fogata-backend/internal/production"
	product "github.com/jmcarrillo/fogata-backend/internal/products"
	"github.com/jmcarrillo/fogata-backend/internal/purchases"
	"github.com/jmcarrillo/fogata-backend/internal/releases"
	paymentswebhook "github.com/jmcarrillo/fogata-backend/internal/webhooks/payments"
	"github.com/jmcarrillo/fogata-backend/pkg/config"
	"github.com/jmcarrillo/fogata-backend/pkg/db"
	"github.com/jmcarrillo/fogata-backend/pkg/logger"
	"github.com/jmcarrillo/fogata-backend/pkg/metrics"
	"github.com/jmcarrillo/fogata-backend/pkg/migrate"
	"github.com/jmcarrillo/fogata-backend/pkg/outbox"
	"github.com/jmcarrillo/fogata-backend/pkg/outbox/idempotency"
	"github.com/jmcarrillo/fogata-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	allocMetrics := metrics.NewAllocationMetrics(registry)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	ledgerRepo := ledger.NewRepository(dbClient.DB())
	releaseRepo := releases.NewRepository(dbClient.DB())
	recordsRepo := allocation.NewRecordsRepository(dbClient.DB())
	productRepo := product.NewRepository(dbClient.DB())

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		fatal(logg, "failed to create catalog service", err)
	}

	admissionService, err := admission.NewService(catalogService, catalogService, ledgerRepo)
	if err != nil {
		fatal(logg, "failed to create admission service", err)
	}

	releaseService, err := releases.NewService(releaseRepo, dbClient)
	if err != nil {
		fatal(logg, "failed to create release service", err)
	}

	allocator, err := allocation.NewAllocator(allocation.AllocatorParams{
		Ledger:          ledgerRepo,
		Releases:        releaseRepo,
		Records:         recordsRepo,
		Outbox:          outboxService,
		Metrics:         allocMetrics,
		Logger:          logg,
		MaxDebitRetries: cfg.Allocation.MaxDebitRetries,
	})
	if err != nil {
		fatal(logg, "failed to create allocator", err)
	}

	compensator, err := allocation.NewCompensator(allocation.CompensatorParams{
		Ledger:   ledgerRepo,
		Releases: releaseRepo,
		Records:  recordsRepo,
		Outbox:   outboxService,
		Metrics:  allocMetrics,
		Logger:   logg,
	})
	if err != nil {
		fatal(logg, "failed to create compensator", err)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:      orders.NewRepository(dbClient.DB()),
		Products:  productRepo,
		Tx:        dbClient,
		Admission: admissionService,
		Releases:  releaseService,
		Settler:   allocator,
		Reverser:  compensator,
		Outbox:    outboxService,
		Logger:    logg,
	})
	if err != nil {
		fatal(logg, "failed to create orders service", err)
	}

	productionService, err := production.NewService(production.ServiceParams{
		Repo:      production.NewRepository(dbClient.DB()),
		Products:  productRepo,
		Recipes:   catalogService,
		Allocator: allocator,
		Reverser:  compensator,
		Tx:        dbClient,
		Outbox:    outboxService,
		Logger:    logg,
	})
	if err != nil {
		fatal(logg, "failed to create production service", err)
	}

	purchaseService, err := purchases.NewService(purchases.ServiceParams{
		Repo:   purchases.NewRepository(dbClient.DB()),
		Ledger: ledgerRepo,
		Items:  catalogService,
		Tx:     dbClient,
		Outbox: outboxService,
		Logger: logg,
	})
	if err != nil {
		fatal(logg, "failed to create purchase service", err)
	}

	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		fatal(logg, "failed to create notification service", err)
	}

	idempotencyManager, err := idempotency.NewManager(redisClient, cfg.Eventing.PaymentIdempotencyTTL)
	if err != nil {
		fatal(logg, "failed to create idempotency manager", err)
	}

	paymentsWebhook, err := paymentswebhook.NewService(paymentswebhook.ServiceParams{
		Orders:      ordersService,
		Idempotency: idempotencyManager,
		Logger:      logg,
	})
	if err != nil {
		fatal(logg, "failed to create payments webhook service", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Metrics:       registry,
			Catalog:       catalogService,
			Products:      productRepo,
			Purchases:     purchaseService,
			Orders:        ordersService,
			Production:    productionService,
			Notifications: notificationService,
			PaymentsWeb:   paymentsWebhook,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func fatal(logg *logger.Logger, msg string, err error) {
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}

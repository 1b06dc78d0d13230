package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmcarrillo/fogata-backend/api/controllers"
	webhookcontrollers "github.com/jmcarrillo/fogata-backend/api/controllers/webhooks"
	"github.com/jmcarrillo/fogata-backend/api/middleware"
	"github.com/jmcarrillo/fogata-backend/internal/catalog"
	notificationsvc "github.com/jmcarrillo/fogata-backend/internal/notifications"
	ordersvc "github.com/jmcarrillo/fogata-backend/internal/orders"
	productionsvc "github.com/jmcarrillo/fogata-backend/internal/production"
	product "github.com/jmcarrillo/fogata-backend/internal/products"
	purchasesvc "github.com/jmcarrillo/fogata-backend/internal/purchases"
	paymentswebhook "github.com/jmcarrillo/fogata-backend/internal/webhooks/payments"
	"github.com/jmcarrillo/fogata-backend/pkg/config"
	"github.com/jmcarrillo/fogata-backend/pkg/db"
	"github.com/jmcarrillo/fogata-backend/pkg/logger"
	"github.com/jmcarrillo/fogata-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface depends on.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         *redis.Client
	Metrics       prometheus.Gatherer
	Catalog       catalog.Service
	Products      product.Repository
	Purchases     purchasesvc.Service
	Orders        ordersvc.Service
	Production    productionsvc.Service
	Notifications notificationsvc.Service
	PaymentsWeb   *paymentswebhook.Service
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DB, params.Redis))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentsWebhook(params.PaymentsWeb, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(params.Redis, logg))

		r.Route("/items", func(r chi.Router) {
			r.Get("/", controllers.ListItems(params.Catalog, logg))
			r.Get("/below-restock", controllers.ListBelowRestock(params.Catalog, logg))
			r.Get("/{itemId}", controllers.GetItem(params.Catalog, logg))
		})

		r.Put("/recipes", controllers.UpsertRecipeLine(params.Catalog, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(params.Products, logg))
			r.Get("/{productId}/stock", controllers.GetProductStock(params.Products, logg))
		})

		r.Route("/purchases", func(r chi.Router) {
			r.Get("/", controllers.ListPurchases(params.Purchases, logg))
			r.Post("/", controllers.CreatePurchase(params.Purchases, logg))
			r.Get("/{purchaseId}", controllers.GetPurchase(params.Purchases, logg))
			r.Post("/{purchaseId}/batches", controllers.AddBatch(params.Purchases, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(params.Orders, logg))
			r.Post("/", controllers.CreateOrder(params.Orders, logg))
			r.Get("/{orderId}", controllers.GetOrder(params.Orders, logg))
			r.Post("/{orderId}/confirm-payment", controllers.ConfirmOrderPayment(params.Orders, logg))
			r.Post("/{orderId}/complete", controllers.CompleteOrder(params.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(params.Orders, logg))
		})

		if params.Notifications != nil {
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(params.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(params.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(params.Notifications, logg))
			})
		}

		r.Route("/production-runs", func(r chi.Router) {
			r.Get("/", controllers.ListProductionRuns(params.Production, logg))
			r.Post("/", controllers.CreateProductionRun(params.Production, logg))
			r.Get("/{runId}", controllers.GetProductionRun(params.Production, logg))
			r.Delete("/{runId}", controllers.UndoProductionRun(params.Production, logg))
		})
	})

	return r
}

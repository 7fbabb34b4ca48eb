package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yshimada/furima-backend/api/controllers"
	webhookcontrollers "github.com/yshimada/furima-backend/api/controllers/webhooks"
	"github.com/yshimada/furima-backend/api/middleware"
	"github.com/yshimada/furima-backend/internal/auth"
	"github.com/yshimada/furima-backend/internal/chat"
	checkoutsvc "github.com/yshimada/furima-backend/internal/checkout"
	"github.com/yshimada/furima-backend/internal/items"
	"github.com/yshimada/furima-backend/internal/orders"
	"github.com/yshimada/furima-backend/internal/ratings"
	stripewebhook "github.com/yshimada/furima-backend/internal/webhooks/stripe"
	"github.com/yshimada/furima-backend/pkg/config"
	"github.com/yshimada/furima-backend/pkg/db"
	"github.com/yshimada/furima-backend/pkg/logger"
	"github.com/yshimada/furima-backend/pkg/metrics"
	"github.com/yshimada/furima-backend/pkg/redis"
	"github.com/yshimada/furima-backend/pkg/stripe"
)

// RouterParams bundles everything the HTTP surface depends on.
type RouterParams struct {
	Config             *config.Config
	Logger             *logger.Logger
	DB                 db.Pinger
	Redis              redis.Pinger
	Registry           *prometheus.Registry
	HTTPMetrics        *metrics.HTTPMetrics
	AuthService        auth.Service
	RegisterService    auth.RegisterService
	ItemsService       items.Service
	CheckoutService    checkoutsvc.Service
	OrdersService      orders.Service
	ChatService        chat.Service
	RatingsService     ratings.Service
	StripeClient       *stripe.Client
	StripeWebhookSvc   *stripewebhook.Service
	StripeWebhookGuard *stripewebhook.IdempotencyGuard
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(p.HTTPMetrics),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.StripeWebhookSvc, p.StripeClient, p.StripeWebhookGuard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", controllers.AuthLogin(p.AuthService, logg))
		r.Post("/register", controllers.AuthRegister(p.RegisterService, p.AuthService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/chats", controllers.ChatSidebar(p.OrdersService, logg))

		r.Route("/items/{itemId}", func(r chi.Router) {
			r.Post("/like", controllers.ItemLike(p.ItemsService, logg))
			r.Post("/checkout", controllers.CheckoutCreate(p.CheckoutService, logg))
			r.Get("/checkout/success", controllers.CheckoutSuccess(p.CheckoutService, logg))

			r.Route("/chat", func(r chi.Router) {
				r.Get("/", controllers.ChatList(p.ChatService, logg))
				r.Post("/", controllers.ChatPost(p.ChatService, logg))
				r.Patch("/{messageId}", controllers.ChatEdit(p.ChatService, logg))
				r.Delete("/{messageId}", controllers.ChatDelete(p.ChatService, logg))
				r.Post("/read", controllers.ChatMarkRead(p.ChatService, logg))
				r.Put("/draft", controllers.ChatDraftSave(p.ChatService, logg))
				r.Get("/draft", controllers.ChatDraftLoad(p.ChatService, logg))
			})
		})

		r.Post("/orders/{orderId}/rating", controllers.RatingSubmit(p.RatingsService, logg))
		r.Get("/users/{userId}/rating", controllers.RatingAverage(p.RatingsService, logg))
	})

	return r
}

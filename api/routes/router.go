package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BhumikP/ecomm-firebase-sub000/api/controllers"
	ordercontrollers "github.com/BhumikP/ecomm-firebase-sub000/api/controllers/orders"
	webhookcontrollers "github.com/BhumikP/ecomm-firebase-sub000/api/controllers/webhooks"
	"github.com/BhumikP/ecomm-firebase-sub000/api/middleware"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/config"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/logger"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/metrics"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/redis"
)

// CheckoutService is everything the payment routes need from the checkout orchestrator.
type CheckoutService interface {
	controllers.CheckoutService
	webhookcontrollers.RazorpayWebhookService
}

// Deps wires the router. Gatherer defaults to the global prometheus registry.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency redis.IdempotencyStore
	Checkout    CheckoutService
	Orders      ordercontrollers.Service
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.UserContext(),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, logg, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    deps.Redis,
		}))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		idempotent := middleware.Idempotency(deps.Idempotency, middleware.IdempotencyTTLs{
			Default:  cfg.Idempotency.RequestTTL(),
			Checkout: cfg.Idempotency.CheckoutTTL(),
			InFlight: cfg.Idempotency.InFlightTTL(),
		}, logg)

		r.Route("/checkout", func(r chi.Router) {
			r.With(idempotent).Post("/initiate", controllers.InitiateCheckout(deps.Checkout, logg))
			r.With(idempotent).Post("/cod", controllers.PlaceCOD(deps.Checkout, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/razorpay/verify", controllers.VerifyRazorpay(deps.Checkout, logg))
			r.Post("/payu/callback", webhookcontrollers.PayUCallback(deps.Checkout, logg))
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/razorpay", webhookcontrollers.RazorpayWebhook(deps.Checkout, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(deps.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
			r.With(idempotent).Patch("/{orderId}/fulfillment", ordercontrollers.UpdateFulfillment(deps.Orders, logg))
		})
	})

	return r
}

package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

const serviceName = "storefront"

// RouterConfig carries the dependencies of the HTTP API.
type RouterConfig struct {
	Cart     CartService
	Checkout CheckoutService
	Orders   OrderService
	Health   *health.Handler
	Tokens   middleware.TokenValidator

	// RateLimiter guards /api when set.
	RateLimiter    *middleware.RateLimiter
	CORSOrigins    []string
	PprofCIDRs     []string
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(timeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	cartHandler := NewCartHandler(cfg.Cart, logger)
	checkoutHandler := NewCheckoutHandler(cfg.Checkout, logger)
	orderHandler := NewOrderHandler(cfg.Orders, logger)

	optional := middleware.OptionalAuth(cfg.Tokens)
	required := middleware.Auth(cfg.Tokens)
	requestLogger := middleware.RequestLogger(logger)

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Handler)
		}
		r.Use(ContentTypeJSON)

		r.Route("/cart", func(r chi.Router) {
			r.With(optional, requestLogger).Get("/", cartHandler.GetCart)
			r.With(optional, requestLogger).Post("/", cartHandler.AddItem)
			r.With(optional, requestLogger).Put("/", cartHandler.UpdateItemQuantity)
			r.With(optional, requestLogger).Delete("/", cartHandler.RemoveItem)
			r.With(optional, requestLogger).Post("/clear", cartHandler.ClearCart)
			r.With(required, requestLogger).Post("/merge", cartHandler.MergeCart)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Use(required, requestLogger)
			r.Post("/", checkoutHandler.CreateCheckout)
			r.Get("/{id}", checkoutHandler.GetCheckout)
			r.Put("/{id}/pay", checkoutHandler.MarkPaid)
			r.Post("/{id}/finalize", checkoutHandler.Finalize)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(required, requestLogger)
			r.Get("/my-orders", orderHandler.ListMyOrders)
			r.Get("/{id}", orderHandler.GetOrder)
		})

		r.Route("/admin/orders", func(r chi.Router) {
			r.Use(required, middleware.RequireRole(domain.RoleAdmin), requestLogger)
			r.Get("/", orderHandler.ListOrders)
			r.Put("/{id}", orderHandler.UpdateOrderStatus)
		})
	})

	return r
}

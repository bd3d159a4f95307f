package http

import (
	"net/http"
	"time"

	"github.com/MarketMasterPlus/mm-shopping-cart/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "mm-shopping-cart"

type RouterConfig struct {
	Carts          CartService
	Checkout       Checkouter
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	MetricsPath    string
	RequestTimeout time.Duration
}

// NewRouter mounts the cart API under /carts and, for existing callers, under
// the /mm-shopping-cart prefix of the deployed gateway.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNop()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	cartHandler := NewCartHandler(cfg.Carts)
	checkoutHandler := NewCheckoutHandler(cfg.Checkout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(RequestMetrics(cfg.Metrics))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, cfg.MetricsPath, metrics.Handler(cfg.Gatherer))

	routes := func(r chi.Router) {
		r.Get("/", cartHandler.ListCarts)
		r.Post("/", cartHandler.CreateCart)
		r.Post("/pay/{id}", checkoutHandler.Pay)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Put("/", cartHandler.UpdateCart)
			r.Delete("/", cartHandler.DeleteCart)

			r.Get("/items", cartHandler.ListItems)
			r.Post("/items", cartHandler.AddItem)
			r.Get("/items/{productItemID}", cartHandler.GetItem)
			r.Put("/items/{productItemID}", cartHandler.UpdateItem)
			r.Delete("/items/{productItemID}", cartHandler.DeleteItem)
		})
	}
	r.Route("/carts", routes)
	r.Route("/mm-shopping-cart", routes)

	return otelhttp.NewHandler(r, serviceName)
}

package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/halcyonretail/storefront-sync/api/controllers"
	"github.com/halcyonretail/storefront-sync/api/middleware"
	"github.com/halcyonretail/storefront-sync/pkg/config"
	"github.com/halcyonretail/storefront-sync/pkg/logger"
	pkgredis "github.com/halcyonretail/storefront-sync/pkg/redis"
)

// ShopperService is what the private routes need from the shopper
// registry.
type ShopperService interface {
	controllers.ShopperDirectory
	controllers.ShopperDropper
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisP pkgredis.Pinger,
	idemStore pkgredis.IdempotencyStore,
	shoppers ShopperService,
	promRegistry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, redisP))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	if promRegistry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(shoppers, logg))
			r.Delete("/", controllers.CartClear(shoppers, logg))
			r.Post("/items", controllers.CartAdd(shoppers, logg))
			r.Patch("/items/{productId}", controllers.CartSetQuantity(shoppers, logg))
			r.Delete("/items/{productId}", controllers.CartRemove(shoppers, logg))
		})

		r.Route("/v1/wishlist", func(r chi.Router) {
			r.Get("/", controllers.WishlistGet(shoppers, logg))
			r.Get("/{productId}", controllers.WishlistContains(shoppers, logg))
			r.Post("/{productId}/toggle", controllers.WishlistToggle(shoppers, logg))
		})

		r.Post("/v1/session/logout", controllers.SessionLogout(shoppers, logg))
	})

	return r
}

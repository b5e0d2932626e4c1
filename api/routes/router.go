package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/packfinderz-storefront/api/controllers"
	"github.com/angelmondragon/packfinderz-storefront/api/middleware"
	"github.com/angelmondragon/packfinderz-storefront/internal/session"
	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

// Deps carries the services the agent API exposes. RedisPinger and Gatherer
// are optional.
type Deps struct {
	Sessions    controllers.SessionService
	Cart        controllers.CartService
	RedisPinger controllers.Pinger
	Gatherer    prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.Origins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.RedisPinger))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/api/public/ping", controllers.PublicPing())

	r.Route("/api/v1/session", func(r chi.Router) {
		r.Post("/login", controllers.SessionLogin(deps.Sessions, cfg.JWT, logg))
		r.Post("/logout", controllers.SessionLogout(deps.Sessions))
		r.Post("/forbidden", controllers.SessionForbidden(deps.Sessions))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(deps.Sessions, logg))
			r.Get("/", controllers.SessionCurrent(deps.Sessions, logg))
			r.With(middleware.RequireRole(session.RoleAdmin, logg)).
				Get("/admin", controllers.SessionAdmin(deps.Sessions, logg))
		})
	})

	r.With(middleware.RequireSession(deps.Sessions, logg)).Get("/api/v1/ping", controllers.PrivatePing())

	r.Route("/api/v1/cart", func(r chi.Router) {
		// Snapshot and drawer state are readable while signed out.
		r.Get("/", controllers.CartFetch(deps.Cart))
		r.Put("/drawer", controllers.CartDrawer(deps.Cart, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(deps.Sessions, logg))
			r.Post("/refresh", controllers.CartRefresh(deps.Cart, logg))
			r.Delete("/", controllers.CartClear(deps.Cart, logg))
			r.Route("/items/{productId}", func(r chi.Router) {
				r.Post("/", controllers.CartAddItem(deps.Cart, logg))
				r.Delete("/", controllers.CartRemoveItem(deps.Cart, logg))
				r.Put("/quantity", controllers.CartUpdateQuantity(deps.Cart, logg))
				r.Put("/size", controllers.CartUpdateSize(deps.Cart, logg))
			})
		})
	})

	return r
}

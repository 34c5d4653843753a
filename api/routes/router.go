package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avilesmarco/storefront-backend/api/controllers"
	"github.com/avilesmarco/storefront-backend/api/middleware"
	"github.com/avilesmarco/storefront-backend/internal/cart"
	"github.com/avilesmarco/storefront-backend/internal/catalog"
	checkoutsvc "github.com/avilesmarco/storefront-backend/internal/checkout"
	ordersvc "github.com/avilesmarco/storefront-backend/internal/orders"
	"github.com/avilesmarco/storefront-backend/pkg/config"
	"github.com/avilesmarco/storefront-backend/pkg/db"
	"github.com/avilesmarco/storefront-backend/pkg/enums"
	"github.com/avilesmarco/storefront-backend/pkg/logger"
	pkgredis "github.com/avilesmarco/storefront-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       *pkgredis.Client
	CartManager *cart.Manager
	Catalog     *catalog.Repository
	Checkout    checkoutsvc.Service
	Orders      ordersvc.Service
	Registry    *prometheus.Registry
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, deps.Redis, logg))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Browsing and cart mutation work anonymously; a valid token upgrades
		// the session in place.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Use(middleware.Session(logg))

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.ListProducts(deps.Catalog, logg))
				r.Get("/{productID}", controllers.GetProduct(deps.Catalog, logg))
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.GetCart(deps.CartManager, logg))
				r.Delete("/", controllers.ClearCart(deps.CartManager, logg))
				r.Post("/items", controllers.AddCartItem(deps.CartManager, deps.Catalog, logg))
				r.Put("/items/{productID}", controllers.SetCartQuantity(deps.CartManager, logg))
				r.Delete("/items/{productID}", controllers.RemoveCartItem(deps.CartManager, logg))
				// Logout hook: the client may have discarded its token
				// already, so this lives on the anonymous group.
				r.Post("/logout", controllers.LogoutCart(deps.CartManager, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Session(logg))
			r.Use(middleware.Idempotency(deps.Redis, logg))

			r.Post("/cart/reconcile", controllers.ReconcileCart(deps.CartManager, logg))
			r.Post("/checkout", controllers.Checkout(deps.Checkout, deps.CartManager, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.ListOrders(deps.Orders, logg))
				r.Get("/{orderID}", controllers.GetOrder(deps.Orders, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
			r.Use(middleware.Idempotency(deps.Redis, logg))

			r.Post("/products", controllers.CreateProduct(deps.Catalog, logg))
			r.Patch("/orders/{orderID}/status", controllers.UpdateOrderStatus(deps.Orders, logg))
		})
	})

	return r
}

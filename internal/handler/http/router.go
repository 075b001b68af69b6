package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// ServiceName labels metrics and spans emitted by the router.
const ServiceName = "storefront"

// RouterDeps groups everything NewRouter wires into handlers.
type RouterDeps struct {
	Products *service.ProductService
	Reviews  *service.ReviewService
	Orders   *service.OrderService
	Users    *service.UserService
	Guard    *auth.Guard
	Health   *health.Handler
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

// RouterOptions holds the HTTP-facing settings of the router.
type RouterOptions struct {
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	PprofEnabled       bool
	PprofAllowedCIDRs  []string
	Cookie             CookieSettings
	PublicURL          string
	CatalogMaxAge      time.Duration

	// AssetDir, when set, is served read-only under AssetPath.
	AssetDir  string
	AssetPath string
}

// NewRouter creates a chi router with every storefront route registered.
func NewRouter(deps RouterDeps, opts RouterOptions) http.Handler {
	logger := deps.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   opts.CORSAllowedOrigins,
		ExposedHeaders:   []string{"X-Correlation-ID"},
		MaxAge:           300,
		AllowCredentials: true,
	}))
	if deps.Registry != nil {
		r.Use(middleware.NewHTTPMetrics(deps.Registry, ServiceName).Middleware)
	}

	// Health check endpoints
	if deps.Health != nil {
		r.Get("/health/live", deps.Health.LivenessHandler())
		r.Get("/health/ready", deps.Health.ReadinessHandler())
	}
	if deps.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{Registry: deps.Registry}))
	}
	if opts.PprofEnabled {
		middleware.RegisterPprof(r, opts.PprofAllowedCIDRs, logger)
	}
	if opts.AssetDir != "" && strings.HasPrefix(opts.AssetPath, "/") {
		prefix := strings.TrimRight(opts.AssetPath, "/")
		files := http.StripPrefix(prefix, http.FileServer(http.Dir(opts.AssetDir)))
		r.With(middleware.CacheControl(24*time.Hour)).Handle(prefix+"/*", files)
	}

	products := NewProductHandler(deps.Products, logger)
	reviews := NewReviewHandler(deps.Reviews, logger)
	orders := NewOrderHandler(deps.Orders, logger)
	users := NewUserHandler(deps.Users, opts.Cookie, opts.PublicURL, logger)
	limiter := middleware.NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst)

	r.Route("/api/v1", func(r chi.Router) {
		// Catalog (public)
		r.Group(func(r chi.Router) {
			r.Use(middleware.CacheControl(opts.CatalogMaxAge))
			r.Get("/products", products.List)
			r.Get("/product/{id}", products.Get)
		})

		// Credentials (public)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NoStore)
			r.Group(func(r chi.Router) {
				r.Use(limiter.Middleware(logger))
				r.Post("/register", users.Register)
				r.Post("/login", users.Login)
				r.Post("/password/forgot", users.ForgotPassword)
			})
			r.Get("/logout", users.Logout)
			r.Put("/password/reset/{token}", users.ResetPassword)
		})

		// Signed-in users
		r.Group(func(r chi.Router) {
			r.Use(middleware.NoStore)
			r.Use(deps.Guard.Authenticate())

			r.Get("/me", users.Me)
			r.Put("/me/update", users.UpdateProfile)
			r.Put("/me/avatar", users.UploadAvatar)
			r.Put("/password/update", users.UpdatePassword)

			r.Put("/review", reviews.Submit)
			r.Get("/reviews", reviews.List)
			r.Delete("/reviews", reviews.Remove)

			r.Post("/order/new", orders.Create)
			r.Get("/orders/me", orders.Mine)

			// Admin
			r.Group(func(r chi.Router) {
				r.Use(deps.Guard.RequireRole(domain.RoleAdmin))

				r.Post("/admin/product/new", products.Create)
				r.Put("/admin/product/{id}", products.Update)
				r.Delete("/admin/product/{id}", products.Delete)
				r.Post("/admin/product/{id}/images", products.UploadImage)
				r.Delete("/admin/products", products.DeleteAll)

				r.Get("/order/{id}", orders.Get)
				r.Get("/admin/orders", orders.ListAll)
				r.Put("/admin/order/{id}", orders.Transition)
				r.Delete("/admin/order/{id}", orders.Delete)

				r.Get("/admin/users", users.List)
				r.Get("/admin/user/{id}", users.Get)
				r.Put("/admin/user/{id}", users.Update)
				r.Delete("/admin/user/{id}", users.Delete)
			})
		})
	})

	return r
}

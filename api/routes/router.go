package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/angelmondragon/ecobuy/api/controllers"
	"github.com/angelmondragon/ecobuy/api/middleware"
	"github.com/angelmondragon/ecobuy/internal/accounts"
	"github.com/angelmondragon/ecobuy/pkg/auth/session"
	"github.com/angelmondragon/ecobuy/pkg/config"
	"github.com/angelmondragon/ecobuy/pkg/logger"
)

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Deps collects what the router hands to middleware and controllers.
type Deps struct {
	Accounts    accounts.Service
	Sessions    session.AccessSessionChecker
	RateLimiter rateLimiter
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Gatherer    prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	recoveryPolicy := middleware.NewAuthRateLimitPolicy(
		"recovery",
		cfg.AuthRateLimit.RecoveryWindow,
		cfg.AuthRateLimit.RecoveryIPLimit,
		cfg.AuthRateLimit.RecoveryEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, deps.RateLimiter, logg)).Post("/register", controllers.AuthRegister(deps.Accounts, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, deps.RateLimiter, logg)).Post("/login", controllers.AuthLogin(deps.Accounts, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, deps.RateLimiter, logg)).Post("/google-login", controllers.AuthGoogleLogin(deps.Accounts, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, deps.RateLimiter, logg)).Post("/verify", controllers.AuthVerify(deps.Accounts, logg))
		r.With(middleware.AuthRateLimit(recoveryPolicy, deps.RateLimiter, logg)).Post("/resend-verification", controllers.AuthResendVerification(deps.Accounts, logg))
		r.With(middleware.AuthRateLimit(recoveryPolicy, deps.RateLimiter, logg)).Post("/forgot-password", controllers.AuthForgotPassword(deps.Accounts, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, deps.RateLimiter, logg)).Post("/reset-password", controllers.AuthResetPassword(deps.Accounts, logg))
		r.Post("/logout", controllers.AuthLogout(deps.Accounts, cfg.JWT, logg))
	})

	r.Route("/api/v1/me", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
		r.Get("/", controllers.MeProfile(deps.Accounts, logg))
		r.Patch("/", controllers.MeUpdateProfile(deps.Accounts, logg))
		r.Put("/cart", controllers.MeReplaceCart(deps.Accounts, logg))
		r.Put("/wishlist", controllers.MeReplaceWishlist(deps.Accounts, logg))
		r.Get("/orders", controllers.MeListOrders(deps.Accounts, logg))
		r.Post("/orders", controllers.MePlaceOrder(deps.Accounts, logg))
	})

	return otelhttp.NewHandler(r, "ecobuy.accounts",
		otelhttp.WithFilter(func(req *http.Request) bool {
			return req.URL.Path != "/health/live" && req.URL.Path != "/metrics"
		}),
	)
}

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/example/digital-storefront/internal/api/middleware"
	"github.com/example/digital-storefront/internal/auth"
)

const defaultRequestTimeout = 60 * time.Second

type RouterConfig struct {
	Handlers      *Handlers
	Auth          *AuthHandlers
	Payments      *PaymentHandlers // nil when the gateway has no push callbacks
	Authenticator *auth.Authenticator
	Logger        *zap.Logger
	// RequestTimeout must cover a checkout with all gateway retries.
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	h := cfg.Handlers

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(withLogging(logger.Named("http")))
	r.Use(chimw.Timeout(timeout))

	r.Get("/health", h.Health)

	r.Post("/auth/guest", cfg.Auth.GuestLogin)
	r.Post("/auth/admin/login", cfg.Auth.AdminLogin)
	r.Post("/auth/logout", cfg.Auth.Logout)

	r.Get("/products", h.GetProducts)
	r.Get("/products/{id}", h.GetProduct)
	r.Get("/payment-methods", h.GetPaymentMethods)

	if cfg.Payments != nil {
		r.Post("/payments/callback", cfg.Payments.Callback)
	}

	r.With(middleware.OptionalAuthMiddleware(cfg.Authenticator)).Post("/support/tickets", h.SubmitTicket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.Authenticator))

		r.Get("/auth/me", cfg.Auth.Me)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/select-all", h.SelectAll)
			r.Post("/items", h.AddToCart)
			r.Delete("/items/{index}", h.RemoveFromCart)
			r.Patch("/items/{index}/quantity", h.ChangeQuantity)
			r.Post("/items/{index}/toggle", h.ToggleSelection)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", h.GetCheckout)
			r.Post("/", h.Checkout)
			r.Post("/cancel", h.CancelCheckout)
			r.Post("/refresh", h.RefreshCheckout)
		})

		r.Get("/orders", h.GetMyOrders)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleAdmin))
			r.Get("/orders", h.GetAllOrders)
			r.Put("/products/{id}", h.UpsertProduct)
			r.Delete("/products/{id}", h.DeleteProduct)
		})
	})

	return otelhttp.NewHandler(r, "storefront-api")
}

func withLogging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimw.GetReqID(r.Context())),
			)
		})
	}
}

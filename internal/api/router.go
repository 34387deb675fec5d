package api

import (
	"log"
	"net/http"
	"time"

	"github.com/example/ec-order-lifecycle/internal/api/middleware"
	"github.com/example/ec-order-lifecycle/internal/auth"
	"github.com/example/ec-order-lifecycle/internal/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

type RouterConfig struct {
	Handlers       *Handlers
	JWTService     *auth.JWTService
	Metrics        *metrics.Metrics
	RequestTimeout time.Duration
	// TracingService names the otelhttp server spans; empty disables tracing
	TracingService string
	// TracerProvider defaults to the global provider
	TracerProvider trace.TracerProvider
}

func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handlers
	r := chi.NewRouter()

	if cfg.TracingService != "" {
		r.Use(nameSpanByRoute)
	}
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(withLogging)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.JWTService))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddToCart)
			r.Delete("/items/{productId}", h.RemoveFromCart)
			r.Post("/checkout", h.Checkout)
		})

		r.Route("/orders/{id}", func(r chi.Router) {
			r.Get("/", h.GetOrder)
			r.Get("/payment-proof", h.GetPaymentProof)
			r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleStaff)).Put("/status", h.UpdateOrderStatus)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Get("/unread-count", h.UnreadCount)
			r.Put("/read-all", h.MarkAllNotificationsRead)
			r.Delete("/all", h.DeleteAllNotifications)
			r.Put("/{id}/read", h.MarkNotificationRead)
			r.Delete("/{id}", h.DeleteNotification)
		})
	})

	if cfg.TracingService == "" {
		return r
	}
	opts := []otelhttp.Option{
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != "/metrics"
		}),
		// The route is unknown until chi has matched it; nameSpanByRoute
		// renames the span afterwards.
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method
		}),
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(cfg.TracerProvider))
	}
	return otelhttp.NewHandler(r, cfg.TracingService, opts...)
}

// nameSpanByRoute names the server span after the matched chi pattern, so
// /orders/abc and /orders/xyz share one span name.
func nameSpanByRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		if name := routeSpanName(r); name != "" {
			trace.SpanFromContext(r.Context()).SetName(name)
		}
	})
}

func routeSpanName(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.RoutePattern() == "" {
		return ""
	}
	return "HTTP " + r.Method + " " + rctx.RoutePattern()
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Printf("[API] %s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond))
	})
}

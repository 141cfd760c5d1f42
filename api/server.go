/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind a proxy, used by the rate limiter
  3. Logger:     zap request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Metrics:    Prometheus request counters (optional)
  6. Secure:     Security headers, HTTPS redirect in production
  7. CORS:       Cross-origin requests for the back-office frontend
  8. Rate limit: Per-IP request budget

ROUTE GROUPS:
  /healthz              Store health
  /metrics              Prometheus scrape endpoint
  /api/settlements/*    Settlement lifecycle and reporting
  /api/workers/*        Per-worker listings
  /api/admin/*          Administrative delete
  /api/scenarios/*      Demo scenarios (development only)

SECURITY NOTE:
  No authentication middleware. Operators are authenticated upstream.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
	"go.uber.org/zap"

	"github.com/warp/payout-engine/observability"
)

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	// Metrics is nil when metrics are disabled.
	Metrics            *observability.Metrics
	AllowedOrigins     []string
	RateLimitPerMinute int
	Production         bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	r.Use(secureHeaders(h.Logger, opts.Production))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(opts.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if opts.RateLimitPerMinute > 0 {
		r.Use(httprate.Limit(opts.RateLimitPerMinute, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests", nil)
			}),
		))
	}

	r.Get("/healthz", h.Healthz)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Settlement routes
		r.Route("/settlements", func(r chi.Router) {
			r.Get("/", h.ListSettlements)
			r.Post("/", h.CreateSettlement)
			r.Get("/pending", h.ListPending)
			r.Post("/preview", h.Preview)
			r.Post("/preview/appointments", h.PreviewAppointments)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSettlement)
				r.Patch("/", h.UpdateSettlement)
				r.Post("/recompute-appointments", h.RecomputeAppointments)
				r.Post("/recompute-sales", h.RecomputeSales)
				r.Post("/pay", h.MarkPaid)
				r.Get("/breakdown", h.GetBreakdown)
				r.Get("/breakdown/export", h.ExportBreakdown)
			})
		})

		// Worker routes
		r.Get("/workers/{id}/settlements", h.ListWorkerSettlements)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Delete("/settlements/{id}", h.DeleteSettlement)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetData)
		})
	})

	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// secureHeaders sets the standard security headers and, in production,
// redirects plain HTTP.
func secureHeaders(logger *zap.Logger, production bool) func(http.Handler) http.Handler {
	sm := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !production,
	})
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sm.Process(w, r); err != nil {
				logger.Warn("secure headers blocked request", zap.Error(err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Package handler exposes the BFA over HTTP using chi.
package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/port"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// store is only used by /healthz and may be nil.
func NewRouter(
	calcSvc *service.CalculoService,
	procSvc *service.ProcessoService,
	validator port.TokenValidator,
	store port.ProcessoStore,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(store, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", metricsHandler(metrics))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 1. Ad-hoc calculation
		// POST /v1/calculos
		// POST /v1/penas/unificar
		// =============================================
		r.Post("/calculos", calcularHandler(calcSvc, logger))
		r.Post("/penas/unificar", unificarHandler(calcSvc, logger))

		// =============================================
		// 2. Metrics
		// GET /v1/metrics/calculos
		// =============================================
		r.Get("/metrics/calculos", calculoMetricsHandler(metrics))

		// =============================================
		// 3. Recorded cases (Supabase JWT)
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(validator, logger))

			r.Post("/processos", criarProcessoHandler(procSvc, logger))
			r.Get("/processos", listarProcessosHandler(procSvc, logger))

			r.Route("/processos/{processoId}", func(r chi.Router) {
				r.Get("/", obterProcessoHandler(procSvc, logger))
				r.Post("/episodios", registrarEpisodioHandler(procSvc, logger))
				r.Post("/remicoes", registrarRemicaoHandler(procSvc, logger))
				r.Post("/eventos", registrarEventoHandler(procSvc, logger))
				r.Get("/calculo", calcularProcessoHandler(calcSvc, logger))
			})

			// =============================================
			// 4. Admin (service_role)
			// POST /v1/admin/recalculos
			// =============================================
			r.With(RequireServiceRole(logger)).Post("/admin/recalculos", recalcularHandler(calcSvc, logger))
		})
	})

	return r
}

// ============================================================
// Operational
// ============================================================

// metricsHandler serves the private registry when one is given.
func metricsHandler(metrics *observability.Metrics) http.Handler {
	if metrics == nil || metrics.Registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
}

func healthzHandler(store port.ProcessoStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bfa-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if store != nil {
			start := time.Now()
			err := store.Ping(ctx)
			latency := time.Since(start).Milliseconds()
			sh := domain.ServiceHealth{Name: "store", Status: "healthy", LatencyMs: latency, LastChecked: now}
			if err != nil {
				logger.Warn("healthz: store ping failed", zap.Error(err))
				sh.Status = "degraded"
				sh.Error = err.Error()
			}
			services = append(services, sh)
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

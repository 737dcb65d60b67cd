package observability

import (
	"time"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Calculation outcomes used as the "outcome" label.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalidInput = "invalid_input"
	OutcomeUnresolvable = "unresolvable"
	OutcomeError        = "error"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	calculoDuration *prometheus.HistogramVec
	calculos        *prometheus.CounterVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	recalculos      *prometheus.CounterVec
	eventos         *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		calculoDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bfa_calculo_duration_seconds",
				Help:    "Duration of sentence calculations by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		calculos: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_calculos_total",
				Help: "Total sentence calculations by outcome.",
			},
			[]string{"outcome"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		recalculos: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_recalculos_total",
				Help: "Cases processed by batch recomputes, by result.",
			},
			[]string{"result"},
		),
		eventos: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_eventos_publicados_total",
				Help: "Recalculation events published, by status.",
			},
			[]string{"status"},
		),
	}
}

// RecordCalculoDuration records the duration of a calculation operation.
func (m *Metrics) RecordCalculoDuration(operation string, d time.Duration) {
	m.calculoDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrCalculo increments the calculation counter for an outcome.
func (m *Metrics) IncrCalculo(outcome string) {
	m.calculos.WithLabelValues(outcome).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrRecalculo counts one case of a batch recompute ("unchanged",
// "changed" or "failed").
func (m *Metrics) IncrRecalculo(result string) {
	m.recalculos.WithLabelValues(result).Inc()
}

// IncrEvento counts a publish attempt ("published" or "failed").
func (m *Metrics) IncrEvento(status string) {
	m.eventos.WithLabelValues(status).Inc()
}

// GetCalculoSnapshot returns a snapshot of calculation metrics suitable for
// the GET /v1/metrics/calculos endpoint.
func (m *Metrics) GetCalculoSnapshot() *domain.CalculoMetrics {
	sucessos := getCounterValue(m.calculos, OutcomeSuccess)
	invalidas := getCounterValue(m.calculos, OutcomeInvalidInput)
	indefinidos := getCounterValue(m.calculos, OutcomeUnresolvable)
	erros := getCounterValue(m.calculos, OutcomeError)
	total := sucessos + invalidas + indefinidos + erros

	hits := getCounterValue(m.cacheHits, "calculo")
	misses := getCounterValue(m.cacheMisses, "calculo")

	alterados := getCounterValue(m.recalculos, "changed")
	recalculos := alterados +
		getCounterValue(m.recalculos, "unchanged") +
		getCounterValue(m.recalculos, "failed")

	errorRate := float64(0)
	cacheHitRate := float64(0)
	if total > 0 {
		errorRate = erros / total
	}
	if hits+misses > 0 {
		cacheHitRate = hits / (hits + misses)
	}

	return &domain.CalculoMetrics{
		TotalCalculos:       int64(total),
		Sucessos:            int64(sucessos),
		EntradasInvalidas:   int64(invalidas),
		TerminoIndefinido:   int64(indefinidos),
		ErrorRate:           errorRate,
		CacheHitRate:        cacheHitRate,
		Recalculos:          int64(recalculos),
		RecalculosAlterados: int64(alterados),
		Period:              "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

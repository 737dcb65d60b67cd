package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
	Error       string `json:"error,omitempty"`
}

// CalculoMetrics is returned by GET /v1/metrics/calculos.
type CalculoMetrics struct {
	TotalCalculos       int64   `json:"totalCalculos"`
	Sucessos            int64   `json:"sucessos"`
	EntradasInvalidas   int64   `json:"entradasInvalidas"`
	TerminoIndefinido   int64   `json:"terminoIndefinido"`
	ErrorRate           float64 `json:"errorRate"`
	CacheHitRate        float64 `json:"cacheHitRate"`
	Recalculos          int64   `json:"recalculos"`
	RecalculosAlterados int64   `json:"recalculosAlterados"`
	Period              string  `json:"period"`
}

package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maanisingh/Accounting-software-sub001/internal/inventory"
)

// Metrics collects the Prometheus metrics of the service. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	movements       *prometheus.CounterVec
	movedQuantity   *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	stockDrift      *prometheus.GaugeVec
}

// NewMetrics initialises the registry and the collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "accounting_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "accounting_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "accounting_stock_movements_total",
		Help: "Stock movements written, by movement type and direction.",
	}, []string{"type", "direction"})
	moved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "accounting_stock_moved_quantity_total",
		Help: "Absolute quantity moved, by movement type.",
	}, []string{"type"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "accounting_guard_rejections_total",
		Help: "Document requests rejected by the guard, by flow and reason.",
	}, []string{"flow", "reason"})
	drift := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "accounting_stock_drift_rows",
		Help: "Stock rows that disagree with the movement log at the last reconciliation.",
	}, []string{"company"})
	registry.MustRegister(requests, duration, movements, moved, rejections, drift)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		movements:       movements,
		movedQuantity:   moved,
		rejections:      rejections,
		stockDrift:      drift,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for collectors owned by other packages.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// ObserveMovement counts a written stock movement.
func (m *Metrics) ObserveMovement(mv inventory.Movement) {
	if m == nil {
		return
	}
	direction := "in"
	if mv.Quantity.IsNegative() {
		direction = "out"
	}
	if mv.IsReversal() {
		direction = "reversal"
	}
	m.movements.WithLabelValues(string(mv.Type), direction).Inc()
	m.movedQuantity.WithLabelValues(string(mv.Type)).Add(mv.Quantity.Abs().InexactFloat64())
}

// ObserveGuardRejection counts a rejected document request.
func (m *Metrics) ObserveGuardRejection(flow, reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(flow, reason).Inc()
}

// SetStockDrift records the drift found for a company.
func (m *Metrics) SetStockDrift(companyID int64, rows int) {
	if m == nil {
		return
	}
	m.stockDrift.WithLabelValues(strconv.FormatInt(companyID, 10)).Set(float64(rows))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

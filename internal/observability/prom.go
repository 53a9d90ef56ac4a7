package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Prom struct {
	registry prometheus.Gatherer

	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec
	// DB
	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	// Auth
	AuthEvents *prometheus.CounterVec
	// Summary cache
	CacheLookups *prometheus.CounterVec
}

// NewProm registers the collectors on reg. gather is used by Handler; pass
// the same registry in both positions.
func NewProm(reg prometheus.Registerer, gather prometheus.Gatherer) *Prom {
	p := &Prom{
		registry: gather,
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "expensehub",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "expensehub",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "expensehub",
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		DbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "expensehub",
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "DB operation latency (logical op, not raw SQL)",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"op", "status"},
		),
		DbErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "expensehub",
				Subsystem: "db",
				Name:      "errors_total",
				Help:      "DB errors by logical op and class.",
			},
			[]string{"op", "class"},
		),
		AuthEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "expensehub",
				Subsystem: "auth",
				Name:      "events_total",
				Help:      "Authentication outcomes by operation and result.",
			},
			[]string{"op", "result"}, // op=signup|login|verify_password|update_password
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "expensehub",
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Summary cache lookups by result.",
			},
			[]string{"result"}, // hit|miss
		),
	}
	reg.MustRegister(p.RequestsTotal, p.RequestsDuration, p.InFlight, p.DbQueryDuration, p.DbErrorsTotal, p.AuthEvents, p.CacheLookups)

	return p
}

// ObserveAuth is nil-safe so handlers can run without metrics in tests.
func (p *Prom) ObserveAuth(op, result string) {
	if p == nil {
		return
	}
	p.AuthEvents.WithLabelValues(op, result).Inc()
}

func (p *Prom) ObserveCache(hit bool) {
	if p == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	p.CacheLookups.WithLabelValues(result).Inc()
}

func (p *Prom) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		// route template is only available after routing; best effort:
		route := ctx.FullPath()

		if route == "" {
			route = "unmatched"
		}

		method := ctx.Request.Method
		p.InFlight.WithLabelValues(method, route).Inc()
		defer p.InFlight.WithLabelValues(method, route).Dec()
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		secs := time.Since(start).Seconds()

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(secs)
	}
}

package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ProbeMetrics counts scope-probe activity.
type ProbeMetrics interface {
	IncProbe(kind, scope string)
	IncProbeHit(kind, scope string)
	IncProbeFailure(kind string)
	IncNotFound(kind string)
}

// GatewayMetrics captures request metrics for the console HTTP API.
type GatewayMetrics interface {
	ObserveRequest(method, route, status string, durationSeconds float64)
}

// Noop implements ProbeMetrics without emitting anything.
type Noop struct{}

func (Noop) IncProbe(string, string)    {}
func (Noop) IncProbeHit(string, string) {}
func (Noop) IncProbeFailure(string)     {}
func (Noop) IncNotFound(string)         {}

// Prom implements ProbeMetrics backed by Prometheus counters.
type Prom struct {
	probes        *prometheus.CounterVec
	probeHits     *prometheus.CounterVec
	probeFailures *prometheus.CounterVec
	notFound      *prometheus.CounterVec
	once          sync.Once
}

// NewProm constructs probe counters under the given namespace.
func NewProm(namespace string) *Prom {
	p := &Prom{
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scope_probes_total",
			Help:      "Scope probes issued by resource kind and scope",
		}, []string{"kind", "scope"}),
		probeHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scope_probe_hits_total",
			Help:      "Scope probes that located the resource, by kind and scope",
		}, []string{"kind", "scope"}),
		probeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scope_probe_failures_total",
			Help:      "Per-team probe fetches that failed transiently, by kind",
		}, []string{"kind"}),
		notFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scope_resolutions_not_found_total",
			Help:      "Resolutions that exhausted every scope without a match, by kind",
		}, []string{"kind"}),
	}
	p.register()
	return p
}

func (p *Prom) register() {
	p.once.Do(func() {
		prometheus.MustRegister(p.probes, p.probeHits, p.probeFailures, p.notFound)
	})
}

func (p *Prom) IncProbe(kind, scope string) {
	p.probes.WithLabelValues(kind, scope).Inc()
}

func (p *Prom) IncProbeHit(kind, scope string) {
	p.probeHits.WithLabelValues(kind, scope).Inc()
}

func (p *Prom) IncProbeFailure(kind string) {
	p.probeFailures.WithLabelValues(kind).Inc()
}

func (p *Prom) IncNotFound(kind string) {
	p.notFound.WithLabelValues(kind).Inc()
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// --- Gateway metrics ---

type gatewayProm struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	once     sync.Once
}

// NewGatewayProm constructs a GatewayMetrics with counters/histograms.
func NewGatewayProm(namespace string) GatewayMetrics {
	g := &gatewayProm{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method/route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	g.once.Do(func() {
		prometheus.MustRegister(g.requests, g.latency)
	})
	return g
}

func (g *gatewayProm) ObserveRequest(method, route, status string, durationSeconds float64) {
	g.requests.WithLabelValues(method, route, status).Inc()
	g.latency.WithLabelValues(method, route).Observe(durationSeconds)
}

// NoopGateway implements GatewayMetrics without emitting anything.
type NoopGateway struct{}

func (NoopGateway) ObserveRequest(string, string, string, float64) {}

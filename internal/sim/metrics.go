package sim

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slotsim_reads_total",
		Help: "Snapshot reads performed by the reader goroutines",
	})
	WritesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slotsim_account_writes_total",
		Help: "Committed account updates",
	})
	TornReads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slotsim_torn_reads_total",
		Help: "Snapshots that failed verification",
	})
	ProfileWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotsim_profile_writes_total",
			Help: "Tuning profile replacements by operation",
		}, []string{"op"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotsim_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"code"},
	)
	Latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "slotsim_http_request_duration_seconds",
		Help:    "Request latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "slotsim_http_in_flight",
		Help: "In-flight HTTP requests",
	})
)

func init() {
	prometheus.MustRegister(ReadsTotal, WritesTotal, TornReads, ProfileWrites,
		RequestsTotal, Latency, InFlight)
}

func MetricsHandler() http.Handler { return promhttp.Handler() }

type rec struct {
	http.ResponseWriter
	code int
}

func (r *rec) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		InFlight.Inc()
		defer InFlight.Dec()

		rr := &rec{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rr, r)

		Latency.Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(strconv.Itoa(rr.code)).Inc()
	})
}

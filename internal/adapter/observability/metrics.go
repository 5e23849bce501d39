package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Harvester-side metrics.
var (
	CodesMinted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_codes_minted_total",
		Help: "Promo codes minted by workers, per game.",
	}, []string{"game"})

	PersistFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_persist_failures_total",
		Help: "Minted codes dropped because the inventory append failed.",
	}, []string{"game"})

	WorkerRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_worker_restarts_total",
		Help: "Supervisor restarts of crashed workers, per game.",
	}, []string{"game"})

	CycleAbandoned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_cycles_abandoned_total",
		Help: "Cycles abandoned after exhausting register-event attempts.",
	}, []string{"game"})

	RateSignals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_rate_signals_total",
		Help: "TooManyRegister responses observed, per game.",
	}, []string{"game"})
)

// Distributor-side metrics.
var (
	IssueOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "issuance_outcomes_total",
		Help: "Issuance requests by categorical outcome.",
	}, []string{"outcome"})

	CodesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "issuance_codes_issued_total",
		Help: "Codes handed to users, per game.",
	}, []string{"game"})

	WarmReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_warm_reloads_total",
		Help: "Warm-tier refills from the durable tier, per game.",
	}, []string{"game"})
)

var httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "http_request_duration_seconds",
	Help:    "Console HTTP request latency.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "status"})

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware records request latency labeled by method and status.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpDuration.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Observe(time.Since(start).Seconds())
	})
}

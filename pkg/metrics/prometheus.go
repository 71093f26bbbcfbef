package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records engine metrics using Prometheus.
type Recorder struct {
	signals         *prometheus.CounterVec
	ordersAttempted prometheus.Counter
	ordersPlaced    prometheus.Counter
	ordersFailed    prometheus.Counter
	ordersHalted    prometheus.Counter
	riskRejections  *prometheus.CounterVec
	riskLocks       prometheus.Counter
	exits           *prometheus.CounterVec
	qualified       prometheus.Gauge
	tickDuration    *prometheus.HistogramVec
	providerErrors  *prometheus.CounterVec
}

// New creates a Recorder registered on reg. Pass prometheus.DefaultRegisterer to expose it on /metrics.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		signals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orb_signals_total",
				Help: "Breakout signals emitted by the detector",
			},
			[]string{"side"},
		),
		ordersAttempted: factory.NewCounter(prometheus.CounterOpts{
			Name: "orb_orders_attempted_total",
			Help: "Bracket orders attempted",
		}),
		ordersPlaced: factory.NewCounter(prometheus.CounterOpts{
			Name: "orb_orders_placed_total",
			Help: "Bracket orders accepted by the broker",
		}),
		ordersFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "orb_orders_failed_total",
			Help: "Bracket orders rejected by the broker",
		}),
		ordersHalted: factory.NewCounter(prometheus.CounterOpts{
			Name: "orb_orders_halted_total",
			Help: "Approved orders suppressed by a lock or manual stop before submission",
		}),
		riskRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orb_risk_rejections_total",
				Help: "Candidates rejected by the risk controller",
			},
			[]string{"reason"},
		),
		riskLocks: factory.NewCounter(prometheus.CounterOpts{
			Name: "orb_risk_locks_total",
			Help: "Daily loss limit locks",
		}),
		exits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orb_exits_total",
				Help: "Position exits split by reason",
			},
			[]string{"reason"},
		),
		qualified: factory.NewGauge(prometheus.GaugeOpts{
			Name: "orb_qualified_stocks",
			Help: "Number of symbols in the current qualified set",
		}),
		tickDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orb_tick_duration_seconds",
				Help:    "Duration of an evaluation tick",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"scope"},
		),
		providerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orb_provider_errors_total",
				Help: "Provider call failures split by provider and kind",
			},
			[]string{"provider", "kind"},
		),
	}
}

// NewNop returns a Recorder registered on a throwaway registry.
func NewNop() *Recorder {
	return New(prometheus.NewRegistry())
}

func (r *Recorder) RecordSignal(side string) {
	r.signals.WithLabelValues(side).Inc()
}

func (r *Recorder) RecordOrderAttempt() {
	r.ordersAttempted.Inc()
}

func (r *Recorder) RecordOrderPlaced() {
	r.ordersPlaced.Inc()
}

func (r *Recorder) RecordOrderFailed() {
	r.ordersFailed.Inc()
}

func (r *Recorder) RecordOrderHalted() {
	r.ordersHalted.Inc()
}

func (r *Recorder) RecordRiskRejection(reason string) {
	r.riskRejections.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordRiskLock() {
	r.riskLocks.Inc()
}

func (r *Recorder) RecordExit(reason string) {
	r.exits.WithLabelValues(reason).Inc()
}

func (r *Recorder) SetQualified(n int) {
	r.qualified.Set(float64(n))
}

// RecordTick records the duration of a tick in seconds.
func (r *Recorder) RecordTick(scope string, seconds float64) {
	r.tickDuration.WithLabelValues(scope).Observe(seconds)
}

func (r *Recorder) RecordProviderError(provider, kind string) {
	r.providerErrors.WithLabelValues(provider, kind).Inc()
}

package metrics

import (
	drepo "ThemePulse/internal/domain/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	_ drepo.Metrics = (*Recorder)(nil)
	_ drepo.Metrics = Nop{}
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksTotal   *prometheus.CounterVec
	dropsTotal   *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
	pushesTotal  *prometheus.CounterVec
	subscribers  *prometheus.GaugeVec
	reconnectsCt prometheus.Counter
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		ticksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "themepulse_ticks_total",
				Help: "Total number of decoded ticks applied to the price cache",
			},
			[]string{"code"},
		),
		dropsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "themepulse_dropped_total",
				Help: "Frames, ticks or pushes dropped without error",
			},
			[]string{"reason"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "themepulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "themepulse_last_price",
				Help: "Last recorded price for an instrument",
			},
			[]string{"code"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "themepulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		pushesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "themepulse_pushes_total",
				Help: "Snapshot broadcasts per channel",
			},
			[]string{"channel"},
		),
		subscribers: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "themepulse_push_subscribers",
				Help: "Subscribers reached by the last broadcast",
			},
			[]string{"channel"},
		),
		reconnectsCt: f.NewCounter(
			prometheus.CounterOpts{
				Name: "themepulse_feed_reconnects_total",
				Help: "Feed reconnect attempts",
			},
		),
	}
}

// RecordTick counts one applied tick.
func (r *Recorder) RecordTick(code string) {
	r.ticksTotal.WithLabelValues(code).Inc()
}

func (r *Recorder) RecordDrop(reason string) {
	r.dropsTotal.WithLabelValues(reason).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for an instrument.
func (r *Recorder) RecordLastPrice(code string, price float64) {
	r.lastPrice.WithLabelValues(code).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordPush(channel string, subscribers int) {
	r.pushesTotal.WithLabelValues(channel).Inc()
	r.subscribers.WithLabelValues(channel).Set(float64(subscribers))
}

func (r *Recorder) RecordReconnect() {
	r.reconnectsCt.Inc()
}

// Nop discards everything. Used by tests and when metrics are disabled.
type Nop struct{}

func (Nop) RecordTick(string)               {}
func (Nop) RecordDrop(string)               {}
func (Nop) RecordError(string)              {}
func (Nop) RecordLastPrice(string, float64) {}
func (Nop) RecordLatency(string, float64)   {}
func (Nop) RecordPush(string, int)          {}
func (Nop) RecordReconnect()                {}

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "themepulse",
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Open push WebSocket connections",
		},
	)

	WSClientMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "themepulse",
			Subsystem: "ws",
			Name:      "client_messages_total",
			Help:      "Client control messages by action and result",
		},
		[]string{"action", "result"},
	)

	RefreshRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "themepulse",
			Subsystem: "api",
			Name:      "refresh_rejected_total",
			Help:      "Forced snapshot refreshes rejected by the per-client limiter",
		},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(WSConnections, WSClientMessages, RefreshRejected)
	})
}

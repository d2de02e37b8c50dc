package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "wscomms"

type collectors struct {
	sessionsActive   *prometheus.GaugeVec
	sessionsTotal    *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec
	messagesSent     *prometheus.CounterVec
	messagesDropped  *prometheus.CounterVec
	bytesSent        *prometheus.CounterVec
}

var (
	collectorsMu         sync.Mutex
	collectorsByRegistry = map[prometheus.Registerer]*collectors{}
)

func newCollectors(reg prometheus.Registerer) *collectors {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectorsMu.Lock()
	defer collectorsMu.Unlock()

	if c, ok := collectorsByRegistry[reg]; ok {
		return c
	}

	factory := promauto.With(reg)
	c := &collectors{
		sessionsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_active",
			Help:      "Number of open sessions",
		}, []string{"route"}),
		sessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_total",
			Help:      "Total number of sessions accepted",
		}, []string{"route"}),
		messagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_received_total",
			Help:      "Total number of decoded inbound messages",
		}, []string{"route"}),
		messagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_sent_total",
			Help:      "Total number of outbound messages written",
		}, []string{"route"}),
		messagesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_dropped_total",
			Help:      "Total number of outbound messages dropped by coalescing",
		}, []string{"route"}),
		bytesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "bytes_sent_total",
			Help:      "Total number of outbound bytes written",
		}, []string{"route"}),
	}
	collectorsByRegistry[reg] = c
	return c
}

// RouteStats is a snapshot of one route's counters.
type RouteStats struct {
	Prefix           string
	Active           int
	TotalSessions    uint64
	MessagesReceived uint64
	MessagesSent     uint64
	MessagesDropped  uint64
	BytesSent        uint64
}

// Stats is a snapshot of server counters.
type Stats struct {
	Routes      []RouteStats
	Active      int
	CollectedAt time.Time
}

// routeCounters mirrors the Prometheus counters for Stats snapshots.
type routeCounters struct {
	sessions atomic.Uint64
	received atomic.Uint64
	sent     atomic.Uint64
	dropped  atomic.Uint64
	bytes    atomic.Uint64
}

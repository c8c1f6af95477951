package discovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type (
	metricsVecs struct {
		participants    prometheus.Gauge
		remoteReaders   prometheus.Gauge
		remoteWriters   prometheus.Gauge
		matched         prometheus.Gauge
		incompatibleQos prometheus.Counter
		cleanups        prometheus.Counter

		updatesSent    prometheus.Counter
		updatesDropped prometheus.Counter
	}

	dbMetrics struct {
		participants    prometheus.Gauge
		remoteReaders   prometheus.Gauge
		remoteWriters   prometheus.Gauge
		matched         prometheus.Gauge
		incompatibleQos prometheus.Counter
		cleanups        prometheus.Counter
	}

	queueMetrics struct {
		sent    prometheus.Counter
		dropped prometheus.Counter
	}
)

var discoveryVecs = newMetricsVecs()

func newMetricsVecs() metricsVecs {
	return metricsVecs{
		participants: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "discovery_participants",
			Help: "A gauge for the number of currently known remote participants.",
		}),
		remoteReaders: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "discovery_remote_readers",
			Help: "A gauge for the number of discovered remote readers.",
		}),
		remoteWriters: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "discovery_remote_writers",
			Help: "A gauge for the number of discovered remote writers.",
		}),
		matched: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "discovery_matched_endpoints",
			Help: "A gauge for the number of remote endpoints currently matched.",
		}),
		incompatibleQos: promauto.NewCounter(prometheus.CounterOpts{
			Name: "discovery_incompatible_qos_total",
			Help: "A counter for remote endpoints rejected for incompatible QoS.",
		}),
		cleanups: promauto.NewCounter(prometheus.CounterOpts{
			Name: "discovery_cleanups_total",
			Help: "A counter for participants and topics removed by cleanup.",
		}),
		updatesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "discovery_updates_sent_total",
			Help: "A counter for notifications delivered to the data path.",
		}),
		updatesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "discovery_updates_dropped_total",
			Help: "A counter for notifications dropped on queue overflow.",
		}),
	}
}

func (mv metricsVecs) newDBMetrics() dbMetrics {
	return dbMetrics{
		participants:    mv.participants,
		remoteReaders:   mv.remoteReaders,
		remoteWriters:   mv.remoteWriters,
		matched:         mv.matched,
		incompatibleQos: mv.incompatibleQos,
		cleanups:        mv.cleanups,
	}
}

func (mv metricsVecs) newQueueMetrics() queueMetrics {
	return queueMetrics{
		sent:    mv.updatesSent,
		dropped: mv.updatesDropped,
	}
}

func (m dbMetrics) setParticipants(n int) {
	m.participants.Set(float64(n))
}

func (m dbMetrics) setRemoteReaders(n int) {
	m.remoteReaders.Set(float64(n))
}

func (m dbMetrics) setRemoteWriters(n int) {
	m.remoteWriters.Set(float64(n))
}

func (m dbMetrics) setMatched(n int) {
	m.matched.Set(float64(n))
}

func (m dbMetrics) incIncompatibleQos() {
	m.incompatibleQos.Inc()
}

func (m dbMetrics) incCleanups() {
	m.cleanups.Inc()
}

func (m queueMetrics) incSent() {
	m.sent.Inc()
}

func (m queueMetrics) incDropped() {
	m.dropped.Inc()
}

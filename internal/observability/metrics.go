package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "meshdecode",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "meshdecode",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)
	packetsDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "meshdecode",
			Name:      "packets_total",
			Help:      "Packets decoded, by payload type and validity.",
		},
		[]string{"payload_type", "valid"},
	)
	packetsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "meshdecode",
			Name:      "rejects_total",
			Help:      "Inputs rejected before decoding.",
		},
		[]string{"reason"},
	)
	packetBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "meshdecode",
			Name:      "packet_bytes",
			Help:      "Decoded packet sizes in bytes.",
			Buckets:   prometheus.ExponentialBuckets(4, 2, 9),
		},
	)
	streamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "meshdecode",
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Connected live stream subscribers.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, packetsDecoded, packetsRejected, packetBytes, streamClients)
	})
}

func RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordPacket counts one decoded packet. payloadType is the type name, e.g.
// NODEINFO or UNKNOWN(5).
func RecordPacket(payloadType string, valid bool, size int) {
	RegisterMetrics()
	packetsDecoded.WithLabelValues(payloadType, strconv.FormatBool(valid)).Inc()
	packetBytes.Observe(float64(size))
}

func RecordReject(reason string) {
	RegisterMetrics()
	packetsRejected.WithLabelValues(reason).Inc()
}

func SetStreamClients(n int) {
	RegisterMetrics()
	streamClients.Set(float64(n))
}

package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "gfhanger"

// metrics holds the Prometheus collectors of one Client.
type metrics struct {
	dialAttempts  prometheus.Counter
	dialFailures  prometheus.Counter
	reconnects    prometheus.Counter
	connected     prometheus.Gauge
	framesIn      *prometheus.CounterVec
	framesOut     prometheus.Counter
	framesDropped prometheus.Counter
	bytesIn       prometheus.Counter
	bytesOut      prometheus.Counter
	noiseBytes    prometheus.Counter
	malformed     prometheus.Counter
	logins        *prometheus.CounterVec
	commands      *prometheus.CounterVec
	commandTime   prometheus.Histogram
	devices       prometheus.Gauge
	events        prometheus.Counter
	eventsDropped prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	opts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "gateway",
			Name:      name,
			Help:      help,
		}
	}

	return &metrics{
		dialAttempts:  factory.NewCounter(opts("dial_attempts_total", "TCP dial attempts to the gateway")),
		dialFailures:  factory.NewCounter(opts("dial_failures_total", "Failed TCP dial attempts")),
		reconnects:    factory.NewCounter(opts("reconnects_total", "Reconnects triggered by sending on a closed connection")),
		framesOut:     factory.NewCounter(opts("frames_sent_total", "Frames written to the gateway")),
		framesDropped: factory.NewCounter(opts("frames_dropped_total", "Frames decoded after the connection was closed")),
		bytesIn:       factory.NewCounter(opts("received_bytes_total", "Bytes read from the gateway")),
		bytesOut:      factory.NewCounter(opts("sent_bytes_total", "Bytes written to the gateway")),
		noiseBytes:    factory.NewCounter(opts("noise_bytes_total", "Bytes discarded while resynchronizing")),
		malformed:     factory.NewCounter(opts("malformed_messages_total", "Payload frames that could not be decoded")),
		events:        factory.NewCounter(opts("status_events_total", "Status events delivered to subscribers")),
		eventsDropped: factory.NewCounter(opts("status_events_dropped_total", "Status events dropped on full subscriber buffers")),

		framesIn: factory.NewCounterVec(opts("frames_received_total", "Frames received from the gateway"), []string{"type"}),
		logins:   factory.NewCounterVec(opts("logins_total", "Login attempts by result"), []string{"result"}),
		commands: factory.NewCounterVec(opts("commands_total", "Motor commands by operation and result"), []string{"operation", "result"}),

		connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "gateway",
			Name:      "connected",
			Help:      "1 while a gateway connection is open",
		}),
		devices: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "gateway",
			Name:      "devices",
			Help:      "Devices in the registry",
		}),
		commandTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "gateway",
			Name:      "command_duration_seconds",
			Help:      "Time from sending a motor command to a resting position",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
	}
}

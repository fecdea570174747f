package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Engine metrics
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caption_client_events_total",
		Help: "Total number of inbound events by kind",
	}, []string{"kind"}) // kind: translation, lifecycle, tts, error, unknown

	droppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caption_client_dropped_events_total",
		Help: "Total number of events ignored by the caption engine",
	}, []string{"reason"})

	committedLines = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caption_client_committed_lines_total",
		Help: "Total number of caption lines committed",
	})

	trimmedLines = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caption_client_trimmed_lines_total",
		Help: "Total number of committed lines dropped by the line cap",
	})

	correctionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caption_client_corrections_total",
		Help: "Total number of in-place corrections of committed lines",
	}, []string{"update_type"})

	ingestLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "caption_client_ingest_latency_seconds",
		Help:    "Time spent applying one event to caption state",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
	})

	listenerPanics = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caption_client_listener_panics_total",
		Help: "Total number of recovered listener panics",
	}, []string{"listener"})

	// Connection metrics
	connectionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "caption_client_connection_status",
		Help: "Current connection status (1 for the active status, 0 otherwise)",
	}, []string{"status"})

	connectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caption_client_connect_attempts_total",
		Help: "Total number of transport connection attempts",
	}, []string{"result"})

	connectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "caption_client_connection_duration_seconds",
		Help:    "Lifetime of transport connections in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 300, 900, 3600},
	})

	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caption_client_frames_total",
		Help: "Total number of transport frames received",
	}, []string{"result"}) // result: ok, malformed, binary

	frameBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caption_client_frame_bytes_total",
		Help: "Total bytes of transport frames received",
	})
)

var statusLabels = []string{"disconnected", "connecting", "connected", "closed", "error"}

// RecordEvent counts one inbound event
func RecordEvent(kind string) {
	eventsTotal.WithLabelValues(kind).Inc()
}

// RecordDrop counts one ignored event
func RecordDrop(reason string) {
	droppedTotal.WithLabelValues(reason).Inc()
}

// RecordCommit counts committed lines
func RecordCommit(lines int) {
	committedLines.Add(float64(lines))
}

// RecordTrimmedLines counts lines dropped from the head of the commit log
func RecordTrimmedLines(lines int) {
	trimmedLines.Add(float64(lines))
}

// RecordCorrection counts one in-place correction
func RecordCorrection(updateType string) {
	if updateType == "" {
		updateType = "none"
	}
	correctionsTotal.WithLabelValues(updateType).Inc()
}

// ObserveIngest records the time taken to apply one event
func ObserveIngest(d time.Duration) {
	ingestLatency.Observe(d.Seconds())
}

// RecordListenerPanic counts a recovered listener panic
func RecordListenerPanic(listener string) {
	listenerPanics.WithLabelValues(listener).Inc()
}

// SetConnectionStatus marks status as the active connection status
func SetConnectionStatus(status string) {
	for _, s := range statusLabels {
		v := 0.0
		if s == status {
			v = 1
		}
		connectionStatus.WithLabelValues(s).Set(v)
	}
}

// ConnectionMetrics tracks metrics for a single transport connection
type ConnectionMetrics struct {
	connectionID string
	connectedAt  time.Time
	mu           sync.Mutex
}

// NewConnectionMetrics creates a metrics tracker for one connection attempt
func NewConnectionMetrics(connectionID string) *ConnectionMetrics {
	return &ConnectionMetrics{connectionID: connectionID}
}

// RecordConnectResult records the outcome of a dial
func (m *ConnectionMetrics) RecordConnectResult(success bool) {
	result := "success"
	if !success {
		result = "error"
	} else {
		m.mu.Lock()
		m.connectedAt = time.Now()
		m.mu.Unlock()
	}
	connectAttempts.WithLabelValues(result).Inc()
}

// RecordClosed records the lifetime of an established connection
func (m *ConnectionMetrics) RecordClosed() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connectedAt.IsZero() {
		connectionDuration.Observe(time.Since(m.connectedAt).Seconds())
		m.connectedAt = time.Time{}
	}
}

// RecordFrame records one received frame
func (m *ConnectionMetrics) RecordFrame(result string, size int) {
	framesTotal.WithLabelValues(result).Inc()
	frameBytes.Add(float64(size))
}

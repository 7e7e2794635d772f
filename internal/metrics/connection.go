package metrics

import "time"

// ConnectionMetrics tracks one client connection's activity: frame/byte
// counters, a sliding window of recent encode durations, and input/error
// counts. Written only by the connection's own session loop and exposed
// through Session.Metrics; the Prometheus Registry keeps its own
// process-wide counters and has no per-connection gauges.
//
// Grounded on original_source/vnc_lib/metrics.py's ConnectionMetrics
// dataclass.
type ConnectionMetrics struct {
	ClientID     string
	ConnectedAt  time.Time
	lastActivity time.Time

	FramesSent    int64
	BytesSent     int64
	BytesReceived int64

	EncodeTimes        *SlidingWindow[float64]
	CompressionRatios  *SlidingWindow[float64]

	KeyEvents     int64
	PointerEvents int64
	ErrorCount    int64
}

func NewConnectionMetrics(clientID string) *ConnectionMetrics {
	now := time.Now()
	return &ConnectionMetrics{
		ClientID:          clientID,
		ConnectedAt:       now,
		lastActivity:      now,
		EncodeTimes:       NewSlidingWindow[float64](100),
		CompressionRatios: NewSlidingWindow[float64](100),
	}
}

func (m *ConnectionMetrics) touch() { m.lastActivity = time.Now() }

// RecordFrame records one encoded-and-sent frame: bytesSent is the
// on-wire size, encodeTime the wall time spent encoding it, originalSize
// the uncompressed source size (used to derive the compression ratio).
func (m *ConnectionMetrics) RecordFrame(bytesSent int, encodeTime time.Duration, originalSize int) {
	m.FramesSent++
	m.BytesSent += int64(bytesSent)
	m.EncodeTimes.Add(encodeTime.Seconds())
	if originalSize > 0 {
		m.CompressionRatios.Add(float64(bytesSent) / float64(originalSize))
	}
	m.touch()
}

func (m *ConnectionMetrics) RecordKeyEvent() {
	m.KeyEvents++
	m.touch()
}

func (m *ConnectionMetrics) RecordPointerEvent() {
	m.PointerEvents++
	m.touch()
}

func (m *ConnectionMetrics) RecordError() {
	m.ErrorCount++
}

// AvgEncodingTime returns the mean encode time, in seconds, over the
// sliding window of recent frames.
func (m *ConnectionMetrics) AvgEncodingTime() float64 { return m.EncodeTimes.Average() }

// AvgCompressionRatio returns the mean on-wire-to-original size ratio over
// the sliding window; 1.0 (no compression recorded) when empty.
func (m *ConnectionMetrics) AvgCompressionRatio() float64 {
	if m.CompressionRatios.Len() == 0 {
		return 1.0
	}
	return m.CompressionRatios.Average()
}

// FPS estimates frames-per-second from the recent encode-time window.
func (m *ConnectionMetrics) FPS() float64 {
	n := m.EncodeTimes.Len()
	if n < 2 {
		return 0
	}
	avg := m.AvgEncodingTime()
	window := float64(n) * avg
	if window <= 0 {
		return 0
	}
	return float64(n) / window
}

// Uptime returns how long this connection has been alive.
func (m *ConnectionMetrics) Uptime() time.Duration { return time.Since(m.ConnectedAt) }

// LastActivity returns the time of the most recently recorded event.
func (m *ConnectionMetrics) LastActivity() time.Time { return m.lastActivity }

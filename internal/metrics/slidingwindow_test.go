package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlidingWindowAverage(t *testing.T) {
	w := NewSlidingWindow[float64](3)
	w.Add(1)
	w.Add(2)
	w.Add(3)
	require.Equal(t, 2.0, w.Average())
}

func TestSlidingWindowOverwritesOldest(t *testing.T) {
	w := NewSlidingWindow[int](3)
	w.Add(1)
	w.Add(2)
	w.Add(3)
	w.Add(4) // overwrites the 1

	require.Equal(t, 3, w.Len())
	min, ok := w.Min()
	require.True(t, ok)
	require.Equal(t, 2, min)
	max, ok := w.Max()
	require.True(t, ok)
	require.Equal(t, 4, max)
}

func TestSlidingWindowEmpty(t *testing.T) {
	w := NewSlidingWindow[float64](5)
	require.Equal(t, 0.0, w.Average())
	_, ok := w.Min()
	require.False(t, ok)
}

func TestSlidingWindowPercentile(t *testing.T) {
	w := NewSlidingWindow[float64](5)
	for _, v := range []float64{10, 20, 30, 40, 50} {
		w.Add(v)
	}
	require.Equal(t, 30.0, w.Percentile(50))
	require.Equal(t, 50.0, w.Percentile(100))
	require.Equal(t, 10.0, w.Percentile(0))
}

func TestSlidingWindowClear(t *testing.T) {
	w := NewSlidingWindow[int](3)
	w.Add(1)
	w.Clear()
	require.Equal(t, 0, w.Len())
}

func TestConnectionMetricsRecordFrame(t *testing.T) {
	m := NewConnectionMetrics("client-1")
	m.RecordFrame(1000, 0, 2000)
	require.Equal(t, int64(1), m.FramesSent)
	require.Equal(t, int64(1000), m.BytesSent)
	require.InDelta(t, 0.5, m.AvgCompressionRatio(), 0.0001)
}

func TestConnectionMetricsDefaultCompressionRatio(t *testing.T) {
	m := NewConnectionMetrics("client-1")
	require.Equal(t, 1.0, m.AvgCompressionRatio())
}

package folioAuth

import (
	"sync/atomic"
	"testing"
	"time"
)

func BenchmarkMetricsInc(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricLoginSuccess)
	}
}

func BenchmarkMetricsIncDisabledParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricLoginSuccess)
		}
	})
}

func BenchmarkMetricsObserveAuthenticateLatency(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	d := 180 * time.Millisecond
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricAuthenticateLatency, d)
		}
	})
}

// packedMetrics keeps counters adjacent so the padded layout has something
// to be compared against.
type packedMetrics struct {
	counters [metricIDCount]uint64
}

func (m *packedMetrics) Inc(id MetricID) {
	atomic.AddUint64(&m.counters[id], 1)
}

var loginPathMetrics = [...]MetricID{
	MetricLoginSuccess,
	MetricLoginFailure,
	MetricLoginTwoFactorRequired,
	MetricRegisterSuccess,
	MetricVerificationIssued,
	MetricEmailVerified,
	MetricResetRequested,
	MetricClaimsRefreshed,
}

func benchmarkMixed(b *testing.B, inc func(MetricID)) {
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		idx := 0
		for pb.Next() {
			inc(loginPathMetrics[idx])
			idx = (idx + 1) % len(loginPathMetrics)
		}
	})
}

func BenchmarkMetricsMixedPadded(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	benchmarkMixed(b, m.Inc)
}

func BenchmarkMetricsMixedPacked(b *testing.B) {
	m := &packedMetrics{}
	benchmarkMixed(b, m.Inc)
}

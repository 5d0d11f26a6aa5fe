package adfsmfa

import (
	"sync/atomic"
	"time"
)

// MetricID names one engine counter or histogram.
type MetricID uint16

// Engine counters, one per business event. MetricAdvanceLatency is the only
// histogram.
const (
	MetricAttemptStarted MetricID = iota
	MetricChallengeIssued
	MetricChallengeResent
	MetricVerifySuccess
	MetricVerifyFailure
	MetricPinRejected
	MetricRetryExhausted
	MetricWindowExpired
	MetricTerminalLock
	MetricIdentityLockout
	MetricEnrollmentStarted
	MetricEnrollmentCompleted
	MetricEnrollmentCancelled
	MetricEnrollmentRollback
	MetricForcedEnrollment
	MetricCredentialRemoved
	MetricCredentialRemoveRejected
	MetricActivation
	MetricOptionsSaved
	MetricPasswordChangeSuccess
	MetricPasswordChangeFailure
	MetricAdminRequestSent
	MetricKeyRequestSent
	MetricClaimsIssued
	MetricFatalError
	MetricAdvanceLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds in-process counters. All methods are safe for concurrent
// use and are no-ops on a nil or disabled receiver.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a Metrics configured from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counting is active.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the Advance latency histogram is active.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the latency histogram for id.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricAdvanceLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current counter for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and histogram into maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, metricIDCount),
		Histograms: make(map[MetricID][]uint64),
	}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricAdvanceLatency].buckets[i])
		}
		snap.Histograms[MetricAdvanceLatency] = buckets
	}
	return snap
}

// bucketIndex maps a latency to one of eight power-of-two millisecond
// buckets: <1ms, <2ms, <4ms, ... , >=64ms.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()
	bound := int64(1)
	for i := 0; i < histBucketCount-1; i++ {
		if ms < bound {
			return i
		}
		bound <<= 1
	}
	return histBucketCount - 1
}

package adfsmfa

import (
	"testing"
	"time"

	"github.com/neos-sdi/adfsmfa-sub013/session"
)

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{})
	m.Inc(MetricAttemptStarted)
	if m.Value(MetricAttemptStarted) != 0 {
		t.Fatal("disabled metrics counted")
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricAttemptStarted)
	if nilMetrics.Value(MetricAttemptStarted) != 0 {
		t.Fatal("nil metrics counted")
	}
	if nilMetrics.Enabled() {
		t.Fatal("nil metrics enabled")
	}
}

func TestMetricsCountersAndSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricVerifySuccess)
	m.Inc(MetricVerifySuccess)
	m.Inc(MetricVerifyFailure)

	if got := m.Value(MetricVerifySuccess); got != 2 {
		t.Fatalf("success = %d, want 2", got)
	}
	snap := m.Snapshot()
	if snap.Counters[MetricVerifySuccess] != 2 || snap.Counters[MetricVerifyFailure] != 1 {
		t.Fatalf("snapshot = %+v", snap.Counters)
	}
	if len(snap.Histograms) != 0 {
		t.Fatal("histogram populated without latency enabled")
	}
}

func TestMetricsLatencyHistogram(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricAdvanceLatency, 500*time.Microsecond)
	m.Observe(MetricAdvanceLatency, 3*time.Millisecond)
	m.Observe(MetricAdvanceLatency, time.Second)

	buckets := m.Snapshot().Histograms[MetricAdvanceLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("bucket count = %d", len(buckets))
	}
	if buckets[0] != 1 {
		t.Fatalf("sub-millisecond bucket = %d, want 1", buckets[0])
	}
	if buckets[histBucketCount-1] != 1 {
		t.Fatalf("overflow bucket = %d, want 1", buckets[histBucketCount-1])
	}
	var total uint64
	for _, b := range buckets {
		total += b
	}
	if total != 3 {
		t.Fatalf("total observations = %d, want 3", total)
	}
}

func TestBucketIndexBounds(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{999 * time.Microsecond, 0},
		{time.Millisecond, 1},
		{3 * time.Millisecond, 2},
		{63 * time.Millisecond, 6},
		{64 * time.Millisecond, 7},
		{time.Hour, 7},
	}
	for _, tc := range tests {
		if got := bucketIndex(tc.d); got != tc.want {
			t.Errorf("bucketIndex(%v) = %d, want %d", tc.d, got, tc.want)
		}
	}
}

// The engine's counters track the business events of an attempt.
func TestEngineCountsAttemptLifecycle(t *testing.T) {
	user := enabledUser("alice", session.FactorOTP)
	engine, backend := newTestEngine(t, newFakeRepo(user), func(cfg *Config, b *Builder) {
		cfg.Metrics.Enabled = true
	})

	sc := startChallenge(t, engine)
	backend.verifyResult = ResultDenied
	advanceFields(t, engine, sc, map[string]string{"code": "000000"})
	backend.verifyResult = ResultSuccess
	advanceFields(t, engine, sc, map[string]string{"code": "123456"})

	snap := engine.MetricsSnapshot()
	checks := map[MetricID]uint64{
		MetricAttemptStarted:  1,
		MetricChallengeIssued: 1,
		MetricVerifyFailure:   1,
		MetricVerifySuccess:   1,
		MetricClaimsIssued:    1,
	}
	for id, want := range checks {
		if got := snap.Counters[id]; got != want {
			t.Errorf("counter %d = %d, want %d", id, got, want)
		}
	}
}

// The Advance histogram must measure the whole handler call, including the
// backend round-trip, not the time to reach the first instruction.
func TestAdvanceLatencyCoversHandlerTime(t *testing.T) {
	user := enabledUser("alice", session.FactorOTP)
	engine, backend := newTestEngine(t, newFakeRepo(user), func(cfg *Config, b *Builder) {
		cfg.Metrics.Enabled = true
		cfg.Metrics.EnableLatencyHistograms = true
	})
	backend.verifyDelay = 10 * time.Millisecond

	sc := startChallenge(t, engine)
	advanceFields(t, engine, sc, map[string]string{"code": "123456"})

	buckets := engine.MetricsSnapshot().Histograms[MetricAdvanceLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("bucket count = %d, want %d", len(buckets), histBucketCount)
	}
	var total uint64
	for _, n := range buckets {
		total += n
	}
	if total != 1 {
		t.Fatalf("observations = %d, want 1", total)
	}
	if buckets[0] != 0 {
		t.Fatal("a 10ms advance landed in the sub-millisecond bucket")
	}
}

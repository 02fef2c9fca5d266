package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Counters(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("dispatch_sent_total", map[string]string{"channel": "email"}, "sent")
	r.IncrementCounter("dispatch_sent_total", map[string]string{"channel": "email"}, "sent")
	r.AddToCounter("dispatch_sent_total", 3, map[string]string{"channel": "email"}, "sent")

	assert.Equal(t, float64(5), r.CounterValue("dispatch_sent_total", map[string]string{"channel": "email"}))
	assert.Equal(t, float64(0), r.CounterValue("dispatch_sent_total", map[string]string{"channel": "telegram"}))
	assert.Equal(t, float64(0), r.CounterValue("unknown", nil))
}

func TestRegistry_LabelKeyOrderIrrelevant(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("skips", map[string]string{"channel": "email", "reason": "rate_limit"}, "")
	got := r.CounterValue("skips", map[string]string{"reason": "rate_limit", "channel": "email"})
	assert.Equal(t, float64(1), got, "label maps with the same entries must address the same series")
}

func TestRegistry_Timers(t *testing.T) {
	r := NewRegistry()

	r.RecordTimer("batch_duration", 10*time.Millisecond, nil)
	r.RecordTimer("batch_duration", 30*time.Millisecond, nil)

	all := r.GetAllMetrics()
	timers, ok := all["timers"].(map[string]*TimerMetric)
	require.True(t, ok)
	timer, ok := timers["batch_duration"]
	require.True(t, ok)

	assert.Equal(t, int64(2), timer.Count)
	assert.Equal(t, float64(10), timer.Min)
	assert.Equal(t, float64(30), timer.Max)
	assert.Equal(t, float64(20), timer.Average)
}

func TestRegistry_Gauges(t *testing.T) {
	r := NewRegistry()

	r.SetGauge("pending_approvals", 7, nil, "queue depth")
	r.SetGauge("pending_approvals", 3, nil, "queue depth")

	all := r.GetAllMetrics()
	gauges, ok := all["gauges"].(map[string]*Metric)
	require.True(t, ok)
	require.Contains(t, gauges, "pending_approvals")
	assert.Equal(t, float64(3), gauges["pending_approvals"].Value, "gauges overwrite, not accumulate")
}

func TestRegistry_SnapshotIsolation(t *testing.T) {
	r := NewRegistry()
	r.IncrementCounter("c", nil, "")

	all := r.GetAllMetrics()
	counters, ok := all["counters"].(map[string]*Metric)
	require.True(t, ok)
	counters["c"].Value = 99

	assert.Equal(t, float64(1), r.CounterValue("c", nil), "mutating a snapshot must not touch the registry")
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				r.IncrementCounter("hits", nil, "")
				r.RecordTimer("t", time.Millisecond, nil)
				_ = r.GetAllMetrics()
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, float64(800), r.CounterValue("hits", nil))
}

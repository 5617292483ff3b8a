package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestCountersAreConcurrencySafe(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementCounter(NumbersAllocated)
		}()
	}
	wg.Wait()

	require.Equal(t, int64(50), m.GetCounters()[NumbersAllocated])
}

func TestRecordTimer(t *testing.T) {
	m := NewMetrics()
	m.RecordTimer("op", 10*time.Millisecond)
	m.RecordTimer("op", 30*time.Millisecond)

	timer := m.GetTimers()["op"]
	require.Equal(t, int64(2), timer.Count)
	require.Equal(t, int64(10), timer.MinTimeMs)
	require.Equal(t, int64(30), timer.MaxTimeMs)
	require.InDelta(t, 20.0, timer.AverageTimeMs, 0.001)
}

func TestRecordOutcome(t *testing.T) {
	m := NewMetrics()
	m.RecordOutcome("db_query", nil)
	m.RecordOutcome("db_query", errors.New("boom"))

	rate := m.GetErrorRates()["db_query"]
	require.Equal(t, int64(2), rate.Total)
	require.Equal(t, int64(1), rate.Errors)
	require.InDelta(t, 50.0, rate.ErrorRate, 0.001)
}

func TestRecordPass(t *testing.T) {
	m := NewMetrics()
	m.RecordPass(3, 1, 2, false, time.Second)
	m.RecordPass(0, 0, 0, true, 0)

	counters := m.GetCounters()
	require.Equal(t, int64(2), counters[RecurrencePasses])
	require.Equal(t, int64(1), counters[RecurrencePassLocked])
	require.Equal(t, int64(3), counters[RecurrenceGenerated])
	require.Equal(t, int64(2), counters[RecurrenceFailures])
	require.Equal(t, int64(6), m.GetGauges()[RecurrenceLastPassDue])
}

func TestNilMetricsDropsMeasurements(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.IncrementCounter("x")
		m.SetGauge("x", 1)
		m.RecordTimer("x", time.Second)
		m.RecordError("x")
		m.SetHealth("x", true)
		m.RecordPass(1, 0, 0, false, time.Second)
	})
}

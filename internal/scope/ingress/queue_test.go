package ingress

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sonarscope/internal/scope"
)

func sampleAt(d float64) scope.Sample {
	return scope.Sample{Distance: d}
}

func distances(samples []scope.Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Distance
	}
	return out
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(4, nil)
	for i := 1; i <= 3; i++ {
		assert.True(t, q.Push(sampleAt(float64(i))))
	}
	assert.Equal(t, 3, q.Len())

	got := q.Drain(nil)
	assert.Equal(t, []float64{1, 2, 3}, distances(got))
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.Drain(nil))
}

func TestQueue_DropOldestRetainsMostRecent(t *testing.T) {
	counters := scope.NewCounters()
	const capacity = 5
	q := NewQueue(capacity, counters)

	const n = 12
	for i := 1; i <= n; i++ {
		q.Push(sampleAt(float64(i)))
	}

	got := q.Drain(nil)
	require.Len(t, got, capacity)
	assert.Equal(t, []float64{8, 9, 10, 11, 12}, distances(got))
	assert.Equal(t, uint64(n-capacity), q.Overruns())
	assert.Equal(t, uint64(n-capacity), counters.Load(scope.SignalIngressOverrun))
}

func TestQueue_WrapsAcrossDrains(t *testing.T) {
	q := NewQueue(3, nil)
	q.Push(sampleAt(1))
	q.Push(sampleAt(2))
	assert.Equal(t, []float64{1, 2}, distances(q.Drain(nil)))

	q.Push(sampleAt(3))
	q.Push(sampleAt(4))
	q.Push(sampleAt(5))
	q.Push(sampleAt(6))
	assert.Equal(t, []float64{4, 5, 6}, distances(q.Drain(nil)))
}

func TestQueue_Discard(t *testing.T) {
	q := NewQueue(3, nil)
	q.Push(sampleAt(1))
	q.Push(sampleAt(2))
	assert.Equal(t, 2, q.Discard())
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.Drain(nil))
}

func TestQueue_Resize(t *testing.T) {
	q := NewQueue(3, nil)
	q.Push(sampleAt(1))
	q.Push(sampleAt(2))
	assert.Equal(t, 2, q.Resize(5))
	assert.Equal(t, 5, q.Cap())
	assert.Equal(t, 0, q.Len())

	for i := 1; i <= 6; i++ {
		q.Push(sampleAt(float64(i)))
	}
	assert.Equal(t, []float64{2, 3, 4, 5, 6}, distances(q.Drain(nil)))
}

func TestQueue_MinimumCapacity(t *testing.T) {
	q := NewQueue(0, nil)
	assert.Equal(t, 1, q.Cap())
	q.Push(sampleAt(1))
	q.Push(sampleAt(2))
	assert.Equal(t, []float64{2}, distances(q.Drain(nil)))
}

func TestQueue_ConcurrentPushDrain(t *testing.T) {
	q := NewQueue(64, nil)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10000; i++ {
			q.Push(sampleAt(float64(i)))
		}
	}()

	buf := make([]scope.Sample, 0, 64)
	drained := 0
	for i := 0; i < 200; i++ {
		buf = q.Drain(buf[:0])
		assert.LessOrEqual(t, len(buf), 64)
		drained += len(buf)
	}
	wg.Wait()
	buf = q.Drain(buf[:0])
	drained += len(buf)

	assert.LessOrEqual(t, len(buf), 64)
	assert.Equal(t, uint64(10000), uint64(drained)+q.Overruns())
}

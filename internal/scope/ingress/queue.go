package ingress

import (
	"sync"

	"github.com/banshee-data/sonarscope/internal/scope"
)

// Queue is a bounded FIFO of pending samples. Push never blocks: when the
// queue is full the oldest pending sample is overwritten, so the samples
// drained at the next tick are always the most recent ones.
//
// The lock is held only to copy a sample in or a batch out; the render task
// never holds it while touching the field.
type Queue struct {
	mu       sync.Mutex
	buf      []scope.Sample
	head     int // index of oldest pending sample
	size     int
	overruns uint64
	counters *scope.Counters
}

// NewQueue creates a queue holding at most capacity samples. counters may be
// nil.
func NewQueue(capacity int, counters *scope.Counters) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		buf:      make([]scope.Sample, capacity),
		counters: counters,
	}
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Len returns the number of pending samples.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Push appends s. It reports false when an older sample had to be dropped
// to make room.
func (q *Queue) Push(s scope.Sample) bool {
	q.mu.Lock()
	capacity := len(q.buf)
	if q.size < capacity {
		q.buf[(q.head+q.size)%capacity] = s
		q.size++
		q.mu.Unlock()
		return true
	}
	// Full: overwrite the oldest and advance head.
	q.buf[q.head] = s
	q.head = (q.head + 1) % capacity
	q.overruns++
	q.mu.Unlock()

	q.counters.Record(scope.SignalIngressOverrun, 1)
	return false
}

// Drain appends every pending sample to dst in arrival order and empties
// the queue.
func (q *Queue) Drain(dst []scope.Sample) []scope.Sample {
	q.mu.Lock()
	defer q.mu.Unlock()

	capacity := len(q.buf)
	for i := 0; i < q.size; i++ {
		idx := (q.head + i) % capacity
		dst = append(dst, q.buf[idx])
		q.buf[idx] = scope.Sample{}
	}
	q.head = 0
	q.size = 0
	return dst
}

// Discard drops everything pending and returns how many samples were lost.
func (q *Queue) Discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.size
	clear(q.buf)
	q.head = 0
	q.size = 0
	return n
}

// Resize discards everything pending and changes the capacity. It returns
// the number of samples lost.
func (q *Queue) Resize(capacity int) int {
	if capacity < 1 {
		capacity = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.size
	if capacity == len(q.buf) {
		clear(q.buf)
	} else {
		q.buf = make([]scope.Sample, capacity)
	}
	q.head = 0
	q.size = 0
	return n
}

// Overruns returns the cumulative number of samples dropped because the
// queue was full.
func (q *Queue) Overruns() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.overruns
}

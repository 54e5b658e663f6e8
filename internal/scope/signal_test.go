package scope

import (
	"sync"
	"testing"
)

func TestCounters_RecordAndSnapshot(t *testing.T) {
	c := NewCounters()

	var mu sync.Mutex
	seen := map[Signal]uint64{}
	c.SetHandler(func(sig Signal, n uint64) {
		mu.Lock()
		seen[sig] += n
		mu.Unlock()
	})

	c.Record(SignalOutOfRange, 1)
	c.Record(SignalIngressOverrun, 3)
	c.Record(SignalIngressOverrun, 0) // ignored
	c.Record(Signal(99), 1)           // ignored

	if got := c.Load(SignalOutOfRange); got != 1 {
		t.Errorf("out_of_range = %d, want 1", got)
	}
	if got := c.Load(SignalIngressOverrun); got != 3 {
		t.Errorf("ingress_overrun = %d, want 3", got)
	}

	snap := c.Snapshot()
	if snap["ingress_overrun"] != 3 || snap["field_reset"] != 0 {
		t.Errorf("unexpected snapshot %v", snap)
	}
	if len(snap) != int(numSignals) {
		t.Errorf("snapshot has %d keys, want %d", len(snap), numSignals)
	}

	mu.Lock()
	defer mu.Unlock()
	if seen[SignalIngressOverrun] != 3 || seen[SignalOutOfRange] != 1 {
		t.Errorf("handler saw %v", seen)
	}
}

func TestCounters_NilSafe(t *testing.T) {
	var c *Counters
	c.Record(SignalFieldReset, 1)
	if c.Load(SignalFieldReset) != 0 {
		t.Error("nil counters should load zero")
	}
}

func TestCounters_Concurrent(t *testing.T) {
	c := NewCounters()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Record(SignalInvalidReading, 1)
			}
		}()
	}
	wg.Wait()
	if got := c.Load(SignalInvalidReading); got != 8000 {
		t.Errorf("invalid_reading = %d, want 8000", got)
	}
}

func TestSignal_String(t *testing.T) {
	if SignalFieldReset.String() != "field_reset" {
		t.Errorf("String() = %q", SignalFieldReset.String())
	}
	if Signal(-1).String() != "unknown" {
		t.Errorf("String() for invalid = %q", Signal(-1).String())
	}
}

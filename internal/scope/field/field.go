package field

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/banshee-data/sonarscope/internal/monitoring"
	"github.com/banshee-data/sonarscope/internal/scope"
)

// Cell is one bucket of the persistence grid.
type Cell struct {
	Brightness  float64
	LastUpdated time.Time
}

// CellSample is a lit cell as seen by a snapshot.
type CellSample struct {
	Bucket      Bucket
	Brightness  float64
	LastUpdated time.Time
}

// Snapshot is an immutable copy of the lit cells, ordered by bucket index.
type Snapshot struct {
	Geometry Geometry
	Cells    []CellSample
}

// Len returns the number of lit cells.
func (s Snapshot) Len() int { return len(s.Cells) }

// Field is the persistence buffer.
type Field struct {
	geom     Geometry
	halfLife time.Duration
	floor    float64
	maxBatch int
	counters *scope.Counters

	cells []Cell
	// active holds the index of every cell with Brightness > 0. Decay and
	// snapshot walk only this list.
	active []int

	// scratch for AccumulateBatch coalescing
	lastInBatch map[int]int
	order       []int
}

// New allocates a field for cfg. cfg must already be valid.
func New(cfg scope.DisplayConfig, counters *scope.Counters) *Field {
	geom := GeometryOf(cfg)
	return &Field{
		geom:     geom,
		halfLife: cfg.DecayHalfLife,
		floor:    cfg.DecayFloor,
		maxBatch: cfg.MaxSamplesPerTick,
		counters: counters,
		cells:    make([]Cell, geom.Cells()),
	}
}

// Geometry returns the bucket layout.
func (f *Field) Geometry() Geometry { return f.geom }

// Lit returns the number of cells currently above zero.
func (f *Field) Lit() int { return len(f.active) }

// At returns the cell at b. Out-of-grid buckets read as zero.
func (f *Field) At(b Bucket) Cell {
	if b.Angle < 0 || b.Angle >= f.geom.AngleBuckets || b.Range < 0 || b.Range >= f.geom.RangeBuckets {
		return Cell{}
	}
	return f.cells[f.geom.Index(b)]
}

// Accumulate lights the bucket s falls in. Brightness becomes
// max(current, s.Level()). A reading beyond MaxRange is dropped, counted as
// SignalOutOfRange and reported as ErrOutOfRange.
func (f *Field) Accumulate(s scope.Sample) error {
	b, ok := f.geom.Locate(s.Angle, s.Distance)
	if !ok {
		f.counters.Record(scope.SignalOutOfRange, 1)
		return fmt.Errorf("%w: distance %v exceeds max range %v", scope.ErrOutOfRange, s.Distance, f.geom.MaxRange)
	}
	f.write(f.geom.Index(b), s)
	return nil
}

func (f *Field) write(idx int, s scope.Sample) {
	c := &f.cells[idx]
	level := s.Level()
	if c.Brightness == 0 && level > 0 {
		f.active = append(f.active, idx)
	}
	c.Brightness = math.Max(c.Brightness, level)
	c.LastUpdated = s.CapturedAt
}

// AccumulateBatch applies one tick's worth of samples in arrival order and
// returns how many landed in the grid. When the batch is larger than
// MaxSamplesPerTick it is first coalesced so each bucket only takes the last
// sample addressed to it.
func (f *Field) AccumulateBatch(samples []scope.Sample) int {
	if f.maxBatch <= 0 || len(samples) <= f.maxBatch {
		n := 0
		for _, s := range samples {
			if f.Accumulate(s) == nil {
				n++
			}
		}
		return n
	}

	if f.lastInBatch == nil {
		f.lastInBatch = make(map[int]int, f.maxBatch)
	}
	clear(f.lastInBatch)
	f.order = f.order[:0]

	inRange := 0
	outOfRange := 0
	for i, s := range samples {
		b, ok := f.geom.Locate(s.Angle, s.Distance)
		if !ok {
			outOfRange++
			continue
		}
		inRange++
		idx := f.geom.Index(b)
		if _, seen := f.lastInBatch[idx]; !seen {
			f.order = append(f.order, idx)
		}
		f.lastInBatch[idx] = i
	}

	for _, idx := range f.order {
		f.write(idx, samples[f.lastInBatch[idx]])
	}

	f.counters.Record(scope.SignalOutOfRange, uint64(outOfRange))
	merged := inRange - len(f.order)
	f.counters.Record(scope.SignalCoalesced, uint64(merged))
	if merged > 0 {
		monitoring.Logf("[Field] coalesced %d samples into %d buckets (limit %d)", inRange, len(f.order), f.maxBatch)
	}
	return len(f.order)
}

// DecayFactor is the multiplier applied to every cell over dt.
func DecayFactor(dt, halfLife time.Duration) float64 {
	if dt <= 0 {
		return 1
	}
	return math.Pow(0.5, float64(dt)/float64(halfLife))
}

// DecayStep fades every lit cell by 0.5^(dt/halfLife). Cells that fall below
// the floor are set to zero and dropped from the active list. now is
// accepted for symmetry with the tick that drives it; decay depends only on
// dt.
func (f *Field) DecayStep(now time.Time, dt time.Duration) {
	if dt <= 0 || len(f.active) == 0 {
		return
	}
	k := DecayFactor(dt, f.halfLife)

	kept := f.active[:0]
	for _, idx := range f.active {
		c := &f.cells[idx]
		c.Brightness *= k
		if c.Brightness < f.floor || c.Brightness == 0 {
			c.Brightness = 0
			continue
		}
		kept = append(kept, idx)
	}
	f.active = kept
}

// Snapshot copies out every lit cell sorted by bucket index.
func (f *Field) Snapshot() Snapshot {
	idxs := slices.Clone(f.active)
	slices.Sort(idxs)

	out := Snapshot{Geometry: f.geom, Cells: make([]CellSample, 0, len(idxs))}
	for _, idx := range idxs {
		c := f.cells[idx]
		out.Cells = append(out.Cells, CellSample{
			Bucket:      f.geom.BucketAt(idx),
			Brightness:  c.Brightness,
			LastUpdated: c.LastUpdated,
		})
	}
	return out
}

// Reset zeroes every cell.
func (f *Field) Reset() {
	lit := len(f.active)
	clear(f.cells)
	f.active = f.active[:0]
	monitoring.Logf("[Field] reset lit_before=%d total_cells=%d", lit, len(f.cells))
}

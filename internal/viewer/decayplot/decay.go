// Package decayplot records how traced buckets fade over a session and renders
// the result with the expected half-life curve for comparison.
package decayplot

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/sonarscope/internal/scope/field"
	"github.com/banshee-data/sonarscope/internal/scope/render"
)

// ErrNoSamples is returned when a plot is requested before any frame arrived.
var ErrNoSamples = errors.New("no decay samples recorded")

// Model is the brightness a cell lit at peak should show after elapsed,
// with values under floor reading as zero.
func Model(peak float64, elapsed, halfLife time.Duration, floor float64) float64 {
	if elapsed < 0 || halfLife <= 0 {
		return peak
	}
	v := peak * math.Pow(0.5, elapsed.Seconds()/halfLife.Seconds())
	if v < floor {
		return 0
	}
	return v
}

// DecayTrace is a render.Sink sampling the brightness of a fixed set of
// buckets on every frame. X values are seconds since the first frame.
type DecayTrace struct {
	mu       sync.Mutex
	buckets  []field.Bucket
	start    time.Time
	halfLife time.Duration
	floor    float64
	samples  map[field.Bucket]plotter.XYs
}

// NewDecayTrace traces buckets. The half-life and floor of the model curve
// come from the frames themselves.
func NewDecayTrace(buckets ...field.Bucket) *DecayTrace {
	return &DecayTrace{
		buckets: buckets,
		samples: make(map[field.Bucket]plotter.XYs, len(buckets)),
	}
}

// OnFrame implements render.Sink. A bucket missing from the frame is dark.
func (d *DecayTrace) OnFrame(f render.Frame) {
	lit := make(map[field.Bucket]float64, len(f.Points))
	for _, p := range f.Points {
		lit[p.Bucket] = p.Brightness
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.start.IsZero() {
		d.start = f.At
	}
	d.halfLife = f.Config.DecayHalfLife
	d.floor = f.Config.DecayFloor
	x := f.At.Sub(d.start).Seconds()
	for _, b := range d.buckets {
		d.samples[b] = append(d.samples[b], plotter.XY{X: x, Y: lit[b]})
	}
}

// Samples returns a copy of the series recorded for b.
func (d *DecayTrace) Samples(b field.Bucket) plotter.XYs {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append(plotter.XYs(nil), d.samples[b]...)
}

// model builds the expected curve for one series, starting from its
// brightest sample.
func (d *DecayTrace) model(xys plotter.XYs) plotter.XYs {
	peak := 0
	for i := range xys {
		if xys[i].Y > xys[peak].Y {
			peak = i
		}
	}
	out := make(plotter.XYs, 0, len(xys)-peak)
	for _, s := range xys[peak:] {
		elapsed := time.Duration((s.X - xys[peak].X) * float64(time.Second))
		out = append(out, plotter.XY{X: s.X, Y: Model(xys[peak].Y, elapsed, d.halfLife, d.floor)})
	}
	return out
}

// Plot builds the chart: one solid line per traced bucket, each with a
// dashed model curve in the same colour.
func (d *DecayTrace) Plot() (*plot.Plot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.start.IsZero() {
		return nil, ErrNoSamples
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Persistence decay (half-life %s)", d.halfLife)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Brightness"
	p.Y.Min = 0
	p.Y.Max = 1.05
	p.Add(plotter.NewGrid())

	for i, b := range d.buckets {
		xys := d.samples[b]
		if len(xys) == 0 {
			continue
		}
		observed, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("bucket %s: %w", b, err)
		}
		observed.Color = plotutil.Color(i)
		observed.Width = vg.Points(1.5)

		expected, err := plotter.NewLine(d.model(xys))
		if err != nil {
			return nil, fmt.Errorf("bucket %s model: %w", b, err)
		}
		expected.Color = plotutil.Color(i)
		expected.Width = vg.Points(1)
		expected.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}

		p.Add(observed, expected)
		p.Legend.Add("bucket "+b.String(), observed)
		p.Legend.Add("model "+b.String(), expected)
	}
	p.Legend.Top = true
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// WriteTo renders the chart as PNG.
func (d *DecayTrace) WriteTo(w io.Writer) (int64, error) {
	p, err := d.Plot()
	if err != nil {
		return 0, err
	}
	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return 0, fmt.Errorf("render plot: %w", err)
	}
	return wt.WriteTo(w)
}

// Save writes the PNG to path, creating its directory.
func (d *DecayTrace) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := d.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

package terminal

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/banshee-data/sonarscope/internal/scope"
)

// cellAspect is the height of a terminal cell over its width.
const cellAspect = 2.0

// layout maps display coordinates onto the cell grid. Rows grow downward so
// display y is flipped.
type layout struct {
	origin orb.Point
	k      float64 // rows per display unit
	cx, cy int
	w, h   int // drawable area; the status line sits below it
}

// newLayout fits a circle of cfg.MaxRange into a w×h grid with one row kept
// for status. In half-plane mode the sensor sits at the bottom centre and
// only the upper semicircle is guaranteed to fit, like the original sweep
// display.
func newLayout(cfg scope.DisplayConfig, w, h int, halfPlane bool) layout {
	l := layout{origin: cfg.Origin, w: w, h: max(h-1, 1)}
	r := cfg.MaxRange * cfg.ScalePxPerUnit
	if r <= 0 || w <= 0 {
		return l
	}
	halfCols := float64(w-1) / 2 / cellAspect
	if halfPlane {
		l.k = math.Min(float64(l.h-1)/r, halfCols/r)
		l.cx, l.cy = w/2, l.h-1
	} else {
		l.k = math.Min(float64(l.h-1)/2/r, halfCols/r)
		l.cx, l.cy = w/2, l.h/2
	}
	return l
}

func (l layout) cell(p orb.Point) (col, row int) {
	dx := p[0] - l.origin[0]
	dy := p[1] - l.origin[1]
	col = l.cx + int(math.Round(dx*l.k*cellAspect))
	row = l.cy - int(math.Round(dy*l.k))
	return col, row
}

func (l layout) inside(col, row int) bool {
	return col >= 0 && col < l.w && row >= 0 && row < l.h
}

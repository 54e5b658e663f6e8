// Package terminal draws frames on a character terminal with tcell.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"github.com/paulmach/orb"

	"github.com/banshee-data/sonarscope/internal/scope/overlay"
	"github.com/banshee-data/sonarscope/internal/scope/projection"
	"github.com/banshee-data/sonarscope/internal/scope/render"
)

// ErrQuit is returned by Run when the user asks to leave.
var ErrQuit = errors.New("terminal viewer: quit")

// Viewer draws the latest frame from a mailbox. It owns the screen and
// finalises it when Run returns.
type Viewer struct {
	screen    tcell.Screen
	mailbox   *render.Mailbox
	halfPlane bool

	last  *render.Frame
	drawn atomic.Uint64
}

// Open initialises the real terminal.
func Open(mb *render.Mailbox, halfPlane bool) (*Viewer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	return New(screen, mb, halfPlane), nil
}

// New wraps an initialised screen.
func New(screen tcell.Screen, mb *render.Mailbox, halfPlane bool) *Viewer {
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack))
	screen.Clear()
	return &Viewer{screen: screen, mailbox: mb, halfPlane: halfPlane}
}

// Drawn returns the number of frames drawn.
func (v *Viewer) Drawn() uint64 { return v.drawn.Load() }

// Run redraws whenever a frame arrives and handles keys until the context
// ends (ctx.Err()) or the user quits (ErrQuit).
func (v *Viewer) Run(ctx context.Context) error {
	defer v.screen.Fini()

	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	defer close(quit)
	go v.screen.ChannelEvents(events, quit)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-v.mailbox.Ready():
			if f, ok := v.mailbox.Take(); ok {
				v.Draw(f)
			}
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
					(ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q')) {
					return ErrQuit
				}
			case *tcell.EventResize:
				v.screen.Sync()
				if v.last != nil {
					v.Draw(*v.last)
				}
			}
		}
	}
}

func styleFor(c color.RGBA, level float64) tcell.Style {
	level = min(max(level, 0), 1)
	fg := tcell.NewRGBColor(int32(float64(c.R)*level), int32(float64(c.G)*level), int32(float64(c.B)*level))
	return tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(fg)
}

// Draw renders f immediately.
func (v *Viewer) Draw(f render.Frame) {
	v.last = &f
	v.drawn.Add(1)

	w, h := v.screen.Size()
	l := newLayout(f.Config, w, h, v.halfPlane)
	pal := f.Config.Palette
	v.screen.Clear()

	if g := f.Overlay; g != nil {
		v.drawOverlay(l, g, overlay.Below)
	}

	for _, s := range f.Sweep {
		v.line(l, s.From, s.To, '·', styleFor(pal.Sweep, s.Brightness*0.6))
	}
	for _, r := range f.Rays {
		if r.Kind == projection.ClearPath {
			v.line(l, r.From, r.To, '.', styleFor(pal.Bearing, r.Brightness*0.4))
		} else {
			v.line(l, r.From, r.To, '░', styleFor(pal.Blip, r.Brightness*0.3))
		}
	}
	for _, p := range f.Points {
		col, row := l.cell(orb.Point{p.X, p.Y})
		if !l.inside(col, row) {
			continue
		}
		ch := '●'
		if p.InExclusion {
			ch = '◆'
		}
		v.screen.SetContent(col, row, ch, nil, styleFor(pal.Blip, 0.25+0.75*p.Brightness))
	}

	if g := f.Overlay; g != nil {
		v.drawOverlay(l, g, overlay.Above)
		v.drawLabels(l, g, styleFor(pal.Text, 1))
	}

	v.status(w, h, f)
	v.screen.Show()
}

func (v *Viewer) drawOverlay(l layout, g *overlay.Geometry, z overlay.Z) {
	for _, r := range g.Rings {
		if r.Z != z {
			continue
		}
		for i := 1; i < len(r.Path); i++ {
			v.line(l, r.Path[i-1], r.Path[i], '·', styleFor(r.Color, 0.8))
		}
	}
	for _, b := range g.Bearings {
		if b.Z != z || len(b.Line) < 2 {
			continue
		}
		v.line(l, b.Line[0], b.Line[1], '·', styleFor(b.Color, 0.5))
	}
	for _, zone := range g.Zones {
		if zone.Z != z || len(zone.Polygon) == 0 {
			continue
		}
		outer := zone.Polygon[0]
		for i := 1; i < len(outer); i++ {
			v.line(l, outer[i-1], outer[i], '#', styleFor(zone.Color, 1))
		}
	}
}

func (v *Viewer) drawLabels(l layout, g *overlay.Geometry, style tcell.Style) {
	for _, r := range g.Rings {
		v.text(l, r.Label, style)
	}
	for _, b := range g.Bearings {
		v.text(l, b.Label, style)
	}
}

func (v *Viewer) text(l layout, lbl overlay.Label, style tcell.Style) {
	col, row := l.cell(lbl.At)
	for _, r := range lbl.Text {
		if l.inside(col, row) {
			v.screen.SetContent(col, row, r, nil, style)
		}
		col++
	}
}

// line draws a Bresenham segment between two display points.
func (v *Viewer) line(l layout, a, b orb.Point, ch rune, style tcell.Style) {
	x0, y0 := l.cell(a)
	x1, y1 := l.cell(b)
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		if l.inside(x0, y0) {
			v.screen.SetContent(x0, y0, ch, nil, style)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (v *Viewer) status(w, h int, f render.Frame) {
	if h < 1 {
		return
	}
	session := f.SessionID
	if len(session) > 8 {
		session = session[:8]
	}
	msg := fmt.Sprintf(" seq=%d session=%s lit=%d drained=%d overruns=%d late=%d  q:quit",
		f.Seq, session, f.Stats.Lit, f.Stats.Drained, f.Stats.Overruns, f.Stats.Late)
	style := styleFor(f.Config.Palette.Text, 1).Reverse(true)
	col := 0
	for _, r := range msg {
		if col >= w {
			break
		}
		v.screen.SetContent(col, h-1, r, nil, style)
		col++
	}
	for ; col < w; col++ {
		v.screen.SetContent(col, h-1, ' ', nil, style)
	}
}

// LogDropped reports frames the terminal could not keep up with.
func (v *Viewer) LogDropped() {
	if n := v.mailbox.Dropped(); n > 0 {
		log.Printf("[Terminal] %d frames skipped while drawing", n)
	}
}

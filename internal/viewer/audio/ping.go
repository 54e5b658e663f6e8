// Package audio plays a sonar ping when a fresh contact shows up close to
// the sensor or inside an exclusion zone.
package audio

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"

	"github.com/banshee-data/sonarscope/internal/scope/render"
)

// Kind says why a ping fired.
type Kind int

const (
	None Kind = iota
	Warning
	Intrusion
)

func (k Kind) String() string {
	switch k {
	case Warning:
		return "warning"
	case Intrusion:
		return "intrusion"
	default:
		return "none"
	}
}

// PingPolicy decides from a frame whether to ping. A contact is fresh when
// its brightness is at least Threshold, i.e. it was refreshed this tick or
// very recently. Pings are at least MinInterval apart in frame time.
type PingPolicy struct {
	WarnRadius  float64 // sensor units; 0 disables warning pings
	Threshold   float64
	MinInterval time.Duration

	last time.Time
}

// Decision is the outcome for one frame. Distance is the closest fresh
// contact that triggered it.
type Decision struct {
	Kind     Kind
	Distance float64
	MaxRange float64
}

// Decide inspects f. Intrusion beats Warning; among contacts of the same
// kind the closest wins.
func (p *PingPolicy) Decide(f render.Frame) Decision {
	d := Decision{MaxRange: f.Config.MaxRange, Distance: math.Inf(1)}
	for _, pt := range f.Points {
		if pt.Brightness < p.Threshold {
			continue
		}
		kind := None
		switch {
		case pt.InExclusion:
			kind = Intrusion
		case p.WarnRadius > 0 && pt.Distance <= p.WarnRadius:
			kind = Warning
		}
		if kind > d.Kind || (kind == d.Kind && kind != None && pt.Distance < d.Distance) {
			d.Kind = kind
			d.Distance = pt.Distance
		}
	}
	if d.Kind == None {
		return Decision{}
	}
	if !p.last.IsZero() && f.At.Sub(p.last) < p.MinInterval {
		return Decision{}
	}
	p.last = f.At
	return d
}

// Frequency maps a decision to a tone: intrusions sit an octave above
// warnings, and closer contacts ping higher.
func (d Decision) Frequency() float64 {
	base := 660.0
	if d.Kind == Intrusion {
		base = 1320
	}
	if d.MaxRange <= 0 || math.IsInf(d.Distance, 0) {
		return base
	}
	closeness := 1 - min(max(d.Distance/d.MaxRange, 0), 1)
	return base * (1 + 0.5*closeness)
}

// Player plays a finished streamer.
type Player interface {
	Play(s beep.Streamer)
}

// Pinger is a render.Sink that turns policy decisions into tones.
type Pinger struct {
	policy   *PingPolicy
	player   Player
	rate     beep.SampleRate
	duration time.Duration

	mu    sync.Mutex
	count map[Kind]uint64
}

// NewPinger plays through player at the given sample rate.
func NewPinger(policy *PingPolicy, player Player, rate beep.SampleRate) *Pinger {
	return &Pinger{
		policy:   policy,
		player:   player,
		rate:     rate,
		duration: 120 * time.Millisecond,
		count:    make(map[Kind]uint64),
	}
}

// OnFrame implements render.Sink.
func (p *Pinger) OnFrame(f render.Frame) {
	d := p.policy.Decide(f)
	if d.Kind == None {
		return
	}
	s, err := Tone(p.rate, d.Frequency(), p.duration)
	if err != nil {
		log.Printf("[Audio] tone: %v", err)
		return
	}
	p.mu.Lock()
	p.count[d.Kind]++
	p.mu.Unlock()
	p.player.Play(s)
}

// Count returns how many pings of kind have played.
func (p *Pinger) Count(kind Kind) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count[kind]
}

// Tone is a sine burst of the given length at half volume.
func Tone(rate beep.SampleRate, freq float64, d time.Duration) (beep.Streamer, error) {
	sine, err := generators.SineTone(rate, freq)
	if err != nil {
		return nil, fmt.Errorf("sine %vHz: %w", freq, err)
	}
	return &effects.Volume{
		Streamer: beep.Take(rate.N(d), sine),
		Base:     2,
		Volume:   -1,
	}, nil
}

// SpeakerPlayer plays through the system audio device.
type SpeakerPlayer struct{}

var speakerOnce struct {
	sync.Once
	err error
}

// NewSpeakerPlayer initialises the speaker once per process. Callers should
// treat an error as "no audio" rather than fail.
func NewSpeakerPlayer(rate beep.SampleRate) (*SpeakerPlayer, error) {
	speakerOnce.Do(func() {
		speakerOnce.err = speaker.Init(rate, rate.N(100*time.Millisecond))
	})
	if speakerOnce.err != nil {
		return nil, fmt.Errorf("speaker init: %w", speakerOnce.err)
	}
	return &SpeakerPlayer{}, nil
}

func (SpeakerPlayer) Play(s beep.Streamer) { speaker.Play(s) }
